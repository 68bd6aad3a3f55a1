// rbacctl is a command-line client for the tenantgate API. It keeps the
// session tokens in a file so consecutive invocations stay signed in, and
// refreshes the access token transparently when the server rejects it.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/tenantgate/tenantgate/internal/client"
)

const (
	defaultServer = "http://localhost:8080"
	envServer     = "RBACCTL_SERVER"
	envTokenFile  = "RBACCTL_TOKEN_FILE"
	envPassword   = "RBACCTL_PASSWORD"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Getenv); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, getenv func(string) string) error {
	var server, tokenFile string
	var verbose bool

	flagSet := pflag.NewFlagSet("rbacctl", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.SetInterspersed(false)
	flagSet.StringVarP(&server, "server", "s", envOr(getenv, envServer, defaultServer), "API base URL (env "+envServer+")")
	flagSet.StringVar(&tokenFile, "token-file", envOr(getenv, envTokenFile, defaultTokenFile()), "where session tokens are kept (env "+envTokenFile+")")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log client activity to stderr")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(stderr, flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp(stderr, flagSet)
		return nil
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cmd, rest, err := lookup(flagSet.Args())
	if err != nil {
		return err
	}

	session, err := client.New(client.Config{
		BaseURL: server,
		Store:   client.NewFileStore(tokenFile),
		Logger:  logger,
		OnLogout: func() {
			fmt.Fprintln(stderr, "session expired, run `rbacctl login` again")
		},
	})
	if err != nil {
		return err
	}

	env := &cmdEnv{session: session, out: stdout, errOut: stderr, getenv: getenv}
	return cmd.run(ctx, env, rest)
}

// lookup resolves "group verb" pairs first, then single-word commands.
func lookup(args []string) (*command, []string, error) {
	if len(args) >= 2 {
		if cmd, ok := commands[args[0]+" "+args[1]]; ok {
			return cmd, args[2:], nil
		}
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd, args[1:], nil
	}
	return nil, nil, fmt.Errorf("unknown command %q (see rbacctl --help)", strings.Join(args[:min(2, len(args))], " "))
}

func envOr(getenv func(string) string, key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".rbacctl-tokens.json"
	}
	return filepath.Join(dir, "rbacctl", "tokens.json")
}

func printHelp(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `rbacctl: command-line client for the tenantgate API.

Usage:
  rbacctl [flags] <command> [command flags]

Commands:
`)
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %-18s %s\n", name, commands[name].summary)
	}
	fmt.Fprintf(w, "\nFlags:\n%s", flagSet.FlagUsages())
}
