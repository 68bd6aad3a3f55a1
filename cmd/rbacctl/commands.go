package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/tenantgate/tenantgate/internal/client"
)

type cmdEnv struct {
	session *client.Session
	out     io.Writer
	errOut  io.Writer
	getenv  func(string) string
}

// print writes v as indented JSON.
func (e *cmdEnv) print(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type command struct {
	summary string
	run     func(ctx context.Context, env *cmdEnv, args []string) error
}

var commands = map[string]*command{
	"login":           {"sign in and store the session", runLogin},
	"register":        {"create an account and sign in", runRegister},
	"logout":          {"revoke the session and forget local tokens", runLogout},
	"whoami":          {"show the signed-in user", runWhoami},
	"refresh":         {"exchange the refresh token for a new access token", runRefresh},
	"health":          {"show server health", runHealth},
	"forgot-password": {"request a password reset", runForgotPassword},
	"profile update":  {"update your own profile", runProfileUpdate},
	"avatar":          {"upload an avatar image", runAvatar},
	"users list":      {"list users (--scope all|mine)", runUsersList},
	"users create":    {"create a user", runUsersCreate},
	"users update":    {"update a user by id", runUsersUpdate},
	"users delete":    {"delete a user by id", runUsersDelete},
	"apps list":       {"list applications (--scope all|managed|mine)", runAppsList},
	"apps create":     {"create an application", runAppsCreate},
	"apps update":     {"update an application by id", runAppsUpdate},
	"apps delete":     {"delete an application by id", runAppsDelete},
	"apps assign":     {"assign an application to a user by email", runAppsAssign},
	"tenants list":    {"list tenants", runTenantsList},
	"tenants create":  {"create a tenant", runTenantsCreate},
	"tenants update":  {"rename a tenant", runTenantsUpdate},
	"tenants delete":  {"delete a tenant", runTenantsDelete},
}

func newFlags(name string, env *cmdEnv) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(env.errOut)
	return fs
}

// optional returns a pointer to the flag's value only if it was set.
func optional(fs *pflag.FlagSet, name string) *string {
	if !fs.Changed(name) {
		return nil
	}
	v, _ := fs.GetString(name)
	return &v
}

// oneArg parses fs and returns its single positional argument.
func oneArg(fs *pflag.FlagSet, args []string, what string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		return "", fmt.Errorf("%s: expected exactly one %s", fs.Name(), what)
	}
	return fs.Arg(0), nil
}

func noArgs(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%s: unexpected argument %q", fs.Name(), fs.Arg(0))
	}
	return nil
}

func password(fs *pflag.FlagSet, env *cmdEnv) (string, error) {
	p, _ := fs.GetString("password")
	if p == "" {
		p = env.getenv(envPassword)
	}
	if p == "" {
		return "", fmt.Errorf("%s: --password or %s is required", fs.Name(), envPassword)
	}
	return p, nil
}

func runLogin(ctx context.Context, env *cmdEnv, args []string) error {
	fs := newFlags("login", env)
	email := fs.StringP("email", "e", "", "account email")
	fs.StringP("password", "p", "", "account password (env "+envPassword+")")
	if err := noArgs(fs, args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("login: --email is required")
	}
	pw, err := password(fs, env)
	if err != nil {
		return err
	}
	user, err := env.session.Login(ctx, *email, pw)
	if err != nil {
		return err
	}
	return env.print(user)
}

func runRegister(ctx context.Context, env *cmdEnv, args []string) error {
	fs := newFlags("register", env)
	var in client.RegisterInput
	fs.StringVar(&in.FirstName, "first-name", "", "first name")
	fs.StringVar(&in.LastName, "last-name", "", "last name")
	fs.StringVarP(&in.Email, "email", "e", "", "account email")
	fs.StringP("password", "p", "", "account password (env "+envPassword+")")
	fs.String("tenant", "", "tenant id to join")
	if err := noArgs(fs, args); err != nil {
		return err
	}
	pw, err := password(fs, env)
	if err != nil {
		return err
	}
	in.Password = pw
	in.TenantID = optional(fs, "tenant")

	user, err := env.session.Register(ctx, in)
	if err != nil {
		return err
	}
	return env.print(user)
}

func runLogout(ctx context.Context, env *cmdEnv, args []string) error {
	if err := noArgs(newFlags("logout", env), args); err != nil {
		return err
	}
	env.session.Logout(ctx)
	return nil
}

func runWhoami(ctx context.Context, env *cmdEnv, args []string) error {
	if err := noArgs(newFlags("whoami", env), args); err != nil {
		return err
	}
	user, err := env.session.Me(ctx)
	if err != nil {
		return err
	}
	return env.print(user)
}

func runRefresh(ctx context.Context, env *cmdEnv, args []string) error {
	if err := noArgs(newFlags("refresh", env), args); err != nil {
		return err
	}
	return env.session.Refresh(ctx)
}

func runHealth(ctx context.Context, env *cmdEnv, args []string) error {
	if err := noArgs(newFlags("health", env), args); err != nil {
		return err
	}
	h, err := env.session.Health(ctx)
	if err != nil {
		return err
	}
	return env.print(h)
}

func runForgotPassword(ctx context.Context, env *cmdEnv, args []string) error {
	email, err := oneArg(newFlags("forgot-password", env), args, "email")
	if err != nil {
		return err
	}
	return env.session.ForgotPassword(ctx, email)
}

func runProfileUpdate(ctx context.Context, env *cmdEnv, args []string) error {
	fs := newFlags("profile update", env)
	fs.String("first-name", "", "first name")
	fs.String("last-name", "", "last name")
	fs.String("email", "", "email")
	fs.String("phone", "", "phone number")
	fs.String("address", "", "postal address")
	if err := noArgs(fs, args); err != nil {
		return err
	}
	user, err := env.session.UpdateProfile(ctx, client.UpdateProfileInput{
		FirstName: optional(fs, "first-name"),
		LastName:  optional(fs, "last-name"),
		Email:     optional(fs, "email"),
		Phone:     optional(fs, "phone"),
		Address:   optional(fs, "address"),
	})
	if err != nil {
		return err
	}
	return env.print(user)
}

func runAvatar(ctx context.Context, env *cmdEnv, args []string) error {
	path, err := oneArg(newFlags("avatar", env), args, "image path")
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	avatarURL, err := env.session.UploadAvatar(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	return env.print(map[string]string{"avatarUrl": avatarURL})
}

func runUsersList(ctx context.Context, env *cmdEnv, args []string) error {
	fs := newFlags("users list", env)
	scope := fs.String("scope", "", "all or mine")
	if err := noArgs(fs, args); err != nil {
		return err
	}
	users, err := env.session.ListUsers(ctx, *scope)
	if err != nil {
		return err
	}
	return env.print(users)
}

func runUsersCreate(ctx context.Context, env *cmdEnv, args []string) error {
	fs := newFlags("users create", env)
	var in client.CreateUserInput
	fs.StringVar(&in.FirstName, "first-name", "", "first name")
	fs.StringVar(&in.LastName, "last-name", "", "last name")
	fs.StringVarP(&in.Email, "email", "e", "", "email")
	fs.StringP("password", "p", "", "initial password")
	fs.String("role", "", "superadmin, admin or user")
	fs.String("tenant", "", "tenant id (superadmin only)")
	fs.String("assigned-admin", "", "owning admin id (superadmin only)")
	if err := noArgs(fs, args); err != nil {
		return err
	}
	in.Password = optional(fs, "password")
	in.Role = optional(fs, "role")
	in.TenantID = optional(fs, "tenant")
	in.AssignedAdminID = optional(fs, "assigned-admin")

	user, err := env.session.CreateUser(ctx, in)
	if err != nil {
		return err
	}
	return env.print(user)
}

func runUsersUpdate(ctx context.Context, env *cmdEnv, args []string) error {
	fs := newFlags("users update", env)
	fs.String("first-name", "", "first name")
	fs.String("last-name", "", "last name")
	fs.String("email", "", "email")
	fs.String("role", "", "superadmin, admin or user")
	fs.String("phone", "", "phone number")
	fs.String("address", "", "postal address")
	id, err := oneArg(fs, args, "user id")
	if err != nil {
		return err
	}
	user, err := env.session.UpdateUser(ctx, id, client.UpdateUserInput{
		FirstName: optional(fs, "first-name"),
		LastName:  optional(fs, "last-name"),
		Email:     optional(fs, "email"),
		Role:      optional(fs, "role"),
		Phone:     optional(fs, "phone"),
		Address:   optional(fs, "address"),
	})
	if err != nil {
		return err
	}
	return env.print(user)
}

func runUsersDelete(ctx context.Context, env *cmdEnv, args []string) error {
	id, err := oneArg(newFlags("users delete", env), args, "user id")
	if err != nil {
		return err
	}
	return env.session.DeleteUser(ctx, id)
}

func runAppsList(ctx context.Context, env *cmdEnv, args []string) error {
	fs := newFlags("apps list", env)
	scope := fs.String("scope", "", "all, managed or mine")
	if err := noArgs(fs, args); err != nil {
		return err
	}
	apps, err := env.session.ListApplications(ctx, *scope)
	if err != nil {
		return err
	}
	return env.print(apps)
}

func runAppsCreate(ctx context.Context, env *cmdEnv, args []string) error {
	fs := newFlags("apps create", env)
	fs.String("description", "", "description")
	fs.String("tenant", "", "tenant id (superadmin only)")
	name, err := oneArg(fs, args, "application name")
	if err != nil {
		return err
	}
	app, err := env.session.CreateApplication(ctx, client.CreateApplicationInput{
		Name:        name,
		Description: optional(fs, "description"),
		TenantID:    optional(fs, "tenant"),
	})
	if err != nil {
		return err
	}
	return env.print(app)
}

func runAppsUpdate(ctx context.Context, env *cmdEnv, args []string) error {
	fs := newFlags("apps update", env)
	fs.String("name", "", "new name")
	fs.String("description", "", "new description")
	id, err := oneArg(fs, args, "application id")
	if err != nil {
		return err
	}
	app, err := env.session.UpdateApplication(ctx, id, client.UpdateApplicationInput{
		Name:        optional(fs, "name"),
		Description: optional(fs, "description"),
	})
	if err != nil {
		return err
	}
	return env.print(app)
}

func runAppsDelete(ctx context.Context, env *cmdEnv, args []string) error {
	id, err := oneArg(newFlags("apps delete", env), args, "application id")
	if err != nil {
		return err
	}
	return env.session.DeleteApplication(ctx, id)
}

func runAppsAssign(ctx context.Context, env *cmdEnv, args []string) error {
	fs := newFlags("apps assign", env)
	email := fs.StringP("email", "e", "", "email of the user to assign")
	id, err := oneArg(fs, args, "application id")
	if err != nil {
		return err
	}
	if *email == "" {
		return errors.New("apps assign: --email is required")
	}
	return env.session.AssignApplication(ctx, id, *email)
}

func runTenantsList(ctx context.Context, env *cmdEnv, args []string) error {
	if err := noArgs(newFlags("tenants list", env), args); err != nil {
		return err
	}
	tenants, err := env.session.ListTenants(ctx)
	if err != nil {
		return err
	}
	return env.print(tenants)
}

func runTenantsCreate(ctx context.Context, env *cmdEnv, args []string) error {
	name, err := oneArg(newFlags("tenants create", env), args, "tenant name")
	if err != nil {
		return err
	}
	t, err := env.session.CreateTenant(ctx, name)
	if err != nil {
		return err
	}
	return env.print(t)
}

func runTenantsUpdate(ctx context.Context, env *cmdEnv, args []string) error {
	fs := newFlags("tenants update", env)
	name := fs.String("name", "", "new tenant name")
	id, err := oneArg(fs, args, "tenant id")
	if err != nil {
		return err
	}
	t, err := env.session.UpdateTenant(ctx, id, *name)
	if err != nil {
		return err
	}
	return env.print(t)
}

func runTenantsDelete(ctx context.Context, env *cmdEnv, args []string) error {
	id, err := oneArg(newFlags("tenants delete", env), args, "tenant id")
	if err != nil {
		return err
	}
	return env.session.DeleteTenant(ctx, id)
}
