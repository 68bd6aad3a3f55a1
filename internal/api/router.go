package api

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tenantgate/tenantgate/internal/access"
	"github.com/tenantgate/tenantgate/internal/api/handler"
	"github.com/tenantgate/tenantgate/internal/api/middleware"
	"github.com/tenantgate/tenantgate/internal/application"
	"github.com/tenantgate/tenantgate/internal/auth"
	"github.com/tenantgate/tenantgate/internal/metrics"
	"github.com/tenantgate/tenantgate/internal/ratelimit"
	"github.com/tenantgate/tenantgate/internal/tenant"
	"github.com/tenantgate/tenantgate/internal/upload"
)

// maxJSONBodyBytes bounds every request body except the avatar upload.
const maxJSONBodyBytes = 1 << 20

const avatarRoute = "/users/me/avatar"

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	AuthService    *auth.Service
	Verifier       middleware.TokenVerifier
	UserRepo       auth.UserRepository
	TenantRepo     tenant.Repository
	AppRepo        application.Repository
	Uploads        *upload.Store
	Limiter        ratelimit.Limiter // nil disables rate limiting
	TrustedProxies []netip.Prefix     // peers whose X-Forwarded-For is believed
	Metrics        *metrics.Metrics  // nil disables instrumentation and /metrics
	AllowedOrigins []string
	DBPinger       handler.DBPinger
	Version        string
	OpenAPISpec    []byte
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	if deps.Metrics != nil {
		r.Use(middleware.Instrument(deps.Metrics))
	}
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(deps.AllowedOrigins))
	if deps.Limiter != nil {
		r.Use(middleware.RateLimit(deps.Limiter, deps.Metrics, deps.TrustedProxies))
	}
	bodyLimits := map[string]int64{}
	if deps.Uploads != nil {
		bodyLimits[http.MethodPost+" "+avatarRoute] = deps.Uploads.MaxBytes() + handler.MultipartOverhead
	}
	r.Use(middleware.MaxBodyBytes(maxJSONBodyBytes, bodyLimits))

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	if len(deps.OpenAPISpec) > 0 {
		openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec)
		r.Get("/openapi.json", openapiHandler.ServeHTTP)
	}

	if deps.Uploads != nil {
		files := http.StripPrefix(upload.URLPrefix, http.FileServer(http.Dir(deps.Uploads.Dir())))
		r.Method(http.MethodGet, upload.URLPrefix+"*", files)
	}

	if deps.AuthService == nil || deps.UserRepo == nil {
		return r
	}

	verifier := deps.Verifier
	if verifier == nil {
		verifier = middleware.VerifierFunc(deps.AuthService.Authenticate)
	}
	authenticate := middleware.Auth(verifier)
	staff := middleware.RequireRole(auth.RoleSuperadmin, auth.RoleAdmin)
	superadmin := middleware.RequireRole(auth.RoleSuperadmin)

	authHandler := handler.NewAuthHandler(deps.AuthService, deps.UserRepo)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.With(authenticate).Get("/me", authHandler.Me)
	})

	if deps.TenantRepo == nil || deps.AppRepo == nil {
		return r
	}

	policy := access.NewPolicy(deps.UserRepo, deps.AppRepo, deps.TenantRepo)
	userHandler := handler.NewUserHandler(deps.UserRepo, policy, deps.AuthService)
	profileHandler := handler.NewProfileHandler(deps.UserRepo, deps.Uploads)
	appHandler := handler.NewApplicationHandler(deps.AppRepo, deps.UserRepo, policy)
	tenantHandler := handler.NewTenantHandler(deps.TenantRepo)

	r.Route("/users", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/me", profileHandler.Get)
		r.Put("/me", profileHandler.Update)
		if deps.Uploads != nil {
			r.Post("/me/avatar", profileHandler.UploadAvatar)
		}
		r.With(staff).Get("/", userHandler.List)
		r.With(staff).Post("/", userHandler.Create)
		r.With(staff).Put("/{id}", userHandler.Update)
		r.With(staff).Delete("/{id}", userHandler.Delete)
	})

	r.Route("/apps", func(r chi.Router) {
		r.Use(authenticate)
		r.Get("/", appHandler.List)
		r.With(staff).Post("/", appHandler.Create)
		r.With(staff).Put("/{id}", appHandler.Update)
		r.With(staff).Delete("/{id}", appHandler.Delete)
		r.With(staff).Post("/{id}/assign", appHandler.Assign)
	})

	r.Route("/tenants", func(r chi.Router) {
		r.Use(authenticate, superadmin)
		r.Get("/", tenantHandler.List)
		r.Post("/", tenantHandler.Create)
		r.Put("/{id}", tenantHandler.Update)
		r.Delete("/{id}", tenantHandler.Delete)
	})

	return r
}
