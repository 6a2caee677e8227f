package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/aussiebroadwan/userspace/internal/userspace/metrics"
	"github.com/aussiebroadwan/userspace/internal/userspace/service"
	"github.com/aussiebroadwan/userspace/pkg/httpx"
	"github.com/aussiebroadwan/userspace/pkg/jwtx"
	"github.com/aussiebroadwan/userspace/pkg/slogx"

	_ "github.com/aussiebroadwan/userspace/api/userspace" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router[X any] struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeyManager
	store        Pinger
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Service *service.CredentialService[X]

	// Limits are the rate-limit profiles applied by ApplyRoutes.
	Limits httpx.RateLimitProfiles

	// AllowedOrigins enables CORS for browser clients when non-empty.
	AllowedOrigins []string

	// Metrics, when set, instruments requests and serves GET /metrics.
	Metrics *metrics.Registry
}

func NewRouter[X any](
	svc *service.CredentialService[X],
	keys *jwtx.KeyManager,
	st Pinger,
	buildVersion string,
	logger *slog.Logger,
) *Router[X] {
	return &Router[X]{
		Mux:          http.NewServeMux(),
		keys:         keys,
		store:        st,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		Service:      svc,
		Limits:       httpx.DefaultRateLimitProfiles(),
	}
}

// ApplyRoutes registers every route and builds the global middleware chain.
// Set the exported options before calling it.
func (r *Router[X]) ApplyRoutes() {
	if len(r.AllowedOrigins) > 0 {
		r.middlewares = append(r.middlewares, cors.New(cors.Options{
			AllowedOrigins: r.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type", slogx.RequestIDHeader},
			ExposedHeaders: []string{slogx.RequestIDHeader, "Retry-After"},
			MaxAge:         600,
		}).Handler)
	}
	r.middlewares = append(r.middlewares, slogx.HTTPMiddleware(r.logger))

	// Innermost, so it sees the pattern the mux sets on the request.
	if r.Metrics != nil {
		r.middlewares = append(r.middlewares, r.Metrics.Middleware())
	}

	r.registerAccounts()
	r.registerEmail()
	r.registerPassword()
	r.registerMe()
	r.registerAvailability()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						Userspace Account Service API
//	@version					0.1.0
//	@description				Account registration, login, email confirmation, password recovery and account settings.
//	@description
//	@description				Identity tokens are JWTs that can be verified with the JWKS endpoint or the public key endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/userspace
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Identity token. Format: "Bearer {token}".
func (r *Router[X]) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router[X]) observer() Observer {
	if r.Metrics == nil {
		return nil
	}
	return r.Metrics
}

func (r *Router[X]) registerAccounts() {
	// POST /users - strict rate limit by IP (public signup endpoint)
	r.Mux.Handle("POST /v1/users",
		httpx.Chain(&RegisterHandler[X]{Service: r.Service, Metrics: r.observer()},
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)

	// POST /users/login - strict rate limit by IP + login field to slow down guessing
	r.Mux.Handle("POST /v1/users/login",
		httpx.Chain(&LoginHandler[X]{Service: r.Service, Metrics: r.observer()},
			httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "login"),
		),
	)
}

func (r *Router[X]) registerEmail() {
	r.Mux.Handle("GET /v1/users/email/confirmation",
		httpx.Chain(&ConfirmEmailHandler[X]{Service: r.Service, Metrics: r.observer()},
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)

	r.Mux.Handle("POST /v1/users/email/confirmation/resend",
		httpx.Chain(&ResendVerificationHandler[X]{Service: r.Service, Metrics: r.observer()},
			AuthnMiddleware[X](r.Service),
			httpx.RateLimitBySubject(r.Limits.Moderate),
		),
	)
}

func (r *Router[X]) registerPassword() {
	r.Mux.Handle("POST /v1/users/password/recovery",
		httpx.Chain(&RecoveryHandler[X]{Service: r.Service, Metrics: r.observer()},
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)

	r.Mux.Handle("POST /v1/users/password/reset",
		httpx.Chain(&ResetPasswordHandler[X]{Service: r.Service, Metrics: r.observer()},
			httpx.RateLimitByIP(r.Limits.Strict),
		),
	)
}

func (r *Router[X]) registerMe() {
	h := &MeHandler[X]{Service: r.Service, Metrics: r.observer()}
	authn := AuthnMiddleware[X](r.Service)

	r.Mux.Handle("GET /v1/users/me",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			authn,
			httpx.RateLimitBySubject(r.Limits.Lenient),
		),
	)

	r.Mux.Handle("PATCH /v1/users/me",
		httpx.Chain(http.HandlerFunc(h.HandlePatch),
			authn,
			httpx.RateLimitBySubject(r.Limits.Moderate),
		),
	)

	// DELETE re-checks the password, so it gets the brute-force profile.
	r.Mux.Handle("DELETE /v1/users/me",
		httpx.Chain(http.HandlerFunc(h.HandleDelete),
			authn,
			httpx.RateLimitBySubject(r.Limits.Strict),
		),
	)
}

func (r *Router[X]) registerAvailability() {
	if !r.Service.Options.AvailabilityCheck {
		return
	}
	r.Mux.Handle("GET /v1/users/available",
		httpx.Chain(&AvailabilityHandler[X]{Service: r.Service, Metrics: r.observer()},
			httpx.RateLimitByIP(r.Limits.Moderate),
		),
	)
}

func (r *Router[X]) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys.KeySet),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)
	r.Mux.Handle("GET /v1/keys/public",
		httpx.Chain(PublicKeyHandler(r.keys),
			httpx.RateLimitByIP(r.Limits.Public),
		),
	)

	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys.KeySet))

	if r.Metrics != nil {
		r.Mux.Handle("GET /metrics", r.Metrics.Handler())
	}
}
