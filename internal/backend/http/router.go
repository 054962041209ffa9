package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/askbar/internal/backend/metrics"
	"github.com/aussiebroadwan/askbar/internal/backend/service"
	"github.com/aussiebroadwan/askbar/internal/backend/store"
	"github.com/aussiebroadwan/askbar/pkg/httpx"
	"github.com/aussiebroadwan/askbar/pkg/jwtx"
	"github.com/aussiebroadwan/askbar/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/aussiebroadwan/askbar/api/backend" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	verifier     jwtx.Verifier
	limits       httpx.Limits
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	store        store.Store

	metrics  *metrics.Collector
	gatherer prometheus.Gatherer

	Accounts *service.AccountService
	Profiles *service.ProfileService
}

func NewRouter(
	keys *jwtx.KeySet,
	verifier jwtx.Verifier,
	limits httpx.Limits,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	m *metrics.Collector,
	gatherer prometheus.Gatherer,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		verifier:     verifier,
		limits:       limits,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
		metrics:      m,
		gatherer:     gatherer,
	}

	// The metrics middleware must sit right on top of the mux to see the
	// matched pattern.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		httpx.Recover,
		r.metrics.HTTPMiddleware,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAccounts()
	r.registerProfiles()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title						AskBar Identity API
//	@version					0.1.0
//	@description				Identity provider and profile table for AskBar clients.
//	@description
//	@description				Access tokens are EdDSA-signed JWTs; verify them with the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/askbar
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
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAccounts() {
	h := &AccountHandler{Accounts: r.Accounts}

	// Credential endpoints are limited per IP and per submitted email.
	r.Mux.Handle("POST /v1/signup",
		httpx.Chain(http.HandlerFunc(h.HandleSignUp),
			httpx.RateLimitMiddleware(r.limits.Auth,
				httpx.CompositeKeyExtractor(":", httpx.IPKeyExtractor, httpx.JSONFieldKeyExtractor("email"))),
		),
	)
	r.Mux.Handle("POST /v1/token",
		httpx.Chain(http.HandlerFunc(h.HandleToken),
			httpx.RateLimitMiddleware(r.limits.Auth,
				httpx.CompositeKeyExtractor(":", httpx.IPKeyExtractor, formFieldKeyExtractor("email"))),
		),
	)

	r.Mux.Handle("POST /v1/token/revoke",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.limits.Write),
		),
	)

	r.Mux.Handle("GET /v1/user",
		httpx.Chain(http.HandlerFunc(h.HandleGetUser),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.limits.Read),
		),
	)
	r.Mux.Handle("PATCH /v1/user",
		httpx.Chain(http.HandlerFunc(h.HandleUpdateUser),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.limits.Write),
		),
	)

	r.Mux.Handle("GET /v1/authorize",
		httpx.Chain(AuthorizeHandler(),
			httpx.RateLimitByIP(r.limits.Auth),
		),
	)
}

func (r *Router) registerProfiles() {
	h := &ProfilesHandler{Profiles: r.Profiles}

	// Public reads.
	r.Mux.Handle("GET /v1/profiles/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(r.limits.Read),
		),
	)
	r.Mux.Handle("GET /v1/usernames/{username}",
		httpx.Chain(http.HandlerFunc(h.HandleUsername),
			httpx.RateLimitByIP(r.limits.Read),
		),
	)

	r.Mux.Handle("POST /v1/profiles",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(r.limits.Write),
		),
	)

	// Owner-only.
	r.Mux.Handle("PATCH /v1/profiles/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleUpdate),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireSelf("id"),
			httpx.RateLimitByUser(r.limits.Write),
		),
	)
	r.Mux.Handle("POST /v1/profiles/{id}/preferences",
		httpx.Chain(http.HandlerFunc(h.HandleCreatePreferences),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireSelf("id"),
			httpx.RateLimitByUser(r.limits.Write),
		),
	)
	r.Mux.Handle("GET /v1/profiles/{id}/preferences",
		httpx.Chain(http.HandlerFunc(h.HandleGetPreferences),
			httpx.AuthnMiddleware(r.verifier),
			httpx.RequireSelf("id"),
			httpx.RateLimitByUser(r.limits.Read),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(r.limits.Read),
		),
	)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(r.limits.Read),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(r.limits.Read),
		),
	)

	if r.gatherer != nil {
		r.Mux.Handle("GET /metrics", metrics.Handler(r.gatherer))
	}
}

// formFieldKeyExtractor keys credential attempts by a url-encoded field.
func formFieldKeyExtractor(field string) httpx.KeyExtractor {
	return func(req *http.Request) string {
		return strings.ToLower(strings.TrimSpace(req.PostFormValue(field)))
	}
}
