// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// domain services and encode; business rules live below this package.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	authmw "renavam/pkg/platform/middleware/auth"
	devicemw "renavam/pkg/platform/middleware/device"
	requestmw "renavam/pkg/platform/middleware/request"
)

// Deps collects everything the router needs. Optional collaborators may be
// nil; the corresponding routes degrade rather than panic.
type Deps struct {
	Identity  IdentityService
	Cars      CarService
	Transfers TransferService

	TokenValidator authmw.TokenValidator
	Revocations    authmw.TokenRevocationChecker
	Revoker        TokenRevoker
	TokenTTL       time.Duration

	Logger *slog.Logger

	MaxBodyBytes   int64
	AvatarMaxBytes int64
}

// NewRouter mounts the whole API surface.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(requestmw.Middleware)
	r.Use(devicemw.Middleware)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authHandler := &AuthHandler{
		identity: deps.Identity,
		revoker:  deps.Revoker,
		tokenTTL: deps.TokenTTL,
		logger:   deps.Logger,
	}
	userHandler := &UserHandler{identity: deps.Identity, cars: deps.Cars, logger: deps.Logger}
	carHandler := &CarHandler{cars: deps.Cars, logger: deps.Logger}
	transferHandler := &TransferHandler{transfers: deps.Transfers, logger: deps.Logger}

	requireAuth := authmw.RequireAuth(deps.TokenValidator, deps.Revocations, deps.Logger)

	r.Group(func(r chi.Router) {
		r.Use(bodyLimit(deps.MaxBodyBytes))
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(bodyLimit(deps.MaxBodyBytes))

		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/me", userHandler.HandleMe)
		r.Get("/me/full", userHandler.HandleMeFull)
		r.Post("/user/search", userHandler.HandleSearch)

		r.Post("/car/registerCar", carHandler.HandleRegister)
		r.Get("/car/myCars", carHandler.HandleMyCars)

		r.Post("/transfer/initiate", transferHandler.HandleInitiate)
		r.Post("/transfer/accept", transferHandler.HandleAccept)
		r.Post("/transfer/reject", transferHandler.HandleReject)
		r.Post("/transfer/status", transferHandler.HandleStatus)
	})

	// the avatar upload carries image bytes, so it gets its own larger limit
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Use(bodyLimit(deps.AvatarMaxBytes))
		r.Patch("/me/update", userHandler.HandleUpdate)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func bodyLimit(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if n > 0 && r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}
