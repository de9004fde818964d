package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/phuslu/log"

	"fintool-server/src/handlers"
	"fintool-server/src/logging"
	"fintool-server/src/middleware"
)

type Linker interface {
	handlers.LinkTokenCreator
	handlers.PublicTokenExchanger
}

// Services groups what the routes call into.
type Services struct {
	Link         Linker
	Accounts     handlers.AccountLister
	Transactions handlers.TransactionSyncer
	Investments  handlers.InvestmentSyncer
	Composition  handlers.CompositionResolver
	Rekey        handlers.VaultRekeyer
}

type RouterConfig struct {
	JWTSecret      []byte
	AllowedOrigins []string
	Metrics        http.Handler
	RateLimiter    *middleware.RateLimiter
	Logger         *log.Logger
}

func NewRouter(svc Services, cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		// Protected routes
		r.With(middleware.JWTAuthMiddleware(cfg.JWTSecret)).Group(func(r chi.Router) {
			// Plaid
			r.Post("/plaid/link-token", handlers.CreateLinkToken(svc.Link, logger))
			r.Post("/plaid/exchange-public-token", handlers.ExchangePublicToken(svc.Link, logger))

			// Routes that reach the upstream feed are rate limited per user
			r.Group(func(r chi.Router) {
				if cfg.RateLimiter != nil {
					r.Use(cfg.RateLimiter.Middleware)
				}
				r.Get("/plaid/accounts", handlers.GetAccounts(svc.Accounts, logger))
				r.Get("/plaid/transactions", handlers.SyncTransactions(svc.Transactions, logger))
				r.Get("/plaid/investments", handlers.GetInvestments(svc.Investments, logger))
			})

			// Quant
			r.Post("/quant/composition", handlers.GetComposition(svc.Composition, logger))
		})

		// Super Admin Routes
		r.With(middleware.JWTAuthMiddleware(cfg.JWTSecret), middleware.SuperAdminMiddleware).Group(func(r chi.Router) {
			r.Post("/admin/vault/rekey", handlers.RekeyVault(svc.Rekey, logger))
		})
	})

	return r
}
