// Package v1 wires the HTTP surface of the chart of accounts and installment
// scheduler. Handlers stay thin and leave business rules to the service layer.
package v1

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/tinoosan/bizledger/internal/service/account"
	"github.com/tinoosan/bizledger/internal/service/condition"
	"github.com/tinoosan/bizledger/internal/service/journal"
	"github.com/tinoosan/bizledger/internal/service/sales"
	"github.com/tinoosan/bizledger/internal/service/schedule"
)

// Services bundles the domain services the API delegates to.
type Services struct {
	Accounts   account.Service
	Conditions condition.Service
	Sales      sales.Service
	Schedule   schedule.Service
	Journal    journal.Service
}

// Options tunes the middleware stack.
type Options struct {
	// Currency is used when a request omits one.
	Currency string
	// RateLimitPerMinute caps requests per client IP; zero disables the limit.
	RateLimitPerMinute int
	// Production turns on HTTPS redirects and HSTS.
	Production bool
}

// Server wires handlers and middleware using Chi.
type Server struct {
	accounts   account.Service
	conditions condition.Service
	sales      sales.Service
	schedule   schedule.Service
	journal    journal.Service
	ready      ReadyChecker
	validate   *validator.Validate
	currency   string
	log        *slog.Logger
	rt         *chi.Mux
}

// New constructs the HTTP server with routes and middleware. ready may be nil.
func New(svc Services, ready ReadyChecker, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)
	r.Use(securityHeaders(opts.Production))
	if opts.RateLimitPerMinute > 0 {
		r.Use(httprate.Limit(opts.RateLimitPerMinute, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	}

	s := &Server{
		accounts:   svc.Accounts,
		conditions: svc.Conditions,
		sales:      svc.Sales,
		schedule:   svc.Schedule,
		journal:    svc.Journal,
		ready:      ready,
		validate:   newValidator(),
		currency:   strings.ToUpper(opts.Currency),
		log:        logger,
		rt:         r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints and attaches any per-route middleware.
func (s *Server) routes() {
	s.rt.Route("/v1", func(r chi.Router) {
		// Chart of accounts
		r.With(s.validatePostAccount()).Post("/accounts", s.postAccount)
		r.Get("/accounts", s.listAccounts)
		r.Get("/accounts/tree", s.accountTree)
		r.Get("/accounts/next-code", s.nextCode)
		r.Get("/accounts/eligible-parents", s.eligibleParents)
		r.Get("/accounts/posting", s.postingAccounts)
		r.Get("/accounts/export.xlsx", s.exportChart)
		r.Get("/accounts/{id}", s.getAccount)
		r.With(s.validatePatchAccount()).Patch("/accounts/{id}", s.patchAccount)
		r.Delete("/accounts/{id}", s.deleteAccount)
		r.Get("/accounts/{id}/balance", s.accountBalance)

		// Payment conditions
		r.With(s.validateCondition()).Post("/payment-conditions", s.postCondition)
		r.Get("/payment-conditions", s.listConditions)
		r.With(s.validateDistribute()).Post("/payment-conditions/distribute", s.distribute)
		r.Get("/payment-conditions/{id}", s.getCondition)
		r.With(s.validateCondition()).Put("/payment-conditions/{id}", s.putCondition)
		r.Delete("/payment-conditions/{id}", s.deleteCondition)

		// Sales and receivables
		r.With(s.validatePostSale()).Post("/sales", s.postSale)
		r.Get("/sales", s.listSales)
		r.Get("/sales/{id}", s.getSale)
		r.Post("/sales/{id}/approve", s.approveSale)
		r.Post("/sales/{id}/cancel", s.cancelSale)
		r.Post("/sales/{id}/invoice", s.invoiceSale)
		r.With(s.validatePreview()).Post("/schedule/preview", s.previewSchedule)
		r.Get("/receivables", s.listReceivables)
		r.Get("/receivables/export.xlsx", s.exportReceivables)

		// Journal
		r.With(s.validatePostEntry()).Post("/entries", s.postEntry)
		r.Get("/entries", s.listEntries)

		r.Get("/dictionary/account-types", s.accountTypesDictionary)
	})

	// Ops (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Handle("/metrics", metricsHandler())
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
