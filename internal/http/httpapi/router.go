package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"camclip/internal/http/handlers"
	"camclip/internal/infra"
	"camclip/internal/middleware"
)

// Options configures the router's middleware stack.
type Options struct {
	Logger          infra.Logger
	CORSOrigins     []string
	RateLimitPerMin int
	OperatorSecret  string
	CountryLookup   middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
		middleware.I18N("en", opts.CountryLookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/files/*", app.File)

	// The webhook is called by Stripe and must not be throttled per IP.
	r.Post("/stripe-webhook", app.StripeWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))

		r.Route("/analysis", func(r chi.Router) {
			r.Post("/", app.AnalysisCreate)
			r.Get("/{id}", app.AnalysisGet)
			r.Post("/{id}/prompts", app.AnalysisMorePrompts)
			r.Post("/{id}/prompts/{promptID}/select", app.AnalysisSelectPrompt)
		})
		r.Patch("/prompts/{promptID}", app.PromptEdit)

		r.Post("/order/create", app.OrderCreate)
		r.Get("/order/status", app.OrderStatus)
	})

	r.Route("/process-video-queue", func(r chi.Router) {
		r.Get("/", app.OrderStatus)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOperator(opts.OperatorSecret))
			r.Post("/", app.ProcessQueue)
			r.Patch("/", app.RetryQueue)
		})
	})

	return r
}
