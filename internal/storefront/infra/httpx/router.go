package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jcmexdev/storefront/internal/pkg/metrics"
	"github.com/jcmexdev/storefront/internal/storefront/infra/httpx/middlewares"
)

type RouterConfig struct {
	JWTSecret []byte
	// CheckoutLimiter may be nil.
	CheckoutLimiter *middlewares.UserRateLimiter
	Metrics         *metrics.ServerMetrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler
	// Ready backs /healthz; nil means always ready.
	Ready func(r *http.Request) error
}

func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.AttachRequestID)
	r.Use(middlewares.Observe(cfg.Metrics))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(req); err != nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Post("/webhooks/payment", h.PaymentWebhook)
	r.Post("/webhooks/identity", h.IdentityWebhook)

	r.Group(func(r chi.Router) {
		r.Use(middlewares.Authenticate(cfg.JWTSecret))

		r.Get("/cart", h.GetCart)
		r.Post("/cart/items", h.AddCartItem)
		r.Patch("/cart/items/{itemId}", h.UpdateCartItem)
		r.Delete("/cart/items/{itemId}", h.RemoveCartItem)

		r.Group(func(r chi.Router) {
			if cfg.CheckoutLimiter != nil {
				r.Use(cfg.CheckoutLimiter.Middleware)
			}
			r.Post("/checkout", h.CreateCheckout)
		})

		r.Get("/orders", h.ListMyOrders)
		r.Get("/orders/{id}", h.GetMyOrder)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewares.RequireAdmin(h.Users))
			r.Get("/orders", h.ListAllOrders)
			r.Patch("/orders/{id}", h.UpdateOrderStatus)
			r.Get("/orders/{id}/payment-log", h.GetOrderPaymentLog)
		})
	})

	return otelhttp.NewHandler(r, "storefront.http",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}
