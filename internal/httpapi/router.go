package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

type RouterConfig struct {
	JWTSecret      string
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter assembles the API surface. Everything under /api/v1 requires a
// valid bearer token; the payment verification endpoint is additionally
// rate limited per client IP.
func NewRouter(cfg RouterConfig, addresses *AddressHandler, carts *CartHandler, checkouts *CheckoutHandler, orders *OrdersHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(JWTAuth(cfg.JWTSecret))

		r.Route("/addresses", func(r chi.Router) {
			r.Get("/", addresses.List)
			r.Post("/", addresses.Create)
			r.Put("/{address_id}", addresses.Update)
			r.Delete("/{address_id}", addresses.Delete)
		})
		r.Get("/pincode-lookup", addresses.PincodeLookup)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", carts.GetCart)
			r.Delete("/", carts.ClearCart)
			r.Post("/items", carts.AddItem)
			r.Put("/items/{product_id}", carts.UpdateQuantity)
			r.Delete("/items/{product_id}", carts.RemoveItem)
			r.Post("/coupon", carts.ApplyCoupon)
			r.Delete("/coupon", carts.RemoveCoupon)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", checkouts.Submit)
			r.Post("/session", checkouts.Begin)
			r.Route("/session/{session_id}", func(r chi.Router) {
				r.Get("/", checkouts.GetSession)
				r.Put("/addresses", checkouts.SelectAddresses)
				r.Post("/continue", checkouts.Continue)
				r.Post("/back", checkouts.Back)
				r.Post("/dismiss", checkouts.Dismiss)
			})
		})

		r.With(ipRateLimit(rate.Limit(1), 5)).
			Post("/payment/verify", checkouts.Verify)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.List)
			r.Get("/{order_id}", orders.Get)
		})
	})

	return r
}
