package httppresentation

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	appcart "github.com/Zhima-Mochi/minishop-commerce/internal/application/cart"
	apporder "github.com/Zhima-Mochi/minishop-commerce/internal/application/order"
	"github.com/Zhima-Mochi/minishop-commerce/internal/observability"
)

const (
	componentHTTPHandler = "http_server"
	headerIdempotencyKey = "Idempotency-Key"
	maxBodyBytes         = 1 << 20
)

// Deps are the collaborators of the HTTP surface. Gatherer, when set, is
// served on /metrics.
type Deps struct {
	Cart      *appcart.Service
	Orders    *apporder.CreateOrderUseCase
	Lifecycle *apporder.LifecycleService
	Auth      *Authenticator
	Gatherer  prometheus.Gatherer
	Logger    observability.Logger
	Telemetry observability.Observability

	OrderRateLimitRPS   float64
	OrderRateLimitBurst int
	CORSAllowedOrigins  []string
}

type Handler struct {
	cart      *appcart.Service
	orders    *apporder.CreateOrderUseCase
	lifecycle *apporder.LifecycleService
	auth      *Authenticator
	gatherer  prometheus.Gatherer
	limiter   *clientLimiter
	origins   []string

	log     observability.Logger
	metrics observability.Metrics
}

func NewHandler(d Deps) *Handler {
	_, logger, metrics := observability.Resolve(d.Telemetry)
	if d.Logger != nil {
		logger = d.Logger
	}
	auth := d.Auth
	if auth == nil {
		auth = NewAuthenticator("")
	}
	h := &Handler{
		cart:      d.Cart,
		orders:    d.Orders,
		lifecycle: d.Lifecycle,
		auth:      auth,
		gatherer:  d.Gatherer,
		origins:   d.CORSAllowedOrigins,
		log:       logger.With(observability.F("component", componentHTTPHandler)),
		metrics:   metrics,
	}
	if d.OrderRateLimitRPS > 0 && d.OrderRateLimitBurst > 0 {
		h.limiter = newClientLimiter(d.OrderRateLimitRPS, d.OrderRateLimitBurst)
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeInvalidInput, "method not allowed", nil)
	})

	// Each route: Trace → Request Logger → Access Log → Metrics → route middleware → Handler
	h.handle(r, http.MethodGet, "/health", h.handleHealth)
	if h.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}

	h.handle(r, http.MethodGet, "/cart", h.handleGetCart, h.optionalAuth, h.withSession)
	h.handle(r, http.MethodGet, "/cart/summary", h.handleCartSummary, h.optionalAuth, h.withSession)
	h.handle(r, http.MethodPost, "/cart/items", h.handleAddCartItem, h.optionalAuth, h.withSession)
	h.handle(r, http.MethodPatch, "/cart/items/{productID}", h.handleUpdateCartItem, h.optionalAuth, h.withSession)
	h.handle(r, http.MethodDelete, "/cart/items/{productID}", h.handleRemoveCartItem, h.optionalAuth, h.withSession)
	h.handle(r, http.MethodDelete, "/cart", h.handleClearCart, h.optionalAuth, h.withSession)
	h.handle(r, http.MethodPost, "/cart/merge", h.handleMergeCart, h.requireAuth)
	h.handle(r, http.MethodPost, "/cart/checkout", h.handleCheckout, h.optionalAuth, h.withSession, h.withRateLimit)

	h.handle(r, http.MethodPost, "/orders", h.handleCreateOrder, h.optionalAuth, h.withRateLimit)
	h.handle(r, http.MethodGet, "/orders", h.handleListOrders, h.requireAdmin)
	h.handle(r, http.MethodGet, "/orders/mine", h.handleMyOrders, h.requireAuth)
	h.handle(r, http.MethodGet, "/orders/stats", h.handleOrderStats, h.requireAdmin)
	h.handle(r, http.MethodGet, "/orders/{id}", h.handleGetOrder, h.requireAuth)
	h.handle(r, http.MethodPatch, "/orders/{id}/status", h.handleUpdateOrderStatus, h.requireAdmin)
	h.handle(r, http.MethodPatch, "/orders/{id}/payment-status", h.handleUpdatePaymentStatus, h.requireAdmin)
	h.handle(r, http.MethodDelete, "/orders/{id}", h.handleCancelOrder, h.requireAuth)

	return h.withCORS(r)
}

func (h *Handler) handle(r chi.Router, method, route string, handler http.HandlerFunc, mws ...func(http.Handler) http.Handler) {
	var inner http.Handler = handler
	for i := len(mws) - 1; i >= 0; i-- {
		inner = mws[i](inner)
	}

	wrapped := h.withTrace(
		ObservabilityMiddleware(h.log, func(r *http.Request) string {
			return r.Header.Get(headerRequestID)
		})(
			h.withAccessLog(
				h.withHTTPMetrics(inner),
			),
		),
	)

	r.Method(method, route, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		// Store stable route template for low-cardinality labels
		wrapped.ServeHTTP(w, req.WithContext(contextWithRoute(req.Context(), route)))
	}))
}

func (h *Handler) withCORS(next http.Handler) http.Handler {
	origins := h.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", headerSessionID, headerIdempotencyKey, headerRequestID},
		ExposedHeaders: []string{headerSessionID, headerRequestID},
	}).Handler(next)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return invalid("body", "request body is required")
		}
		var syntax *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntax) || errors.As(err, &typeErr) {
			return err
		}
		return invalid("body", err.Error())
	}
	return nil
}
