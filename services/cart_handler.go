// services/cart_handler.go

package services

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/norun9/gomarket-cart/cartstore"
)

type ctxKeyLog struct{}

// CartHandler serves the cart over HTTP.
type CartHandler struct {
	log    logrus.FieldLogger
	tracer trace.Tracer
}

type cartResponse struct {
	Products []cartstore.LineItem `json:"products"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter returns the cart API. Every request runs with store installed in its context.
func NewRouter(store *cartstore.Store, log logrus.FieldLogger) *mux.Router {
	h := &CartHandler{
		log:    log,
		tracer: otel.Tracer("cartservice"),
	}

	r := mux.NewRouter()
	r.Use(otelmux.Middleware("cartservice"))
	r.Use(h.requestScope(store))

	r.HandleFunc("/cart", h.getCart).Methods(http.MethodGet)
	r.HandleFunc("/cart/items", h.addToCart).Methods(http.MethodPost)
	r.HandleFunc("/cart/items/{id}/increment", h.increment).Methods(http.MethodPost)
	r.HandleFunc("/cart/items/{id}/decrement", h.decrement).Methods(http.MethodPost)
	return r
}

// requestScope installs the store and a request-scoped logger.
func (h *CartHandler) requestScope(store *cartstore.Store) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-Id")
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", requestID)

			log := h.log.WithFields(logrus.Fields{
				"http.req.id":     requestID,
				"http.req.path":   r.URL.Path,
				"http.req.method": r.Method,
			})
			ctx := cartstore.NewContext(r.Context(), store)
			ctx = context.WithValue(ctx, ctxKeyLog{}, log)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	_, span := h.tracer.Start(r.Context(), "GetCart")
	defer span.End()

	store := cartstore.FromContext(r.Context())
	writeJSON(w, r, http.StatusOK, cartResponse{Products: store.Products()})
}

func (h *CartHandler) addToCart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AddToCart")
	defer span.End()

	var p cartstore.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		h.renderError(w, r, errors.Wrap(err, "decode product"), http.StatusBadRequest)
		return
	}
	if p.ID == "" {
		h.renderError(w, r, errors.New("product id is required"), http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("app.product_id", p.ID))

	store := cartstore.FromContext(ctx)
	products, err := store.AddToCart(ctx, p)
	if err != nil {
		h.renderError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, cartResponse{Products: products})
}

func (h *CartHandler) increment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Increment")
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("app.product_id", id))

	store := cartstore.FromContext(ctx)
	products, err := store.Increment(ctx, id)
	if err != nil {
		h.renderError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, cartResponse{Products: products})
}

func (h *CartHandler) decrement(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "Decrement")
	defer span.End()

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("app.product_id", id))

	store := cartstore.FromContext(ctx)
	products, err := store.Decrement(ctx, id)
	if err != nil {
		h.renderError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, cartResponse{Products: products})
}

func (h *CartHandler) renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	log := requestLog(r, h.log)
	if code >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	} else {
		log.WithError(err).Debug("request rejected")
	}
	writeJSON(w, r, code, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, cartstore.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, cartstore.ErrClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		requestLog(r, logrus.StandardLogger()).WithError(err).Warn("failed to write response")
	}
}

func requestLog(r *http.Request, fallback logrus.FieldLogger) logrus.FieldLogger {
	if log, ok := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger); ok {
		return log
	}
	return fallback
}
