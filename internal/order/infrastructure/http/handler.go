package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	inventoryDomain "github.com/shophub/order-fulfillment/internal/inventory/domain"
	"github.com/shophub/order-fulfillment/internal/order/application"
	"github.com/shophub/order-fulfillment/internal/order/domain"
	userDomain "github.com/shophub/order-fulfillment/internal/user/domain"
	"github.com/shophub/order-fulfillment/pkg/idempotency"
)

// userHeader carries the already-resolved identity; authentication lives
// upstream of this service.
const userHeader = "X-User-ID"

type Handler struct {
	log     *slog.Logger
	service *application.Service
	queries *application.QueryService
	idem    *idempotency.Store
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service *application.Service, queries *application.QueryService, idem *idempotency.Store) *Handler {
	return &Handler{
		log:     log,
		service: service,
		queries: queries,
		idem:    idem,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listUserOrders)
	r.Get("/orders/{orderID}", h.getOrder)

	r.Route("/admin/orders", func(r chi.Router) {
		r.Get("/", h.listAllOrders)
		r.Post("/{orderID}/confirm-payment", h.confirmPayment)
		r.Post("/{orderID}/ship", h.markShipped)
		r.Post("/{orderID}/deliver", h.markDelivered)
		r.Post("/{orderID}/cancel", h.cancel)
		r.Put("/{orderID}/status", h.updateStatus)
		r.Patch("/{orderID}", h.adminUpdate)
	})

	return r
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	userID := r.Header.Get(userHeader)
	if userID == "" {
		http.Error(w, "missing user identity", http.StatusUnauthorized)
		return
	}

	if key := r.Header.Get("Idempotency-Key"); key != "" && h.idem != nil {
		seen, err := h.idem.Seen(ctx, h.idem.Key(userID, key))
		if err != nil {
			h.log.Warn("idempotency check failed", "user_id", userID, "err", err)
		} else if seen {
			http.Error(w, "duplicate checkout request", http.StatusConflict)
			return
		}
	}

	var req application.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	o, err := h.service.CreateOrder(ctx, userID, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	userID := r.Header.Get(userHeader)
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}
	o, err := h.queries.GetOrder(ctx, userID, orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListUserOrders")
	defer span.End()

	orders, err := h.queries.ListUserOrders(ctx, r.Header.Get(userHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListAllOrders")
	defer span.End()

	orders, err := h.queries.ListAllOrders(ctx, r.URL.Query().Get("status"), r.URL.Query().Get("search"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ConfirmPayment")
	defer span.End()

	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}
	o, err := h.service.ConfirmPayment(ctx, r.Header.Get(userHeader), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) markShipped(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MarkShipped")
	defer span.End()

	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req struct {
		TrackingNumber   string `json:"tracking_number"`
		ShippingProvider string `json:"shipping_provider"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}
	o, err := h.service.MarkShipped(ctx, r.Header.Get(userHeader), orderID, req.TrackingNumber, req.ShippingProvider)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) markDelivered(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MarkDelivered")
	defer span.End()

	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req struct {
		ConfirmationProvided bool `json:"confirmation_provided"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
	}
	o, err := h.service.MarkDelivered(ctx, r.Header.Get(userHeader), orderID, req.ConfirmationProvided)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CancelOrder")
	defer span.End()

	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}
	o, err := h.service.Cancel(ctx, r.Header.Get(userHeader), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateStatus")
	defer span.End()

	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	o, err := h.service.UpdateStatus(ctx, r.Header.Get(userHeader), orderID, req.Status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) adminUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AdminUpdateOrder")
	defer span.End()

	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var patch application.AdminOrderPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	o, err := h.service.AdminUpdateOrder(ctx, r.Header.Get(userHeader), orderID, patch)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid order id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response failed", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidOrderRequest),
		errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrMissingConfirmation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountRestricted):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, inventoryDomain.ErrProductNotFound),
		errors.Is(err, userDomain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, inventoryDomain.ErrInsufficientStock),
		errors.Is(err, domain.ErrIllegalTransition):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", "err", err)
		http.Error(w, "internal error", status)
		return
	}
	http.Error(w, err.Error(), status)
}
