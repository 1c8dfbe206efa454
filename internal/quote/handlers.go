package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/backend-bloom/internal/common"
	"github.com/noah-isme/backend-bloom/internal/delivery"
	"github.com/noah-isme/backend-bloom/internal/discount"
	"github.com/noah-isme/backend-bloom/internal/draft"
	"github.com/noah-isme/backend-bloom/internal/tax"
	"github.com/noah-isme/backend-bloom/internal/tenant"
)

// Handler exposes quoting, discount, payment plan and draft endpoints.
type Handler struct {
	Svc      *Service
	Drafts   *draft.Store
	QR       discount.QRGenerator
	TaxCache *tax.Cached
	Queue    tax.Enqueuer
	Validate *validator.Validate
	// Expensive wraps endpoints that render images or touch the queue,
	// typically with a tighter rate limit.
	Expensive []func(http.Handler) http.Handler
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/quotes", h.Quote)
	r.Post("/discounts/validate", h.ValidateDiscount)
	r.Post("/discounts/auto-apply", h.AutoApply)
	r.With(h.Expensive...).Get("/discounts/{code}/qr", h.CouponQR)
	r.Post("/payments/plan", h.PaymentPlan)
	r.With(h.Expensive...).Post("/tax/refresh", h.RefreshTax)
	r.Route("/drafts", func(d chi.Router) {
		d.Get("/", h.ListDrafts)
		d.Post("/", h.SaveDraft)
		d.Get("/restore", h.RestoreDraft)
		d.Get("/{id}", h.GetDraft)
		d.Put("/{id}", h.SaveDraft)
		d.Delete("/{id}", h.DeleteDraft)
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return false
	}
	if h.Validate == nil {
		return true
	}
	if err := h.Validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "invalid request", fields)
			return false
		}
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return false
	}
	return true
}

// Quote prices an order.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var req Request
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.Svc.Quote(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

// ValidateDiscount checks a coupon code against a cart.
func (h *Handler) ValidateDiscount(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var req CartRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code is required", nil)
		return
	}
	res, err := h.Svc.ValidateCoupon(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.Data(w, http.StatusOK, res)
}

// AutoApply lists the automatic discounts matching a cart.
func (h *Handler) AutoApply(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var req CartRequest
	if !h.decode(w, r, &req) {
		return
	}
	applied, err := h.Svc.AutoApply(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.Data(w, http.StatusOK, applied)
}

// CouponQR renders a coupon code as a PNG QR image.
func (h *Handler) CouponQR(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	png, err := h.Svc.CouponQR(r.Context(), h.QR, chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// PaymentPlan splits a total across tenders.
func (h *Handler) PaymentPlan(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return
	}
	var req PlanRequest
	if !h.decode(w, r, &req) {
		return
	}
	plan, err := h.Svc.PlanSplit(req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.Data(w, http.StatusOK, plan)
}

// RefreshTax drops the tenant's cached rates and queues a background reload.
func (h *Handler) RefreshTax(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenant.FromContext(r.Context())
	if !ok {
		common.JSONError(w, http.StatusBadRequest, "TENANT_REQUIRED", "tenant is required", nil)
		return
	}
	if h.TaxCache != nil {
		if err := h.TaxCache.Invalidate(r.Context(), tenantID); err != nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to invalidate tax rates", nil)
			return
		}
	}
	if err := tax.EnqueueWarm(r.Context(), h.Queue, tenantID); err != nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "failed to queue tax refresh", nil)
		return
	}
	common.Data(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// ListDrafts returns the tenant's saved drafts, newest first.
func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	if h.Drafts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "draft store not configured", nil)
		return
	}
	list, err := h.Drafts.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	start, end := common.Window(page, perPage, len(list))
	common.Page(w, list[start:end], common.Pagination{Page: page, PerPage: perPage, TotalItems: len(list)})
}

// GetDraft loads one draft.
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	if h.Drafts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "draft store not configured", nil)
		return
	}
	d, err := h.Drafts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.Data(w, http.StatusOK, d)
}

// SaveDraft creates or overwrites a draft. Saving a draft without items
// deletes it.
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	if h.Drafts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "draft store not configured", nil)
		return
	}
	var d draft.Draft
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if id := strings.TrimSpace(chi.URLParam(r, "id")); id != "" {
		d.ID = id
	}
	saved, err := h.Drafts.Save(r.Context(), d)
	if errors.Is(err, draft.ErrEmpty) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	common.Data(w, http.StatusOK, saved)
}

// DeleteDraft removes a draft.
func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	if h.Drafts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "draft store not configured", nil)
		return
	}
	if err := h.Drafts.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreDraft returns the draft eligible for automatic restore, if any.
func (h *Handler) RestoreDraft(w http.ResponseWriter, r *http.Request) {
	if h.Drafts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "draft store not configured", nil)
		return
	}
	d, ok, err := h.Drafts.AutoRestore(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		common.JSON(w, http.StatusOK, common.Envelope{Meta: map[string]any{"restored": false}})
		return
	}
	common.JSON(w, http.StatusOK, common.Envelope{Data: d, Meta: map[string]any{"restored": true}})
}

func writeServiceError(w http.ResponseWriter, err error) {
	if common.WriteAppError(w, err) {
		return
	}
	switch {
	case errors.Is(err, draft.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "draft not found", nil)
	case errors.Is(err, discount.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "discount not found", nil)
	case errors.Is(err, ErrDiscountsUnavailable),
		errors.Is(err, discount.ErrStoreUnavailable),
		errors.Is(err, delivery.ErrStoreUnavailable),
		errors.Is(err, tax.ErrUnavailable):
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
