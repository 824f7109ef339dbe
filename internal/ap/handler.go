package ap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/platform/httpx"
)

// Handler manages invoice, voucher and payment endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: httpx.NewValidator()}
}

// MountRoutes registers /faktur, /bkk and /payment.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/faktur", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/", h.createInvoice)
		r.Get("/{id}", h.getInvoice)
	})
	r.Route("/bkk", func(r chi.Router) {
		r.Get("/", h.listVouchers)
		r.Post("/", h.createVoucher)
		r.Post("/match", h.previewMatch)
		r.Get("/summary", h.summary)
		r.Get("/aging", h.aging)
		r.Get("/{id}", h.getVoucher)
		r.Post("/{id}/authorize", h.authorize)
	})
	r.Post("/payment", h.pay)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListInvoices(r.Context())
	h.respond(w, "list faktur", http.StatusOK, items, "", err)
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var input CreateInvoiceInput
	if !h.decode(w, r, "create faktur", &input) {
		return
	}
	invoice, err := h.service.CreateInvoice(r.Context(), input)
	h.respond(w, "create faktur", http.StatusCreated, invoice, "Faktur dicatat", err)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.service.GetInvoice(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "get faktur", http.StatusOK, invoice, "", err)
}

func (h *Handler) listVouchers(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListVouchers(r.Context())
	h.respond(w, "list bkk", http.StatusOK, items, "", err)
}

func (h *Handler) createVoucher(w http.ResponseWriter, r *http.Request) {
	var input CreateVoucherInput
	if !h.decode(w, r, "create bkk", &input) {
		return
	}
	voucher, err := h.service.CreateVoucher(r.Context(), input)
	h.respond(w, "create bkk", http.StatusCreated, voucher, "BKK berhasil dibuat", err)
}

func (h *Handler) previewMatch(w http.ResponseWriter, r *http.Request) {
	var input MatchInput
	if !h.decode(w, r, "match preview", &input) {
		return
	}
	result, err := h.service.PreviewMatch(r.Context(), input)
	message := "Semua item sesuai"
	if err == nil && !result.AllMatch() {
		message = "Terdapat ketidaksesuaian"
	}
	h.respond(w, "match preview", http.StatusOK, result, message, err)
}

func (h *Handler) getVoucher(w http.ResponseWriter, r *http.Request) {
	voucher, err := h.service.GetVoucher(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "get bkk", http.StatusOK, voucher, "", err)
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) {
	var input AuthorizeInput
	raw, err := httpx.ReadRaw(r, 4<<10)
	if err == nil && len(bytes.TrimSpace(raw)) > 0 {
		if uerr := json.Unmarshal(raw, &input); uerr != nil {
			err = fmt.Errorf("%w: %v", httpx.ErrMalformedBody, uerr)
		}
	}
	if err != nil {
		httpx.RespondError(w, h.logger, "authorize bkk", err)
		return
	}
	voucher, err := h.service.AuthorizeVoucher(r.Context(), chi.URLParam(r, "id"), input)
	h.respond(w, "authorize bkk", http.StatusOK, voucher, "BKK diotorisasi", err)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.Summary(r.Context())
	h.respond(w, "bkk summary", http.StatusOK, sum, "", err)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("asOf"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Fail(w, http.StatusBadRequest, "Tanggal tidak valid", err, nil)
			return
		}
		asOf = parsed
	}
	report, err := h.service.Aging(r.Context(), asOf)
	h.respond(w, "bkk aging", http.StatusOK, report, "", err)
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	var input PaymentInput
	if !h.decode(w, r, "payment", &input) {
		return
	}
	result, err := h.service.Pay(r.Context(), input)
	h.respond(w, "payment", http.StatusOK, result, "Pembayaran berhasil diproses", err)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, op string, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, h.logger, op, err)
		return false
	}
	if err := h.validate.Struct(target); err != nil {
		httpx.RespondError(w, h.logger, op, err)
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, op string, status int, data any, message string, err error) {
	if err != nil {
		httpx.RespondError(w, h.logger, op, err)
		return
	}
	httpx.OK(w, status, data, message)
}
