package inventory

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/platform/httpx"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
)

// Handler manages warehouse endpoints.
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

// MountRoutes registers warehouse routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/kartu", h.listCards)
	r.Post("/kartu", h.createCard)
	r.Get("/kartu/rendah", h.listLowStock)
	r.Get("/kartu/{id}", h.getCard)
	r.Patch("/kartu/{id}", h.updateCard)
	r.Delete("/kartu/{id}", h.deleteCard)
	r.Get("/transaksi", h.listMovements)
	r.Post("/keluar", h.postOutbound)
}

func (h *Handler) listCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.ListCards(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, "list stock cards", err)
		return
	}
	httpx.OK(w, http.StatusOK, cards, "")
}

func (h *Handler) listLowStock(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.LowStock(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, "list low stock", err)
		return
	}
	httpx.OK(w, http.StatusOK, cards, "")
}

func (h *Handler) getCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.service.GetCard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, "get stock card", err)
		return
	}
	httpx.OK(w, http.StatusOK, card, "")
}

func (h *Handler) createCard(w http.ResponseWriter, r *http.Request) {
	var input CreateCardInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, h.logger, "create stock card", err)
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.RespondError(w, h.logger, "create stock card", err)
		return
	}
	card, err := h.service.CreateCard(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, h.logger, "create stock card", err)
		return
	}
	httpx.OK(w, http.StatusCreated, card, "Kartu gudang berhasil dibuat")
}

func (h *Handler) updateCard(w http.ResponseWriter, r *http.Request) {
	var patch CardPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, h.logger, "update stock card", err)
		return
	}
	card, err := h.service.UpdateCard(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		httpx.RespondError(w, h.logger, "update stock card", err)
		return
	}
	httpx.OK(w, http.StatusOK, card, "Kartu gudang diperbarui")
}

func (h *Handler) deleteCard(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.DeleteCard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, h.logger, "delete stock card", err)
		return
	}
	if !removed {
		httpx.RespondError(w, h.logger, "delete stock card", store.ErrNotFound)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]bool{"deleted": true}, "Kartu gudang dihapus")
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.service.ListMovements(r.Context(), r.URL.Query().Get("kodeBarang"))
	if err != nil {
		httpx.RespondError(w, h.logger, "list stock movements", err)
		return
	}
	httpx.OK(w, http.StatusOK, movements, "")
}

func (h *Handler) postOutbound(w http.ResponseWriter, r *http.Request) {
	var input OutboundInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.RespondError(w, h.logger, "post outbound", err)
		return
	}
	if err := h.validate.Struct(input); err != nil {
		httpx.RespondError(w, h.logger, "post outbound", err)
		return
	}
	card, err := h.service.PostOutbound(r.Context(), input)
	if err != nil {
		if errors.Is(err, ErrNegativeStock) {
			h.logger.Warn("outbound exceeds balance", slog.String("kodeBarang", input.ItemCode))
		}
		httpx.RespondError(w, h.logger, "post outbound", err)
		return
	}
	httpx.OK(w, http.StatusOK, card, "Pengeluaran barang dicatat")
}
