package procurement

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/platform/httpx"
	"github.com/klarsdoc/sistem-pembelian-kredit-manufaktur/internal/store"
)

const maxPatchBytes = 64 << 10

// Handler manages procurement endpoints.
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

// MountRoutes registers supplier, SPP, SOPb and LPB routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", h.listSuppliers)
		r.Post("/", h.createSupplier)
		r.Get("/{id}", h.getSupplier)
	})
	r.Route("/spp", func(r chi.Router) {
		r.Get("/", h.listRequests)
		r.Post("/", h.createRequest)
		r.Get("/{id}", h.getRequest)
		r.Patch("/{id}", h.updateRequest)
		r.Delete("/{id}", h.deleteRequest)
		r.Post("/{id}/items", h.addRequestLine)
		r.Delete("/{id}/items/{itemId}", h.removeRequestLine)
		r.Post("/{id}/submit", h.submitRequest)
	})
	r.Route("/sopb", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/", h.createOrder)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}", h.updateOrder)
		r.Delete("/{id}", h.deleteOrder)
		r.Put("/{id}/items/{itemId}/price", h.setUnitPrice)
		r.Post("/{id}/approve", h.approveOrder)
		r.Post("/{id}/send", h.sendOrder)
	})
	r.Route("/lpb", func(r chi.Router) {
		r.Get("/", h.listReceipts)
		r.Post("/", h.createReceipt)
		r.Get("/{id}", h.getReceipt)
		r.Patch("/{id}", h.updateReceipt)
		r.Delete("/{id}", h.deleteReceipt)
		r.Put("/{id}/items/{itemId}", h.recordReceiptLine)
		r.Post("/{id}/verify", h.verifyReceipt)
		r.Post("/{id}/submit", h.SubmitReceiptToWarehouse)
	})
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListSuppliers(r.Context())
	h.respond(w, "list suppliers", http.StatusOK, items, "", err)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var input SupplierInput
	if !h.decode(w, r, "create supplier", &input) {
		return
	}
	supplier, err := h.service.CreateSupplier(r.Context(), input)
	h.respond(w, "create supplier", http.StatusCreated, supplier, "Supplier berhasil ditambahkan", err)
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	supplier, err := h.service.GetSupplier(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "get supplier", http.StatusOK, supplier, "", err)
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListRequests(r.Context())
	h.respond(w, "list spp", http.StatusOK, items, "", err)
}

func (h *Handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var input CreateRequestInput
	if !h.decode(w, r, "create spp", &input) {
		return
	}
	spp, err := h.service.CreateRequest(r.Context(), input)
	h.respond(w, "create spp", http.StatusCreated, spp, "SPP berhasil dibuat", err)
}

func (h *Handler) getRequest(w http.ResponseWriter, r *http.Request) {
	spp, err := h.service.GetRequest(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "get spp", http.StatusOK, spp, "", err)
}

func (h *Handler) updateRequest(w http.ResponseWriter, r *http.Request) {
	patch, err := httpx.ReadRaw(r, maxPatchBytes)
	if err != nil {
		httpx.RespondError(w, h.logger, "update spp", err)
		return
	}
	spp, err := h.service.UpdateRequest(r.Context(), chi.URLParam(r, "id"), patch)
	h.respond(w, "update spp", http.StatusOK, spp, "SPP diperbarui", err)
}

func (h *Handler) deleteRequest(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.DeleteRequest(r.Context(), chi.URLParam(r, "id"))
	h.respondDelete(w, "delete spp", removed, err)
}

func (h *Handler) addRequestLine(w http.ResponseWriter, r *http.Request) {
	var input RequestLineInput
	if !h.decode(w, r, "add spp item", &input) {
		return
	}
	spp, err := h.service.AddRequestLine(r.Context(), chi.URLParam(r, "id"), input)
	h.respond(w, "add spp item", http.StatusOK, spp, "Item ditambahkan", err)
}

func (h *Handler) removeRequestLine(w http.ResponseWriter, r *http.Request) {
	spp, err := h.service.RemoveRequestLine(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemId"))
	h.respond(w, "remove spp item", http.StatusOK, spp, "Item dihapus", err)
}

func (h *Handler) submitRequest(w http.ResponseWriter, r *http.Request) {
	spp, err := h.service.SubmitRequest(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "submit spp", http.StatusOK, spp, "SPP diajukan ke bagian pembelian", err)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListOrders(r.Context())
	h.respond(w, "list sopb", http.StatusOK, items, "", err)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var input CreateOrderInput
	if !h.decode(w, r, "create sopb", &input) {
		return
	}
	order, err := h.service.CreateOrderFromRequest(r.Context(), input)
	h.respond(w, "create sopb", http.StatusCreated, order, "SOPb berhasil dibuat", err)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrder(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "get sopb", http.StatusOK, order, "", err)
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	patch, err := httpx.ReadRaw(r, maxPatchBytes)
	if err != nil {
		httpx.RespondError(w, h.logger, "update sopb", err)
		return
	}
	order, err := h.service.UpdateOrder(r.Context(), chi.URLParam(r, "id"), patch)
	h.respond(w, "update sopb", http.StatusOK, order, "SOPb diperbarui", err)
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.DeleteOrder(r.Context(), chi.URLParam(r, "id"))
	h.respondDelete(w, "delete sopb", removed, err)
}

func (h *Handler) setUnitPrice(w http.ResponseWriter, r *http.Request) {
	var input SetPriceInput
	if !h.decode(w, r, "set sopb price", &input) {
		return
	}
	order, err := h.service.SetUnitPrice(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemId"), input)
	h.respond(w, "set sopb price", http.StatusOK, order, "Harga diperbarui", err)
}

func (h *Handler) approveOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.ApproveOrder(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "approve sopb", http.StatusOK, order, "SOPb disetujui", err)
}

func (h *Handler) sendOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.SendOrder(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "send sopb", http.StatusOK, order, "SOPb dikirim ke supplier", err)
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListReceipts(r.Context())
	h.respond(w, "list lpb", http.StatusOK, items, "", err)
}

func (h *Handler) createReceipt(w http.ResponseWriter, r *http.Request) {
	var input CreateReceiptInput
	if !h.decode(w, r, "create lpb", &input) {
		return
	}
	receipt, err := h.service.CreateReceipt(r.Context(), input)
	h.respond(w, "create lpb", http.StatusCreated, receipt, "LPB berhasil dibuat", err)
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.service.GetReceipt(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "get lpb", http.StatusOK, receipt, "", err)
}

func (h *Handler) updateReceipt(w http.ResponseWriter, r *http.Request) {
	patch, err := httpx.ReadRaw(r, maxPatchBytes)
	if err != nil {
		httpx.RespondError(w, h.logger, "update lpb", err)
		return
	}
	receipt, err := h.service.UpdateReceipt(r.Context(), chi.URLParam(r, "id"), patch)
	h.respond(w, "update lpb", http.StatusOK, receipt, "LPB diperbarui", err)
}

func (h *Handler) deleteReceipt(w http.ResponseWriter, r *http.Request) {
	removed, err := h.service.DeleteReceipt(r.Context(), chi.URLParam(r, "id"))
	h.respondDelete(w, "delete lpb", removed, err)
}

func (h *Handler) recordReceiptLine(w http.ResponseWriter, r *http.Request) {
	var input ReceiptLineInput
	if !h.decode(w, r, "record lpb item", &input) {
		return
	}
	receipt, err := h.service.RecordReceiptLine(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemId"), input)
	h.respond(w, "record lpb item", http.StatusOK, receipt, "Item LPB diperbarui", err)
}

func (h *Handler) verifyReceipt(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.service.VerifyReceipt(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "verify lpb", http.StatusOK, receipt, "LPB diverifikasi", err)
}

// SubmitReceiptToWarehouse posts a verified LPB to the stock ledger.
func (h *Handler) SubmitReceiptToWarehouse(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.service.SubmitReceiptToWarehouse(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, "submit lpb to warehouse", http.StatusOK, receipt, "LPB diproses ke kartu gudang", err)
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

func (h *Handler) respondDelete(w http.ResponseWriter, op string, removed bool, err error) {
	if err == nil && !removed {
		err = store.ErrNotFound
	}
	h.respond(w, op, http.StatusOK, map[string]bool{"deleted": removed}, "Data dihapus", err)
}
