package procurement

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func newTestRouter(t *testing.T) (http.Handler, fixture) {
	t.Helper()
	f := newFixture(t, ServiceConfig{})
	r := chi.NewRouter()
	NewHandler(nil, f.svc).MountRoutes(r)
	return r, f
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return rr.Code, env
}

func TestRequestEndpointsLifecycle(t *testing.T) {
	h, _ := newTestRouter(t)

	code, env := do(t, h, http.MethodPost, "/spp", `{"divisi":"Produksi","dibuatOleh":"Kepala Produksi","items":[{"kodeBarang":"BRG001","namaBarang":"Bahan Baku A","quantity":"100","satuan":"Kg"}]}`)
	require.Equal(t, http.StatusCreated, code)
	require.True(t, env.Success)
	var spp PurchaseRequest
	require.NoError(t, json.Unmarshal(env.Data, &spp))
	require.Equal(t, "SPP-001/2025", spp.Number)

	code, env = do(t, h, http.MethodPatch, "/spp/"+spp.ID, `{"divisi":"Maintenance"}`)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &spp))
	require.Equal(t, "Maintenance", spp.Division)

	code, _ = do(t, h, http.MethodPost, "/spp/"+spp.ID+"/submit", "")
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, h, http.MethodPost, "/spp/"+spp.ID+"/submit", "")
	require.Equal(t, http.StatusConflict, code)
	require.False(t, env.Success)
	require.NotEmpty(t, env.Error)

	code, env = do(t, h, http.MethodGet, "/spp", "")
	require.Equal(t, http.StatusOK, code)
	var all []PurchaseRequest
	require.NoError(t, json.Unmarshal(env.Data, &all))
	require.Len(t, all, 1)
	require.Equal(t, RequestSubmitted, all[0].Status)
}

func TestRequestEndpointsRejectBadInput(t *testing.T) {
	h, _ := newTestRouter(t)

	code, _ := do(t, h, http.MethodPost, "/spp", `{"divisi":`)
	require.Equal(t, http.StatusBadRequest, code)

	code, env := do(t, h, http.MethodPost, "/spp", `{"divisi":"Produksi"}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	fields := map[string]string{}
	require.NoError(t, json.Unmarshal(env.Data, &fields))
	require.Equal(t, "required", fields["dibuatOleh"])

	code, _ = do(t, h, http.MethodGet, "/spp/nope", "")
	require.Equal(t, http.StatusNotFound, code)

	code, _ = do(t, h, http.MethodDelete, "/spp/nope", "")
	require.Equal(t, http.StatusNotFound, code)
}

func TestOrderAndReceiptEndpoints(t *testing.T) {
	h, f := newTestRouter(t)
	spp := f.submittedRequest(t)

	code, env := do(t, h, http.MethodPost, "/sopb", `{"sppId":"`+spp.ID+`","supplierId":"`+f.supplier.ID+`"}`)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var order PurchaseOrder
	require.NoError(t, json.Unmarshal(env.Data, &order))

	code, _ = do(t, h, http.MethodPost, "/sopb/"+order.ID+"/approve", "")
	require.Equal(t, http.StatusUnprocessableEntity, code)

	for _, line := range order.Items {
		code, env = do(t, h, http.MethodPut, "/sopb/"+order.ID+"/items/"+line.ID+"/price", `{"hargaSatuan":"50000"}`)
		require.Equal(t, http.StatusOK, code, env.Error)
	}
	require.NoError(t, json.Unmarshal(env.Data, &order))
	require.Equal(t, "6000000", order.TotalValue.String())

	code, _ = do(t, h, http.MethodPost, "/sopb/"+order.ID+"/approve", "")
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, http.MethodPost, "/sopb/"+order.ID+"/send", "")
	require.Equal(t, http.StatusOK, code)

	code, env = do(t, h, http.MethodPost, "/lpb", `{"sopbId":"`+order.ID+`","suratJalan":"SJ-1","diterimaOleh":"Gudang"}`)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var receipt GoodsReceipt
	require.NoError(t, json.Unmarshal(env.Data, &receipt))

	code, _ = do(t, h, http.MethodPut, "/lpb/"+receipt.ID+"/items/"+receipt.Items[0].ID, `{"quantityDiterima":"95","kualitas":"baik"}`)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, h, http.MethodPost, "/lpb/"+receipt.ID+"/verify", "")
	require.Equal(t, http.StatusOK, code)
	code, env = do(t, h, http.MethodPost, "/lpb/"+receipt.ID+"/submit", "")
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &receipt))
	require.Equal(t, ReceiptSubmitted, receipt.Status)

	code, _ = do(t, h, http.MethodDelete, "/lpb/"+receipt.ID, "")
	require.Equal(t, http.StatusOK, code)
}

func TestSupplierEndpoints(t *testing.T) {
	h, f := newTestRouter(t)

	code, _ := do(t, h, http.MethodPost, "/suppliers", `{"nama":"CV. Material Jaya","email":"bukan-email"}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)

	code, env := do(t, h, http.MethodGet, "/suppliers/"+f.supplier.ID, "")
	require.Equal(t, http.StatusOK, code)
	var supplier Supplier
	require.NoError(t, json.Unmarshal(env.Data, &supplier))
	require.Equal(t, f.supplier.Name, supplier.Name)
}
