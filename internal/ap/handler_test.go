package ap

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

func serve(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	return rr.Code, env
}

func newTestRouter(t *testing.T) (http.Handler, *Service) {
	t.Helper()
	svc, _ := newTestService(t, ServiceConfig{})
	r := chi.NewRouter()
	NewHandler(nil, svc).MountRoutes(r)
	return r, svc
}

func TestVoucherEndpointsRejectDiscrepancyWithLines(t *testing.T) {
	h, _ := newTestRouter(t)

	code, env := serve(t, h, http.MethodPost, "/faktur", `{"nomor":"INV-90","sopbId":"sopb-1","items":[{"kodeBarang":"BRG001","quantity":"90","hargaSatuan":"50000"}]}`)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var inv Invoice
	require.NoError(t, json.Unmarshal(env.Data, &inv))

	code, env = serve(t, h, http.MethodPost, "/bkk/match", `{"sopbId":"sopb-1","lpbId":"lpb-1","fakturId":"`+inv.ID+`"}`)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Terdapat ketidaksesuaian", env.Message)

	code, env = serve(t, h, http.MethodPost, "/bkk", `{"sopbId":"sopb-1","lpbId":"lpb-1","fakturId":"`+inv.ID+`","dibuatOleh":"Staff Akuntansi"}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	require.False(t, env.Success)
	var lines []MatchLine
	require.NoError(t, json.Unmarshal(env.Data, &lines))
	require.Len(t, lines, 1)
	require.Equal(t, "BRG001", lines[0].ItemCode)
	require.Equal(t, NoteDiscrepancy, lines[0].Note)

	code, env = serve(t, h, http.MethodGet, "/bkk", "")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "[]", string(env.Data))
}

func TestVoucherEndpointsHappyPath(t *testing.T) {
	h, svc := newTestRouter(t)
	inv := mustInvoice(t, svc, "INV-1", "sopb-1")

	code, env := serve(t, h, http.MethodPost, "/bkk", `{"sopbId":"sopb-1","lpbId":"lpb-1","fakturId":"`+inv.ID+`"}`)
	require.Equal(t, http.StatusCreated, code, env.Error)
	var v Voucher
	require.NoError(t, json.Unmarshal(env.Data, &v))
	require.Equal(t, VoucherVerified, v.Status)

	code, _ = serve(t, h, http.MethodPost, "/payment", `{"bkkId":"`+v.ID+`","metodePembayaran":"transfer","referensiPembayaran":"TRF-1"}`)
	require.Equal(t, http.StatusConflict, code)

	code, env = serve(t, h, http.MethodPost, "/bkk/"+v.ID+"/authorize", "")
	require.Equal(t, http.StatusOK, code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &v))
	require.Equal(t, DefaultAuthorizer, v.AuthorizedBy)

	code, env = serve(t, h, http.MethodPost, "/payment", `{"bkkId":"`+v.ID+`","metodePembayaran":"transfer"}`)
	require.Equal(t, http.StatusUnprocessableEntity, code)
	fields := map[string]string{}
	require.NoError(t, json.Unmarshal(env.Data, &fields))
	require.Equal(t, "required", fields["referensiPembayaran"])

	code, env = serve(t, h, http.MethodPost, "/payment", `{"bkkId":"`+v.ID+`","metodePembayaran":"transfer","referensiPembayaran":"TRF-1","dibayarOleh":"Kasir"}`)
	require.Equal(t, http.StatusOK, code, env.Error)
	var paid PaymentResult
	require.NoError(t, json.Unmarshal(env.Data, &paid))
	require.Equal(t, VoucherPaid, paid.Status)
	require.False(t, paid.ProcessedAt.IsZero())

	code, env = serve(t, h, http.MethodGet, "/bkk/summary", "")
	require.Equal(t, http.StatusOK, code)
	var sum Summary
	require.NoError(t, json.Unmarshal(env.Data, &sum))
	require.Equal(t, 1, sum.Count)
	require.True(t, sum.Paid.Equal(dec(5000000)))
}

func TestAgingEndpointValidatesDate(t *testing.T) {
	h, _ := newTestRouter(t)
	code, _ := serve(t, h, http.MethodGet, "/bkk/aging?asOf=17-06-2025", "")
	require.Equal(t, http.StatusBadRequest, code)

	code, env := serve(t, h, http.MethodGet, "/bkk/aging?asOf=2025-06-17", "")
	require.Equal(t, http.StatusOK, code)
	var report AgingReport
	require.NoError(t, json.Unmarshal(env.Data, &report))
	require.Empty(t, report.Suppliers)
}

func TestUnknownVoucherIsNotFound(t *testing.T) {
	h, _ := newTestRouter(t)
	code, env := serve(t, h, http.MethodGet, "/bkk/missing", "")
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, "Data tidak ditemukan", env.Message)
}
