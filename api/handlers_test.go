package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/credit-engine/api"
	"github.com/voyago/credit-engine/ledger"
	"github.com/voyago/credit-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine := ledger.NewEngine(store.NewTxMemory())
	handler := api.NewHandler(engine, nil)
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		decoded = nil
	}
	return resp, decoded
}

func doJSONList(t *testing.T, url string) (*http.Response, []map[string]any) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// =============================================================================
// CREDIT ENDPOINT TESTS
// =============================================================================

func TestAPI_CreateAndListCredits(t *testing.T) {
	srv := newTestServer(t)

	resp, created := doJSON(t, http.MethodPost, srv.URL+"/api/clients/maria/credits", map[string]any{
		"valor_credito":   "2500.00",
		"data_pagamento":  "2026-02-01",
		"forma_pagamento": "pix",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "2500.00", created["valor_credito"])
	assert.Equal(t, "2500.00", created["saldo_disponivel"])
	assert.Equal(t, "disponivel", created["status"])
	assert.Equal(t, "maria", created["cliente_id"])

	listResp, credits := doJSONList(t, srv.URL+"/api/clients/maria/credits")
	require.Equal(t, http.StatusOK, listResp.StatusCode)
	require.Len(t, credits, 1)
	assert.Equal(t, created["id"], credits[0]["id"])
}

func TestAPI_CreateCredit_InvalidAmount(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/clients/maria/credits", map[string]any{
		"valor_credito": "not-a-number",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/api/clients/maria/credits", map[string]any{
		"valor_credito": "-100",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetCredit_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/credits/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

// =============================================================================
// ALLOCATION ENDPOINT TESTS
// =============================================================================

func createCreditHTTP(t *testing.T, srv *httptest.Server, client, amount string) string {
	t.Helper()
	resp, created := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/clients/%s/credits", srv.URL, client),
		map[string]any{"valor_credito": amount, "data_pagamento": "2026-02-01"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return created["id"].(string)
}

func TestAPI_AllocateAndStatement(t *testing.T) {
	srv := newTestServer(t)
	creditID := createCreditHTTP(t, srv, "maria", "1000.00")

	resp, allocation := doJSON(t, http.MethodPost,
		srv.URL+"/api/credits/"+creditID+"/allocations",
		map[string]any{"viagem_id": "gramado-07", "valor_utilizado": "400.00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "gramado-07", allocation["viagem_id"])
	assert.Equal(t, "400.00", allocation["valor_utilizado"])

	// The credit reflects the consumption.
	resp, credit := doJSON(t, http.MethodGet, srv.URL+"/api/credits/"+creditID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "parcial", credit["status"])
	assert.Equal(t, "600.00", credit["saldo_disponivel"])

	// The statement carries both entries with a chained running balance.
	resp, statement := doJSON(t, http.MethodGet, srv.URL+"/api/clients/maria/statement", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	movements := statement["movimentacoes"].([]any)
	require.Len(t, movements, 2)

	first := movements[0].(map[string]any)
	second := movements[1].(map[string]any)
	assert.Equal(t, "credito", first["tipo"])
	assert.Equal(t, "-1000.00", first["saldo_atual"])
	assert.Equal(t, "debito", second["tipo"])
	assert.Equal(t, "-1000.00", second["saldo_anterior"])
	assert.Equal(t, "-600.00", second["saldo_atual"])
}

func TestAPI_Allocate_Overdraw_Conflict(t *testing.T) {
	srv := newTestServer(t)
	creditID := createCreditHTTP(t, srv, "maria", "100.00")

	resp, body := doJSON(t, http.MethodPost,
		srv.URL+"/api/credits/"+creditID+"/allocations",
		map[string]any{"viagem_id": "gramado-07", "valor_utilizado": "150.00"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.NotEmpty(t, body["details"])
}

func TestAPI_Allocate_MissingTrip(t *testing.T) {
	srv := newTestServer(t)
	creditID := createCreditHTTP(t, srv, "maria", "100.00")

	resp, _ := doJSON(t, http.MethodPost,
		srv.URL+"/api/credits/"+creditID+"/allocations",
		map[string]any{"valor_utilizado": "50.00"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_DeallocateRestoresBalance(t *testing.T) {
	srv := newTestServer(t)
	creditID := createCreditHTTP(t, srv, "maria", "1000.00")

	_, allocation := doJSON(t, http.MethodPost,
		srv.URL+"/api/credits/"+creditID+"/allocations",
		map[string]any{"viagem_id": "gramado-07", "valor_utilizado": "400.00"})
	allocationID := allocation["id"].(string)

	resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/api/allocations/"+allocationID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, credit := doJSON(t, http.MethodGet, srv.URL+"/api/credits/"+creditID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "disponivel", credit["status"])
	assert.Equal(t, "1000.00", credit["saldo_disponivel"])
}

// =============================================================================
// REFUND ENDPOINT TESTS
// =============================================================================

func TestAPI_RefundThenAllocate_Conflict(t *testing.T) {
	srv := newTestServer(t)
	creditID := createCreditHTTP(t, srv, "maria", "500.00")

	resp, refunded := doJSON(t, http.MethodPost, srv.URL+"/api/credits/"+creditID+"/refund", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "reembolsado", refunded["status"])
	assert.Equal(t, "0.00", refunded["saldo_disponivel"])

	resp, _ = doJSON(t, http.MethodPost,
		srv.URL+"/api/credits/"+creditID+"/allocations",
		map[string]any{"viagem_id": "gramado-07", "valor_utilizado": "50.00"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

// =============================================================================
// BALANCE AND AUDIT ENDPOINT TESTS
// =============================================================================

func TestAPI_BalanceSummary(t *testing.T) {
	srv := newTestServer(t)
	creditID := createCreditHTTP(t, srv, "maria", "1000.00")
	createCreditHTTP(t, srv, "maria", "500.00")

	_, _ = doJSON(t, http.MethodPost,
		srv.URL+"/api/credits/"+creditID+"/allocations",
		map[string]any{"viagem_id": "gramado-07", "valor_utilizado": "300.00"})

	resp, summary := doJSON(t, http.MethodGet, srv.URL+"/api/clients/maria/balance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1500.00", summary["valor_total"])
	assert.Equal(t, "1200.00", summary["saldo_disponivel"])
	assert.Equal(t, "300.00", summary["valor_utilizado"])
}

func TestAPI_VerifyLedger(t *testing.T) {
	srv := newTestServer(t)
	createCreditHTTP(t, srv, "maria", "1000.00")

	resp, verify := doJSON(t, http.MethodGet,
		srv.URL+"/api/admin/ledger/verify?cliente_id=maria", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, verify["integro"])

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/admin/ledger/verify", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// TENANCY TESTS
// =============================================================================

func TestAPI_OrgHeaderScopesData(t *testing.T) {
	srv := newTestServer(t)
	creditID := createCreditHTTP(t, srv, "maria", "1000.00") // default org

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/credits/"+creditID, nil)
	require.NoError(t, err)
	req.Header.Set("X-Org-ID", "outra-agencia")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// PAYMENT STATUS ENDPOINT TESTS
// =============================================================================

func TestAPI_PaymentStatus(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		body map[string]any
		want string
	}{
		{
			name: "full discount is brinde",
			body: map[string]any{"valor": "100", "desconto": "100"},
			want: "brinde",
		},
		{
			name: "paid installments are pago",
			body: map[string]any{
				"valor": "100",
				"parcelas": []map[string]any{
					{"valor_parcela": "50", "data_pagamento": "2026-01-10"},
					{"valor_parcela": "50", "data_pagamento": "2026-02-10"},
				},
			},
			want: "pago",
		},
		{
			name: "open plan is parcelado",
			body: map[string]any{
				"valor": "100",
				"parcelas": []map[string]any{
					{"valor_parcela": "50", "data_pagamento": "2026-01-10"},
					{"valor_parcela": "50"},
				},
			},
			want: "parcelado",
		},
		{
			name: "bare charge is pendente",
			body: map[string]any{"valor": "100"},
			want: "pendente",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/payment-status", tc.body)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, tc.want, body["status"])
			assert.NotEmpty(t, body["descricao"])
		})
	}
}

func TestAPI_PaymentStatus_BadAmount(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/payment-status",
		map[string]any{"valor": "abc"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
