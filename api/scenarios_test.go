package api_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyago/credit-engine/api"
	"github.com/voyago/credit-engine/ledger"
	"github.com/voyago/credit-engine/ledger/store"
)

// noopReset satisfies api.Resetter for a store that starts empty.
type noopReset struct{}

func (noopReset) Reset(context.Context) error { return nil }

func newScenarioServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine := ledger.NewEngine(store.NewTxMemory())
	handler := api.NewHandler(engine, noopReset{})
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv
}

func TestScenarios_List(t *testing.T) {
	srv := newScenarioServer(t)

	resp, scenarios := doJSONList(t, srv.URL+"/api/scenarios/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, scenarios)

	ids := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		ids = append(ids, s["id"].(string))
	}
	assert.Contains(t, ids, "agencia-demo")
	assert.Contains(t, ids, "cliente-novo")
}

func TestScenarios_LoadAgenciaDemo(t *testing.T) {
	srv := newScenarioServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/load",
		map[string]any{"scenario_id": "agencia-demo"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "agencia-demo", body["scenario_id"])

	// The seeded credits land in every lifecycle state.
	_, credits := doJSONList(t, srv.URL+"/api/clients/joao-santos/credits")
	require.Len(t, credits, 1)
	assert.Equal(t, "parcial", credits[0]["status"])

	_, credits = doJSONList(t, srv.URL+"/api/clients/ana-costa/credits")
	require.Len(t, credits, 1)
	assert.Equal(t, "utilizado", credits[0]["status"])

	_, credits = doJSONList(t, srv.URL+"/api/clients/carlos-lima/credits")
	require.Len(t, credits, 1)
	assert.Equal(t, "reembolsado", credits[0]["status"])

	// Every seeded statement verifies.
	for _, client := range []string{"maria-silva", "joao-santos", "ana-costa", "carlos-lima"} {
		resp, verify := doJSON(t, http.MethodGet,
			srv.URL+"/api/admin/ledger/verify?cliente_id="+client, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, verify["integro"], "client %s", client)
	}

	resp, current := doJSON(t, http.MethodGet, srv.URL+"/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "agencia-demo", current["scenario_id"])
}

func TestScenarios_LoadUnknown(t *testing.T) {
	srv := newScenarioServer(t)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/load",
		map[string]any{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestScenarios_ResetDisabledWithoutResetter(t *testing.T) {
	engine := ledger.NewEngine(store.NewTxMemory())
	handler := api.NewHandler(engine, nil)
	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)

	resp, _ := doJSON(t, http.MethodPost, srv.URL+"/api/scenarios/reset", nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}
