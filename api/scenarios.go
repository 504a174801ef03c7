/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates clients, credits,
	allocations and refunds that demonstrate specific lifecycle states.

AVAILABLE SCENARIOS:

	cliente-novo:          Single fresh credit, nothing consumed yet
	agencia-demo:          Clients with credits in every lifecycle state
	credito-compartilhado: One client's credit paying another's trip

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create credits through the engine
 3. Allocate, reverse and refund through the engine

All seeding goes through ledger.Engine, never raw inserts, so every
scenario ships with an intact statement chain.

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: shared helpers and error mapping
  - ledger/engine.go: the operations scenarios are built from
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/voyago/credit-engine/ledger"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "cliente-novo",
		Name:        "Cliente Novo",
		Description: "One client with a single untouched credit",
	},
	{
		ID:          "agencia-demo",
		Name:        "Agência Demo",
		Description: "Clients with credits in every state: disponivel, parcial, utilizado, reembolsado",
	},
	{
		ID:          "credito-compartilhado",
		Name:        "Crédito Compartilhado",
		Description: "A client's credit spent on another client's trip",
	},
}

const scenarioOrg = ledger.OrgID("default")

// =============================================================================
// SCENARIO ENDPOINTS
// =============================================================================

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario reports the last loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": h.current})
}

// LoadScenario resets the database and seeds the requested scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if h.Resets == nil {
		writeError(w, http.StatusNotImplemented, "Scenario loading is disabled", nil)
		return
	}

	ctx := r.Context()
	if err := h.Resets.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "cliente-novo":
		err = h.loadClienteNovo(ctx)
	case "agencia-demo":
		err = h.loadAgenciaDemo(ctx)
	case "credito-compartilhado":
		err = h.loadCreditoCompartilhado(ctx)
	default:
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.current = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "scenario_id": req.ScenarioID})
}

// ResetDatabase clears all data.
// POST /api/scenarios/reset
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if h.Resets == nil {
		writeError(w, http.StatusNotImplemented, "Reset is disabled", nil)
		return
	}
	if err := h.Resets.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.current = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadClienteNovo(ctx context.Context) error {
	_, err := h.Engine.CreateCredit(ctx, ledger.CreateCreditInput{
		OrgID:         scenarioOrg,
		ClientID:      "maria-silva",
		Amount:        ledger.MustDecimal("2500.00"),
		PaymentDate:   time.Now().AddDate(0, 0, -3),
		PaymentMethod: "pix",
	})
	return err
}

func (h *Handler) loadAgenciaDemo(ctx context.Context) error {
	now := time.Now()

	// Untouched credit: disponivel.
	if _, err := h.Engine.CreateCredit(ctx, ledger.CreateCreditInput{
		OrgID:         scenarioOrg,
		ClientID:      "maria-silva",
		Amount:        ledger.MustDecimal("3000.00"),
		PaymentDate:   now.AddDate(0, -1, 0),
		PaymentMethod: "pix",
	}); err != nil {
		return err
	}

	// Partially consumed credit: parcial.
	parcial, err := h.Engine.CreateCredit(ctx, ledger.CreateCreditInput{
		OrgID:         scenarioOrg,
		ClientID:      "joao-santos",
		Amount:        ledger.MustDecimal("5000.00"),
		PaymentDate:   now.AddDate(0, -2, 0),
		PaymentMethod: "cartao",
	})
	if err != nil {
		return err
	}
	if _, err := h.Engine.Allocate(ctx, ledger.AllocateInput{
		OrgID:    scenarioOrg,
		CreditID: parcial.ID,
		TripID:   "gramado-2026-07",
		Amount:   ledger.MustDecimal("1800.00"),
	}); err != nil {
		return err
	}

	// Fully consumed credit: utilizado, across two trips.
	utilizado, err := h.Engine.CreateCredit(ctx, ledger.CreateCreditInput{
		OrgID:         scenarioOrg,
		ClientID:      "ana-costa",
		Amount:        ledger.MustDecimal("1200.00"),
		PaymentDate:   now.AddDate(0, -3, 0),
		PaymentMethod: "boleto",
	})
	if err != nil {
		return err
	}
	if _, err := h.Engine.Allocate(ctx, ledger.AllocateInput{
		OrgID:    scenarioOrg,
		CreditID: utilizado.ID,
		TripID:   "buenos-aires-2026-05",
		Amount:   ledger.MustDecimal("700.00"),
	}); err != nil {
		return err
	}
	if _, err := h.Engine.Allocate(ctx, ledger.AllocateInput{
		OrgID:    scenarioOrg,
		CreditID: utilizado.ID,
		TripID:   "buenos-aires-2026-05",
		Amount:   ledger.MustDecimal("500.00"),
		Notes:    "Taxa de embarque",
	}); err != nil {
		return err
	}

	// Refunded credit with remaining balance: reembolsado.
	reembolsado, err := h.Engine.CreateCredit(ctx, ledger.CreateCreditInput{
		OrgID:         scenarioOrg,
		ClientID:      "carlos-lima",
		Amount:        ledger.MustDecimal("800.00"),
		PaymentDate:   now.AddDate(0, -1, -10),
		PaymentMethod: "pix",
	})
	if err != nil {
		return err
	}
	_, err = h.Engine.Refund(ctx, scenarioOrg, reembolsado.ID)
	return err
}

func (h *Handler) loadCreditoCompartilhado(ctx context.Context) error {
	credit, err := h.Engine.CreateCredit(ctx, ledger.CreateCreditInput{
		OrgID:         scenarioOrg,
		ClientID:      "maria-silva",
		Amount:        ledger.MustDecimal("4000.00"),
		PaymentDate:   time.Now().AddDate(0, -1, 0),
		PaymentMethod: "cartao",
	})
	if err != nil {
		return err
	}

	_, err = h.Engine.Allocate(ctx, ledger.AllocateInput{
		OrgID:         scenarioOrg,
		CreditID:      credit.ID,
		TripID:        "lisboa-2026-09",
		Amount:        ledger.MustDecimal("1500.00"),
		BeneficiaryID: "pedro-silva",
		Notes:         "Presente de aniversário",
	})
	return err
}
