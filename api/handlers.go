/*
handlers.go - HTTP handlers for the credit engine API

PURPOSE:
  Translates HTTP requests into engine calls and domain results back into
  DTOs. Handlers parse and validate input, delegate all business rules to
  ledger.Engine, and map domain errors to status codes.

ERROR MAPPING:
  404 not found            ErrCreditNotFound, ErrAllocationNotFound
  400 bad request          ErrInvalidAmount, malformed bodies and amounts
  409 conflict             insufficient balance, refunded credit, credit
                           with allocations, concurrent modification
  500 internal             chain corruption and everything else

TENANCY:
  Every request is scoped to an organization taken from the X-Org-ID
  header; "default" when absent. Handlers never cross org boundaries.

SEE ALSO:
  - server.go: Route definitions
  - ledger/engine.go: Business logic
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/voyago/credit-engine/ledger"
	"github.com/voyago/credit-engine/payment"
)

// Resetter clears all stored data (dev/demo only).
type Resetter interface {
	Reset(ctx context.Context) error
}

// Handler holds the dependencies for all HTTP handlers.
type Handler struct {
	Engine  *ledger.Engine
	Resets  Resetter // nil disables /api/scenarios/reset
	current string   // last loaded scenario id
}

// NewHandler creates a handler backed by the given engine.
func NewHandler(engine *ledger.Engine, resets Resetter) *Handler {
	return &Handler{Engine: engine, Resets: resets}
}

// orgFromRequest resolves the tenant for the request.
func orgFromRequest(r *http.Request) ledger.OrgID {
	if org := r.Header.Get("X-Org-ID"); org != "" {
		return ledger.OrgID(org)
	}
	return ledger.OrgID("default")
}

// =============================================================================
// CREDIT ENDPOINTS
// =============================================================================

// CreateCredit registers a new prepaid credit for a client.
// POST /api/clients/{id}/credits
func (h *Handler) CreateCredit(w http.ResponseWriter, r *http.Request) {
	client := ledger.ClientID(chi.URLParam(r, "id"))

	var req CreateCreditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := decimal.NewFromString(req.ValorCredito)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid valor_credito", err)
		return
	}

	paymentDate := time.Now()
	if req.DataPagamento != "" {
		paymentDate, err = time.Parse(time.RFC3339, req.DataPagamento)
		if err != nil {
			// Date-only form from the booking frontend.
			paymentDate, err = time.Parse("2006-01-02", req.DataPagamento)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid data_pagamento", err)
				return
			}
		}
	}

	credit, err := h.Engine.CreateCredit(r.Context(), ledger.CreateCreditInput{
		OrgID:         orgFromRequest(r),
		ClientID:      client,
		Amount:        amount,
		PaymentDate:   paymentDate,
		PaymentMethod: req.FormaPagamento,
		Description:   req.Descricao,
	})
	if err != nil {
		writeDomainError(w, "Failed to create credit", err)
		return
	}

	writeJSON(w, http.StatusCreated, toCreditDTO(credit))
}

// ListCredits returns a client's credits, newest first.
// GET /api/clients/{id}/credits
func (h *Handler) ListCredits(w http.ResponseWriter, r *http.Request) {
	client := ledger.ClientID(chi.URLParam(r, "id"))

	credits, err := h.Engine.ListCreditsByClient(r.Context(), orgFromRequest(r), client)
	if err != nil {
		writeDomainError(w, "Failed to list credits", err)
		return
	}

	writeJSON(w, http.StatusOK, toCreditDTOs(credits))
}

// GetCredit returns one credit by id.
// GET /api/credits/{id}
func (h *Handler) GetCredit(w http.ResponseWriter, r *http.Request) {
	id := ledger.CreditID(chi.URLParam(r, "id"))

	credit, err := h.Engine.GetCredit(r.Context(), orgFromRequest(r), id)
	if err != nil {
		writeDomainError(w, "Failed to get credit", err)
		return
	}

	writeJSON(w, http.StatusOK, toCreditDTO(credit))
}

// DeleteCredit removes a credit that has no allocations.
// DELETE /api/credits/{id}
func (h *Handler) DeleteCredit(w http.ResponseWriter, r *http.Request) {
	id := ledger.CreditID(chi.URLParam(r, "id"))

	if err := h.Engine.DeleteCredit(r.Context(), orgFromRequest(r), id); err != nil {
		writeDomainError(w, "Failed to delete credit", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RefundCredit zeroes a credit's remaining balance (terminal).
// POST /api/credits/{id}/refund
func (h *Handler) RefundCredit(w http.ResponseWriter, r *http.Request) {
	id := ledger.CreditID(chi.URLParam(r, "id"))

	credit, err := h.Engine.Refund(r.Context(), orgFromRequest(r), id)
	if err != nil {
		writeDomainError(w, "Failed to refund credit", err)
		return
	}

	writeJSON(w, http.StatusOK, toCreditDTO(credit))
}

// =============================================================================
// ALLOCATION ENDPOINTS
// =============================================================================

// CreateAllocation consumes part of a credit against a trip charge.
// POST /api/credits/{id}/allocations
func (h *Handler) CreateAllocation(w http.ResponseWriter, r *http.Request) {
	credit := ledger.CreditID(chi.URLParam(r, "id"))

	var req CreateAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.TripID == "" {
		writeError(w, http.StatusBadRequest, "viagem_id is required", nil)
		return
	}

	amount, err := decimal.NewFromString(req.ValorUtilizado)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid valor_utilizado", err)
		return
	}

	allocation, err := h.Engine.Allocate(r.Context(), ledger.AllocateInput{
		OrgID:         orgFromRequest(r),
		CreditID:      credit,
		TripID:        ledger.TripID(req.TripID),
		Amount:        amount,
		BeneficiaryID: ledger.ClientID(req.BeneficiaryID),
		Notes:         req.Observacoes,
	})
	if err != nil {
		writeDomainError(w, "Failed to allocate credit", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAllocationDTO(allocation))
}

// ListAllocations returns a credit's allocation history.
// GET /api/credits/{id}/allocations
func (h *Handler) ListAllocations(w http.ResponseWriter, r *http.Request) {
	credit := ledger.CreditID(chi.URLParam(r, "id"))

	allocations, err := h.Engine.AllocationsByCredit(r.Context(), orgFromRequest(r), credit)
	if err != nil {
		writeDomainError(w, "Failed to list allocations", err)
		return
	}

	writeJSON(w, http.StatusOK, toAllocationDTOs(allocations))
}

// DeleteAllocation reverses an allocation (admin-only).
// DELETE /api/allocations/{id}
func (h *Handler) DeleteAllocation(w http.ResponseWriter, r *http.Request) {
	id := ledger.AllocationID(chi.URLParam(r, "id"))

	if err := h.Engine.Deallocate(r.Context(), orgFromRequest(r), id); err != nil {
		writeDomainError(w, "Failed to reverse allocation", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// STATEMENT AND BALANCE ENDPOINTS
// =============================================================================

// GetStatement returns a client's extrato in chronological order.
// GET /api/clients/{id}/statement
func (h *Handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	client := ledger.ClientID(chi.URLParam(r, "id"))

	movements, err := h.Engine.ClientStatement(r.Context(), orgFromRequest(r), client)
	if err != nil {
		writeDomainError(w, "Failed to get statement", err)
		return
	}

	writeJSON(w, http.StatusOK, toStatementDTO(client, movements))
}

// GetBalance returns a client's aggregated credit position.
// GET /api/clients/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	client := ledger.ClientID(chi.URLParam(r, "id"))

	summary, err := h.Engine.ClientBalanceSummary(r.Context(), orgFromRequest(r), client)
	if err != nil {
		writeDomainError(w, "Failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, toBalanceSummaryDTO(summary))
}

// VerifyLedger audits a client's statement chain.
// GET /api/admin/ledger/verify?cliente_id=...
func (h *Handler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	client := ledger.ClientID(r.URL.Query().Get("cliente_id"))
	if client == "" {
		writeError(w, http.StatusBadRequest, "cliente_id is required", nil)
		return
	}

	err := h.Engine.VerifyStatement(r.Context(), orgFromRequest(r), client)
	if err != nil {
		if ledger.IsCorruption(err) {
			writeJSON(w, http.StatusOK, VerifyDTO{
				ClientID: string(client),
				Intact:   false,
				Detail:   err.Error(),
			})
			return
		}
		writeDomainError(w, "Failed to verify statement", err)
		return
	}

	writeJSON(w, http.StatusOK, VerifyDTO{ClientID: string(client), Intact: true})
}

// =============================================================================
// PAYMENT STATUS ENDPOINT
// =============================================================================

// ResolvePaymentStatus derives the payment state for a charge.
// POST /api/payment-status
func (h *Handler) ResolvePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req PaymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	valor, err := decimal.NewFromString(req.Valor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid valor", err)
		return
	}

	desconto := decimal.Zero
	if req.Desconto != "" {
		desconto, err = decimal.NewFromString(req.Desconto)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid desconto", err)
			return
		}
	}

	parcelas := make([]payment.Installment, 0, len(req.Parcelas))
	for _, p := range req.Parcelas {
		amount, err := decimal.NewFromString(p.Valor)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid valor_parcela", err)
			return
		}
		installment := payment.Installment{Amount: amount}
		if p.DataPagamento != nil {
			paidAt, err := time.Parse(time.RFC3339, *p.DataPagamento)
			if err != nil {
				paidAt, err = time.Parse("2006-01-02", *p.DataPagamento)
				if err != nil {
					writeError(w, http.StatusBadRequest, "Invalid data_pagamento", err)
					return
				}
			}
			installment.PaidAt = &paidAt
		}
		parcelas = append(parcelas, installment)
	}

	writeJSON(w, http.StatusOK, toPaymentStatusDTO(payment.Resolve(valor, desconto, parcelas)))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger errors onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	writeError(w, statusForError(err), message, err)
}

func statusForError(err error) int {
	switch {
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientCredit),
		errors.Is(err, ledger.ErrCreditRefunded),
		errors.Is(err, ledger.ErrCreditHasAllocations),
		errors.Is(err, ledger.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
