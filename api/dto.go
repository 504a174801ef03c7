/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

WIRE FORMAT:
  The JSON field names keep the travel agency's Portuguese vocabulary
  (valor_credito, saldo_disponivel, extrato) because the frontend and the
  exported reports already speak it. Monetary amounts travel as strings
  with two decimal places; never as floats.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger/types.go: Domain types these map from
*/
package api

import (
	"time"

	"github.com/voyago/credit-engine/ledger"
	"github.com/voyago/credit-engine/payment"
)

// =============================================================================
// CREDIT TYPES
// =============================================================================

// CreditDTO represents a prepaid credit in API responses.
type CreditDTO struct {
	ID              string `json:"id"`
	ClientID        string `json:"cliente_id"`
	ValorCredito    string `json:"valor_credito"`
	SaldoDisponivel string `json:"saldo_disponivel"`
	Status          string `json:"status"`
	FormaPagamento  string `json:"forma_pagamento,omitempty"`
	DataPagamento   string `json:"data_pagamento"`
	CreatedAt       string `json:"created_at,omitempty"`
}

// CreateCreditRequest is the request to register a new credit.
type CreateCreditRequest struct {
	ValorCredito   string `json:"valor_credito"`
	DataPagamento  string `json:"data_pagamento"`
	FormaPagamento string `json:"forma_pagamento,omitempty"`
	Descricao      string `json:"descricao,omitempty"`
}

// =============================================================================
// ALLOCATION TYPES
// =============================================================================

// AllocationDTO represents a credit-to-trip link.
type AllocationDTO struct {
	ID             string `json:"id"`
	CreditID       string `json:"credito_id"`
	TripID         string `json:"viagem_id"`
	BeneficiaryID  string `json:"beneficiario_id,omitempty"`
	ValorUtilizado string `json:"valor_utilizado"`
	Observacoes    string `json:"observacoes,omitempty"`
	DataVinculacao string `json:"data_vinculacao"`
}

// CreateAllocationRequest links part of a credit to a trip charge.
type CreateAllocationRequest struct {
	TripID         string `json:"viagem_id"`
	ValorUtilizado string `json:"valor_utilizado"`
	BeneficiaryID  string `json:"beneficiario_id,omitempty"`
	Observacoes    string `json:"observacoes,omitempty"`
}

// =============================================================================
// STATEMENT TYPES
// =============================================================================

// MovementDTO is one extrato entry.
type MovementDTO struct {
	ID             string `json:"id"`
	Tipo           string `json:"tipo"`
	Valor          string `json:"valor"`
	Descricao      string `json:"descricao,omitempty"`
	TripID         string `json:"viagem_id,omitempty"`
	ReferenciaID   string `json:"referencia_id,omitempty"`
	ReferenciaTipo string `json:"referencia_tipo,omitempty"`
	SaldoAnterior  string `json:"saldo_anterior"`
	SaldoAtual     string `json:"saldo_atual"`
	DataTransacao  string `json:"data_transacao"`
}

// StatementDTO is a client's full extrato.
type StatementDTO struct {
	ClientID  string        `json:"cliente_id"`
	Movements []MovementDTO `json:"movimentacoes"`
}

// BalanceSummaryDTO aggregates a client's credits.
type BalanceSummaryDTO struct {
	ClientID        string         `json:"cliente_id"`
	ValorTotal      string         `json:"valor_total"`
	SaldoDisponivel string         `json:"saldo_disponivel"`
	ValorUtilizado  string         `json:"valor_utilizado"`
	StatusCounts    map[string]int `json:"creditos_por_status"`
}

// VerifyDTO reports a statement audit.
type VerifyDTO struct {
	ClientID string `json:"cliente_id"`
	Intact   bool   `json:"integro"`
	Detail   string `json:"detalhe,omitempty"`
}

// =============================================================================
// PAYMENT STATUS TYPES
// =============================================================================

// InstallmentDTO is one parcela in a payment-status request.
type InstallmentDTO struct {
	Valor         string  `json:"valor_parcela"`
	DataPagamento *string `json:"data_pagamento,omitempty"`
}

// PaymentStatusRequest asks for the derived payment status of a charge.
type PaymentStatusRequest struct {
	Valor    string           `json:"valor"`
	Desconto string           `json:"desconto,omitempty"`
	Parcelas []InstallmentDTO `json:"parcelas,omitempty"`
}

// PaymentStatusDTO is the derived state.
type PaymentStatusDTO struct {
	Status    string `json:"status"`
	Descricao string `json:"descricao"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toCreditDTO(c ledger.Credit) CreditDTO {
	return CreditDTO{
		ID:              string(c.ID),
		ClientID:        string(c.ClientID),
		ValorCredito:    c.Amount.StringFixed(2),
		SaldoDisponivel: c.Available.StringFixed(2),
		Status:          string(c.Status),
		FormaPagamento:  c.PaymentMethod,
		DataPagamento:   c.PaymentDate.UTC().Format(time.RFC3339),
		CreatedAt:       c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toCreditDTOs(credits []ledger.Credit) []CreditDTO {
	dtos := make([]CreditDTO, 0, len(credits))
	for _, c := range credits {
		dtos = append(dtos, toCreditDTO(c))
	}
	return dtos
}

func toAllocationDTO(a ledger.Allocation) AllocationDTO {
	return AllocationDTO{
		ID:             string(a.ID),
		CreditID:       string(a.CreditID),
		TripID:         string(a.TripID),
		BeneficiaryID:  string(a.BeneficiaryID),
		ValorUtilizado: a.Amount.StringFixed(2),
		Observacoes:    a.Notes,
		DataVinculacao: a.AllocatedAt.UTC().Format(time.RFC3339),
	}
}

func toAllocationDTOs(allocations []ledger.Allocation) []AllocationDTO {
	dtos := make([]AllocationDTO, 0, len(allocations))
	for _, a := range allocations {
		dtos = append(dtos, toAllocationDTO(a))
	}
	return dtos
}

func toMovementDTO(m ledger.Movement) MovementDTO {
	return MovementDTO{
		ID:             string(m.ID),
		Tipo:           string(m.Type),
		Valor:          m.Amount.StringFixed(2),
		Descricao:      m.Description,
		TripID:         string(m.TripID),
		ReferenciaID:   m.Reference.ID,
		ReferenciaTipo: string(m.Reference.Type),
		SaldoAnterior:  m.Previous.StringFixed(2),
		SaldoAtual:     m.Balance.StringFixed(2),
		DataTransacao:  m.OccurredAt.UTC().Format(time.RFC3339),
	}
}

func toStatementDTO(client ledger.ClientID, movements []ledger.Movement) StatementDTO {
	dtos := make([]MovementDTO, 0, len(movements))
	for _, m := range movements {
		dtos = append(dtos, toMovementDTO(m))
	}
	return StatementDTO{ClientID: string(client), Movements: dtos}
}

func toBalanceSummaryDTO(s ledger.BalanceSummary) BalanceSummaryDTO {
	counts := make(map[string]int, len(s.StatusCounts))
	for status, n := range s.StatusCounts {
		counts[string(status)] = n
	}
	return BalanceSummaryDTO{
		ClientID:        string(s.ClientID),
		ValorTotal:      s.Total.StringFixed(2),
		SaldoDisponivel: s.Available.StringFixed(2),
		ValorUtilizado:  s.Used.StringFixed(2),
		StatusCounts:    counts,
	}
}

func toPaymentStatusDTO(r payment.Resolution) PaymentStatusDTO {
	return PaymentStatusDTO{Status: string(r.Status), Descricao: r.Description}
}
