/*
Package payment derives a passenger's payment status.

PURPOSE:
  Given a passenger's charge, discount and installment history, Resolve
  deterministically returns one of four mutually exclusive states. The
  original system re-implemented this derivation with slightly different
  rounding and ordering at every call site; this package is the single
  source of truth.

PRECEDENCE (first match wins, order is significant):
  1. brinde    - the discount fully absorbs the charge
  2. pago      - paid installments cover the net charge (within one cent)
  3. parcelado - more than one installment, not yet fully paid
  4. pendente  - a single unpaid charge awaiting lump-sum payment

A fully discounted charge is brinde even if installments exist; a fully
paid charge is pago even if it was set up in installments.

Resolve is a pure function: no stored state, safe from any goroutine.
*/
package payment

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusBrinde    Status = "brinde"
	StatusPago      Status = "pago"
	StatusParcelado Status = "parcelado"
	StatusPendente  Status = "pendente"
)

// Installment is one parcela of a passenger's charge. PaidAt is nil while
// the installment is unpaid.
type Installment struct {
	Amount decimal.Decimal // valor_parcela
	PaidAt *time.Time      // data_pagamento
}

// Resolution is the derived state plus a human-readable description.
type Resolution struct {
	Status      Status
	Description string
}

// epsilon absorbs currency rounding in the fully-paid comparison only.
// It is not a business discount and must not leak into stored balances.
var epsilon = decimal.New(1, -2) // 0.01

// Resolve derives the payment status for a charge of `valor` with
// discount `desconto` and the given installments.
func Resolve(valor, desconto decimal.Decimal, parcelas []Installment) Resolution {
	net := valor.Sub(desconto)

	// 1. Fully discounted: nothing left to pay.
	if net.LessThanOrEqual(decimal.Zero) {
		return Resolution{
			Status:      StatusBrinde,
			Description: "Brinde: desconto cobre o valor integral",
		}
	}

	paid := decimal.Zero
	paidCount := 0
	for _, p := range parcelas {
		if p.PaidAt != nil {
			paid = paid.Add(p.Amount)
			paidCount++
		}
	}

	// 2. Paid installments cover the net charge, within one cent.
	if paid.GreaterThanOrEqual(net.Sub(epsilon)) {
		return Resolution{
			Status:      StatusPago,
			Description: fmt.Sprintf("Pago: R$%s quitado", paid.StringFixed(2)),
		}
	}

	// 3. Installment plan still in progress.
	if len(parcelas) > 1 {
		return Resolution{
			Status:      StatusParcelado,
			Description: fmt.Sprintf("%d/%d parcelas pagas", paidCount, len(parcelas)),
		}
	}

	// 4. Single charge awaiting lump-sum payment.
	return Resolution{
		Status:      StatusPendente,
		Description: fmt.Sprintf("Pendente: R$%s em aberto", net.Sub(paid).StringFixed(2)),
	}
}
