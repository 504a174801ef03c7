package payment_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/voyago/credit-engine/payment"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func paid(amount string) payment.Installment {
	at := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)
	return payment.Installment{Amount: dec(amount), PaidAt: &at}
}

func unpaid(amount string) payment.Installment {
	return payment.Installment{Amount: dec(amount)}
}

// =============================================================================
// PRECEDENCE TESTS
// =============================================================================

func TestResolve_FullDiscount_Brinde(t *testing.T) {
	// GIVEN: A discount covering the full charge
	// WHEN: Resolving the payment status
	// THEN: brinde, regardless of installments

	r := payment.Resolve(dec("100"), dec("100"), nil)
	assert.Equal(t, payment.StatusBrinde, r.Status)
	assert.Equal(t, "Brinde: desconto cobre o valor integral", r.Description)
}

func TestResolve_DiscountExceedsCharge_Brinde(t *testing.T) {
	r := payment.Resolve(dec("100"), dec("150"), nil)
	assert.Equal(t, payment.StatusBrinde, r.Status)
}

func TestResolve_BrindeWinsOverInstallments(t *testing.T) {
	// GIVEN: A fully discounted charge that still carries installments
	// THEN: brinde wins; the installments are irrelevant

	r := payment.Resolve(dec("100"), dec("100"), []payment.Installment{unpaid("50"), unpaid("50")})
	assert.Equal(t, payment.StatusBrinde, r.Status)
}

func TestResolve_AllInstallmentsPaid_Pago(t *testing.T) {
	// GIVEN: Two paid installments covering the net charge
	// THEN: pago, even though the charge was parcelado

	r := payment.Resolve(dec("100"), decimal.Zero, []payment.Installment{paid("50"), paid("50")})
	assert.Equal(t, payment.StatusPago, r.Status)
	assert.Equal(t, "Pago: R$100.00 quitado", r.Description)
}

func TestResolve_PaidWithinEpsilon_Pago(t *testing.T) {
	// GIVEN: Payments one cent short of the net charge
	// THEN: still pago; the tolerance absorbs currency rounding

	r := payment.Resolve(dec("100.00"), decimal.Zero, []payment.Installment{paid("99.99")})
	assert.Equal(t, payment.StatusPago, r.Status)
}

func TestResolve_PaidBeyondEpsilon_NotPago(t *testing.T) {
	// GIVEN: Payments two cents short of the net charge
	// THEN: not pago; a single installment falls through to pendente

	r := payment.Resolve(dec("100.00"), decimal.Zero, []payment.Installment{paid("99.98")})
	assert.Equal(t, payment.StatusPendente, r.Status)
}

func TestResolve_PartiallyPaidPlan_Parcelado(t *testing.T) {
	// GIVEN: Two installments, one paid
	// THEN: parcelado with a progress description

	r := payment.Resolve(dec("100"), decimal.Zero, []payment.Installment{paid("50"), unpaid("50")})
	assert.Equal(t, payment.StatusParcelado, r.Status)
	assert.Equal(t, "1/2 parcelas pagas", r.Description)
}

func TestResolve_UnpaidPlan_Parcelado(t *testing.T) {
	r := payment.Resolve(dec("300"), decimal.Zero, []payment.Installment{
		unpaid("100"), unpaid("100"), unpaid("100"),
	})
	assert.Equal(t, payment.StatusParcelado, r.Status)
	assert.Equal(t, "0/3 parcelas pagas", r.Description)
}

func TestResolve_NoInstallments_Pendente(t *testing.T) {
	// GIVEN: A plain unpaid charge with no installment plan
	// THEN: pendente with the open amount

	r := payment.Resolve(dec("100"), decimal.Zero, nil)
	assert.Equal(t, payment.StatusPendente, r.Status)
	assert.Equal(t, "Pendente: R$100.00 em aberto", r.Description)
}

func TestResolve_SingleUnpaidInstallment_Pendente(t *testing.T) {
	// A one-installment plan is a lump-sum charge, not parcelado.
	r := payment.Resolve(dec("100"), decimal.Zero, []payment.Installment{unpaid("100")})
	assert.Equal(t, payment.StatusPendente, r.Status)
}

func TestResolve_PartialDiscount_ReducesNet(t *testing.T) {
	// GIVEN: R$100 charge with R$40 discount and R$60 paid
	// THEN: pago; the discount reduces what the payments must cover

	r := payment.Resolve(dec("100"), dec("40"), []payment.Installment{paid("60")})
	assert.Equal(t, payment.StatusPago, r.Status)
}

func TestResolve_Deterministic(t *testing.T) {
	// Same input, same output: the derivation holds no state.
	parcelas := []payment.Installment{paid("50"), unpaid("50")}
	first := payment.Resolve(dec("100"), decimal.Zero, parcelas)
	second := payment.Resolve(dec("100"), decimal.Zero, parcelas)
	assert.Equal(t, first, second)
}
