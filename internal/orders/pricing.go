package orders

import "github.com/shopspring/decimal"

type Totals struct {
	UnitPrice      float64 `json:"unitPrice"`
	Subtotal       float64 `json:"subtotal"`
	DiscountAmount float64 `json:"discountAmount"`
	VATAmount      float64 `json:"vatAmount"`
	Total          float64 `json:"total"`
}

var hundred = decimal.NewFromInt(100)

// Price computes order totals. The discount is clamped to [0, subtotal] and
// VAT applies to the discounted subtotal; each amount is rounded to halalas.
func Price(unitPrice float64, qty int, discount float64, vatPercent float64) Totals {
	unit := decimal.NewFromFloat(unitPrice).Round(2)
	sub := unit.Mul(decimal.NewFromInt(int64(qty)))

	disc := decimal.NewFromFloat(discount).Round(2)
	if disc.IsNegative() {
		disc = decimal.Zero
	}
	if disc.GreaterThan(sub) {
		disc = sub
	}

	taxable := sub.Sub(disc)
	vat := taxable.Mul(decimal.NewFromFloat(vatPercent)).Div(hundred).Round(2)
	total := taxable.Add(vat)

	return Totals{
		UnitPrice:      unit.InexactFloat64(),
		Subtotal:       sub.InexactFloat64(),
		DiscountAmount: disc.InexactFloat64(),
		VATAmount:      vat.InexactFloat64(),
		Total:          total.InexactFloat64(),
	}
}
