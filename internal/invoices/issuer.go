package invoices

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
	"github.com/ariefcatur/exam-vouchers/internal/orders"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Issuer struct {
	Store   Store
	Catalog orders.Catalog
	Now     func() time.Time
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}

// Issue returns the order's invoice, minting it on first call. Concurrent
// calls for one order all return the same invoice; the store's uniqueness on
// order_id decides the winner.
func (i *Issuer) Issue(ctx context.Context, o orders.Order) (Invoice, error) {
	if o.Status != orders.StatusPaid && o.Status != orders.StatusRefunded {
		return Invoice{}, apperr.State("ORDER_NOT_PAID")
	}
	inv, err := i.Store.FindByOrder(ctx, o.ID)
	if err == nil {
		return inv, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return Invoice{}, err
	}

	inv = Invoice{
		ID:       uuid.NewString(),
		Number:   NumberFor(o.OrderNumber),
		OrderID:  o.ID,
		IssuedAt: i.now().UTC(),
	}
	inserted, err := i.Store.Insert(ctx, inv)
	if err != nil {
		return Invoice{}, fmt.Errorf("insert invoice %s: %w", inv.Number, err)
	}
	if inserted {
		log.Printf("invoice issued number=%s order=%s", inv.Number, o.OrderNumber)
		return inv, nil
	}
	return i.Store.FindByOrder(ctx, o.ID)
}

type Party struct {
	Name      string
	VATNumber string
	Email     string
	Phone     string
}

type Line struct {
	Description string
	Quantity    int
	UnitPrice   float64
	Amount      float64
}

// Document is everything a renderer needs to draw one invoice.
type Document struct {
	Number         string
	IssuedAt       time.Time
	OrderNumber    string
	Seller         Party
	Buyer          Party
	Lines          []Line
	Subtotal       float64
	DiscountCode   string
	DiscountAmount float64
	VATPercent     float64
	VATAmount      float64
	Total          float64
	Currency       string
	QR             string
}

func (i *Issuer) Document(ctx context.Context, o orders.Order, inv Invoice, currency string) (Document, error) {
	settings, err := i.Catalog.Settings(ctx)
	if err != nil {
		return Document{}, err
	}
	cert, err := i.Catalog.CertificateByID(ctx, o.CertificateID)
	if err != nil {
		return Document{}, err
	}
	qr, err := QRPayload(Fields{
		SellerName: settings.SellerName,
		VATNumber:  settings.SellerVATNumber,
		Timestamp:  o.InvoiceTime(),
		Total:      o.TotalAmount,
		VAT:        o.VATAmount,
	})
	if err != nil {
		return Document{}, err
	}
	return Document{
		Number:      inv.Number,
		IssuedAt:    o.InvoiceTime(),
		OrderNumber: o.OrderNumber,
		Seller:      Party{Name: settings.SellerName, VATNumber: settings.SellerVATNumber},
		Buyer: Party{
			Name:      o.Customer.DisplayName(),
			VATNumber: o.Customer.VATNumber,
			Email:     o.Customer.Email,
			Phone:     o.Customer.Phone,
		},
		Lines: []Line{{
			Description: cert.NameEn,
			Quantity:    o.Quantity,
			UnitPrice:   o.UnitPrice,
			Amount:      o.Subtotal,
		}},
		Subtotal:       o.Subtotal,
		DiscountCode:   o.DiscountCode,
		DiscountAmount: o.DiscountAmount,
		VATPercent:     vatPercent(o, settings.VATPercent),
		VATAmount:      o.VATAmount,
		Total:          o.TotalAmount,
		Currency:       currency,
		QR:             qr,
	}, nil
}

var hundred = decimal.NewFromInt(100)

// vatPercent is the rate o was priced at. The current setting wins when it
// reproduces the stored VAT amount.
func vatPercent(o orders.Order, current float64) float64 {
	taxable := decimal.NewFromFloat(o.Subtotal).Sub(decimal.NewFromFloat(o.DiscountAmount))
	if !taxable.IsPositive() {
		return current
	}
	vat := decimal.NewFromFloat(o.VATAmount)
	if taxable.Mul(decimal.NewFromFloat(current)).Div(hundred).Round(2).Equal(vat) {
		return current
	}
	return vat.Div(taxable).Mul(hundred).Round(2).InexactFloat64()
}
