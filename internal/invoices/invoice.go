package invoices

import (
	"strings"
	"time"
)

type Invoice struct {
	ID       string    `json:"id"`
	Number   string    `json:"invoiceNumber"`
	OrderID  string    `json:"orderId"`
	IssuedAt time.Time `json:"issuedAt"`
}

// NumberFor derives the invoice number from the order number: ORD-100042
// becomes INV-100042. Order numbers are unique, so invoice numbers are too.
func NumberFor(orderNumber string) string {
	return "INV-" + strings.TrimPrefix(orderNumber, "ORD-")
}
