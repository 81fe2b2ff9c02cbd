package orders

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps payload in a v1 envelope correlated to orderID.
func NewEnvelope(eventType, producer, traceID, orderID string, payload any) (Envelope, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       b,
	}, nil
}

type OrderPaidPayload struct {
	OrderID       string    `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	CertificateID string    `json:"certificate_id"`
	Quantity      int       `json:"quantity"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	TotalAmount   float64   `json:"total_amount"`
	InvoiceNumber string    `json:"invoice_number,omitempty"`
	PaidAt        time.Time `json:"paid_at"`
}

type OrderCancelledPayload struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Reason      string `json:"reason"` // gateway charge status
}

func PaidPayload(o Order, invoiceNumber string) OrderPaidPayload {
	p := OrderPaidPayload{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		CertificateID: o.CertificateID,
		Quantity:      o.Quantity,
		CustomerName:  o.Customer.DisplayName(),
		CustomerEmail: o.Customer.Email,
		TotalAmount:   o.TotalAmount,
		InvoiceNumber: invoiceNumber,
	}
	if o.PaidAt != nil {
		p.PaidAt = o.PaidAt.UTC()
	}
	return p
}
