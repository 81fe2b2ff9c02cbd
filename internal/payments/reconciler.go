package payments

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"time"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
	"github.com/ariefcatur/exam-vouchers/internal/invoices"
	kafkax "github.com/ariefcatur/exam-vouchers/internal/kafka"
	"github.com/ariefcatur/exam-vouchers/internal/notify"
	"github.com/ariefcatur/exam-vouchers/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"
)

type Settler interface {
	GetByChargeID(ctx context.Context, chargeID string) (orders.Order, error)
	Settle(ctx context.Context, orderID string, to orders.Status, txnID, method string) (orders.SettleOutcome, orders.Order, error)
}

type UsageCommitter interface {
	CommitUsage(ctx context.Context, code string) (bool, error)
}

type InvoiceIssuer interface {
	Issue(ctx context.Context, o orders.Order) (invoices.Invoice, error)
}

type ChargeGetter interface {
	GetCharge(ctx context.Context, id string) (Charge, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Deduper interface {
	Seen(ctx context.Context, scope, id string) bool
	Mark(ctx context.Context, scope, id string)
}

const dedupScope = "webhook"

// Reconciler turns webhook deliveries and success-page polls into one
// settlement per order. Side effects run only for the caller whose Settle
// was Applied.
type Reconciler struct {
	Orders    Settler
	Discounts UsageCommitter
	Invoices  InvoiceIssuer
	Gateway   ChargeGetter

	Paid      Publisher // order.paid
	Cancelled Publisher // order.cancelled
	Notifier  notify.Notifier
	Dedup     Deduper

	ServiceName string
	// InvoiceURL links the payment email to the invoice download.
	InvoiceURL  func(orderID string) string
	PollTimeout time.Duration

	// AfterSettleTimeout bounds the usage commit and invoice issue that follow
	// an applied settlement. Defaults to 15s.
	AfterSettleTimeout time.Duration
}

func (r *Reconciler) afterSettleTimeout() time.Duration {
	if r.AfterSettleTimeout > 0 {
		return r.AfterSettleTimeout
	}
	return 15 * time.Second
}

// HandleNotification applies a webhook delivery. The body only names the
// charge: its status is re-read from the gateway before anything settles.
// Lookup and gateway failures are returned so the delivery is retried.
// Settlement problems are logged so the gateway does not retry a delivery we
// have already accepted.
func (r *Reconciler) HandleNotification(ctx context.Context, n Notification) error {
	o, err := r.Orders.GetByChargeID(ctx, n.ChargeID)
	if err != nil {
		log.Printf("webhook: order lookup failed charge=%s status=%s err=%v", n.ChargeID, n.Status, err)
		return err
	}
	if o.Status.IsTerminal() {
		log.Printf("webhook: already settled order=%s status=%s charge_status=%s", o.OrderNumber, o.Status, n.Status)
		return nil
	}
	if r.Dedup != nil && r.Dedup.Seen(ctx, dedupScope, n.ChargeID+":"+string(n.Status)) {
		return nil
	}
	if r.Gateway == nil {
		return apperr.Upstream("GATEWAY_UNAVAILABLE", errors.New("no gateway configured"))
	}

	ch, err := r.Gateway.GetCharge(ctx, n.ChargeID)
	if err != nil {
		log.Printf("webhook: get charge failed order=%s charge=%s err=%v", o.OrderNumber, n.ChargeID, err)
		if apperr.Is(err, apperr.KindUpstream) {
			return err
		}
		return apperr.Upstream("GATEWAY_ERROR", err)
	}
	if ch.Status != n.Status {
		log.Printf("webhook: status mismatch order=%s body=%s gateway=%s", o.OrderNumber, n.Status, ch.Status)
	}

	to, ok := TerminalOutcome(ch.Status)
	if !ok {
		log.Printf("webhook: non-terminal status order=%s status=%s", o.OrderNumber, ch.Status)
		return nil
	}
	if _, err := r.apply(ctx, o, to, ch.Status, ch.TxnID, ch.PaymentMethod, "webhook"); err != nil {
		log.Printf("webhook: settle failed order=%s status=%s err=%v", o.OrderNumber, ch.Status, err)
		return nil
	}
	if r.Dedup != nil {
		r.Dedup.Mark(ctx, dedupScope, n.ChargeID+":"+string(ch.Status))
	}
	return nil
}

// Poll queries the gateway for a PENDING order and settles it when the
// charge is terminal. Any failure returns o unchanged.
func (r *Reconciler) Poll(ctx context.Context, o orders.Order) orders.Order {
	if o.Status != orders.StatusPending || o.ChargeID == "" || r.Gateway == nil {
		return o
	}
	pctx := ctx
	if r.PollTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, r.PollTimeout)
		defer cancel()
	}
	ch, err := r.Gateway.GetCharge(pctx, o.ChargeID)
	if err != nil {
		log.Printf("poll: get charge failed order=%s charge=%s err=%v", o.OrderNumber, o.ChargeID, err)
		return o
	}
	to, ok := TerminalOutcome(ch.Status)
	if !ok {
		return o
	}
	cur, err := r.apply(ctx, o, to, ch.Status, ch.TxnID, ch.PaymentMethod, "poll")
	if err != nil {
		log.Printf("poll: settle failed order=%s err=%v", o.OrderNumber, err)
		return o
	}
	return cur
}

func (r *Reconciler) apply(ctx context.Context, o orders.Order, to orders.Status, cs ChargeStatus, txnID, method, via string) (orders.Order, error) {
	outcome, cur, err := r.Orders.Settle(ctx, o.ID, to, txnID, method)
	if err != nil {
		return o, err
	}
	if outcome == orders.AlreadySettled {
		log.Printf("%s: already settled order=%s status=%s charge_status=%s", via, cur.OrderNumber, cur.Status, cs)
		return cur, nil
	}
	log.Printf("%s: settled order=%s status=%s charge_status=%s", via, cur.OrderNumber, cur.Status, cs)

	// Only this caller sees Applied, so the side effects outlive its context.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.afterSettleTimeout())
	defer cancel()

	trace := middleware.GetReqID(ctx)
	switch cur.Status {
	case orders.StatusPaid:
		r.afterPaid(actx, cur, trace)
	case orders.StatusCancelled:
		r.publish(r.Cancelled, orders.EventOrderCancelled, trace, cur.ID, orders.OrderCancelledPayload{
			OrderID: cur.ID, OrderNumber: cur.OrderNumber, Reason: string(cs),
		})
	}
	return cur, nil
}

// afterPaid runs once per order. Each step stands alone: a failed invoice
// is issued lazily on the first view or download.
func (r *Reconciler) afterPaid(ctx context.Context, o orders.Order, trace string) {
	if o.DiscountCode != "" && r.Discounts != nil {
		if _, err := r.Discounts.CommitUsage(ctx, o.DiscountCode); err != nil {
			log.Printf("discount usage commit failed order=%s code=%s err=%v", o.OrderNumber, o.DiscountCode, err)
		}
	}

	var invoiceNumber string
	if r.Invoices != nil {
		inv, err := r.Invoices.Issue(ctx, o)
		if err != nil {
			log.Printf("invoice issue failed order=%s err=%v", o.OrderNumber, err)
		}
		invoiceNumber = inv.Number
	}

	r.publish(r.Paid, orders.EventOrderPaid, trace, o.ID, orders.PaidPayload(o, invoiceNumber))
	notify.Async(r.Notifier, r.paymentMessage(o, invoiceNumber))
}

func (r *Reconciler) publish(p Publisher, eventType, trace, orderID string, payload any) {
	if p == nil {
		return
	}
	env, err := orders.NewEnvelope(eventType, r.ServiceName, trace, orderID, payload)
	if err != nil {
		log.Printf("event encode failed type=%s order=%s err=%v", eventType, orderID, err)
		return
	}
	p.Publish(orders.PartitionKey(orderID), kafkax.MustMarshal(env), kafkax.EventHeaders(eventType, env.EventVersion)...)
}

func (r *Reconciler) paymentMessage(o orders.Order, invoiceNumber string) notify.Message {
	body := fmt.Sprintf("<p>Dear %s,</p><p>We received your payment of %.2f for order %s.</p>",
		html.EscapeString(o.Customer.DisplayName()), o.TotalAmount, html.EscapeString(o.OrderNumber))
	if invoiceNumber != "" && r.InvoiceURL != nil {
		body += fmt.Sprintf(`<p>Invoice %s: <a href="%s">download</a></p>`,
			html.EscapeString(invoiceNumber), html.EscapeString(r.InvoiceURL(o.ID)))
	}
	body += "<p>Your exam vouchers will follow in a separate email.</p>"
	return notify.Message{To: o.Customer.Email, Subject: "Payment received for order " + o.OrderNumber, HTML: body}
}
