package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	kafkax "github.com/ariefcatur/exam-vouchers/internal/kafka"
	"github.com/ariefcatur/exam-vouchers/internal/notify"
	"github.com/ariefcatur/exam-vouchers/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
)

// Deduper remembers processed ids. It only short-circuits repeats; Claim is
// what keeps fulfillment idempotent.
type Deduper interface {
	Seen(ctx context.Context, scope, id string) bool
	Mark(ctx context.Context, scope, id string)
}

const dedupScope = "fulfillment"

type Fulfiller struct {
	Store    Store
	Dedup    Deduper
	Notifier notify.Notifier
}

// HandleOrderPaid is installed as the order.paid consumer handler. A nil
// return commits the message.
func (f *Fulfiller) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("fulfillment: dropping undecodable message offset=%d err=%v", m.Offset, err)
		return nil
	}
	if env.EventType != orders.EventOrderPaid {
		return nil
	}
	p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
	if err != nil {
		log.Printf("fulfillment: dropping event=%s err=%v", env.EventID, err)
		return nil
	}
	if f.Dedup != nil && f.Dedup.Seen(ctx, dedupScope, p.OrderID) {
		return nil
	}

	vs, err := f.Store.Claim(ctx, p.OrderID, p.CertificateID, p.Quantity)
	if errors.Is(err, ErrShortage) {
		// Left for an admin to top up the pool and deliver by hand.
		log.Printf("fulfillment: shortage order=%s qty=%d err=%v", p.OrderNumber, p.Quantity, err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("claim vouchers for %s: %w", p.OrderNumber, err)
	}

	if f.Notifier != nil {
		if err := f.Notifier.Send(ctx, DeliveryMessage(p, vs)); err != nil {
			return fmt.Errorf("deliver vouchers for %s: %w", p.OrderNumber, err)
		}
	}
	n, err := f.Store.MarkDelivered(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if f.Dedup != nil {
		f.Dedup.Mark(ctx, dedupScope, p.OrderID)
	}
	log.Printf("fulfillment: delivered order=%s vouchers=%d trace=%s", p.OrderNumber, n, env.TraceID)
	return nil
}

func DeliveryMessage(p orders.OrderPaidPayload, vs []Voucher) notify.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "<p>Dear %s,</p>", html.EscapeString(p.CustomerName))
	fmt.Fprintf(&b, "<p>Thank you for order %s. Your exam vouchers:</p><ul>", html.EscapeString(p.OrderNumber))
	for _, v := range vs {
		fmt.Fprintf(&b, "<li><code>%s</code> valid until %s</li>", html.EscapeString(v.Code), v.ExpiryDate.Format("2006-01-02"))
	}
	b.WriteString("</ul>")
	if p.InvoiceNumber != "" {
		fmt.Fprintf(&b, "<p>Invoice: %s</p>", html.EscapeString(p.InvoiceNumber))
	}
	return notify.Message{
		To:      p.CustomerEmail,
		Subject: "Your exam vouchers for order " + p.OrderNumber,
		HTML:    b.String(),
	}
}

// RunExpirySweep calls ExpireOverdue every interval until ctx is done.
func RunExpirySweep(ctx context.Context, st Store, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if n, err := st.ExpireOverdue(ctx, time.Now()); err != nil {
			log.Printf("expiry sweep failed: %v", err)
		} else if n > 0 {
			log.Printf("expiry sweep: expired=%d", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
