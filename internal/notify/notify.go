// Package notify delivers customer emails. Delivery is best effort: callers
// log failures and carry on.
package notify

import (
	"context"
	"log"
	"time"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Notifier interface {
	Send(ctx context.Context, m Message) error
}

// Log writes messages to the process log instead of sending them.
type Log struct{}

func (Log) Send(_ context.Context, m Message) error {
	log.Printf("notify: to=%s subject=%q bytes=%d", m.To, m.Subject, len(m.HTML))
	return nil
}

// Async sends m on its own goroutine with a fresh timeout, detached from the
// caller's request lifetime.
func Async(n Notifier, m Message) {
	if n == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := n.Send(ctx, m); err != nil {
			log.Printf("notify: send failed to=%s subject=%q err=%v", m.To, m.Subject, err)
		}
	}()
}
