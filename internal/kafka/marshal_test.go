package kafka

import (
	"encoding/json"
	"testing"
)

func TestUnwrapPayload(t *testing.T) {
	type payload struct {
		OrderID string `json:"order_id"`
	}
	got, err := UnwrapPayload[payload](json.RawMessage(`{"order_id":"o-1"}`))
	if err != nil || got.OrderID != "o-1" {
		t.Fatalf("got %+v, %v", got, err)
	}
	if _, err := UnwrapPayload[payload](json.RawMessage(`[`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEventHeaders(t *testing.T) {
	h := EventHeaders("OrderPaid", 1)
	if len(h) != 2 || string(h[0].Value) != "OrderPaid" || string(h[1].Value) != "1" {
		t.Fatalf("headers = %+v", h)
	}
}
