package redisx

import (
	"context"
	"testing"
)

func TestNilReceiversAreNoops(t *testing.T) {
	ctx := context.Background()
	var d *Dedup
	if d.Seen(ctx, "s", "1") {
		t.Fatal("nil dedup reported seen")
	}
	d.Mark(ctx, "s", "1")

	c := &Cache{Key: KeyOrderView}
	var out map[string]any
	if c.Get(ctx, "x", &out) {
		t.Fatal("cache without client reported a hit")
	}
	c.Set(ctx, "x", map[string]string{"a": "b"})
}
