package discounts

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func intp(i int) *int { return &i }

func timep(t time.Time) *time.Time { return &t }

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newLedger(codes ...Code) (*Ledger, *MemoryStore) {
	st := NewMemoryStore(codes...)
	return &Ledger{Store: st, Now: func() time.Time { return now }}, st
}

func TestValidateReasons(t *testing.T) {
	l, _ := newLedger(
		Code{Code: "OFF", Kind: KindFixed, Value: 50, Active: false},
		Code{Code: "OLD", Kind: KindFixed, Value: 50, Active: true, ValidUntil: timep(now.Add(-time.Hour))},
		Code{Code: "SOON", Kind: KindFixed, Value: 50, Active: true, ValidFrom: timep(now.Add(time.Hour))},
		Code{Code: "BULK", Kind: KindPercentage, Value: 10, Active: true, MinQuantity: intp(5)},
		Code{Code: "ONCE", Kind: KindFixed, Value: 50, Active: true, MaxUses: intp(1), UsedCount: 1},
		Code{Code: "KSU", Kind: KindPercentage, Value: 20, Active: true, RestrictedTo: "King Saud"},
	)
	cases := []struct {
		code, customer string
		qty            int
		want           Reason
	}{
		{"missing", "", 1, ReasonNotFound},
		{"", "", 1, ReasonNotFound},
		{"off", "", 1, ReasonInactive},
		{"OLD", "", 1, ReasonExpired},
		{"soon", "", 1, ReasonExpired},
		{"bulk", "", 4, ReasonMinQuantityNotMet},
		{"once", "", 1, ReasonMaxUsesReached},
		{"ksu", "Qassim University", 1, ReasonRestricted},
		{"ksu", "", 1, ReasonRestricted},
	}
	for _, tc := range cases {
		_, err := l.Validate(context.Background(), Input{Code: tc.code, Quantity: tc.qty, CustomerName: tc.customer, Subtotal: 100})
		got, ok := ReasonOf(err)
		if !ok || got != tc.want {
			t.Errorf("Validate(%q, %q, %d) reason = %q (err=%v), want %q", tc.code, tc.customer, tc.qty, got, err, tc.want)
		}
	}
}

func TestValidateSuccess(t *testing.T) {
	l, _ := newLedger(
		Code{Code: "KSU", Kind: KindPercentage, Value: 20, Active: true, RestrictedTo: "king saud"},
		Code{Code: "FLAT500", Kind: KindFixed, Value: 500, Active: true, MinQuantity: intp(3)},
		Code{Code: "HUGE", Kind: KindFixed, Value: 99999, Active: true},
	)

	res, err := l.Validate(context.Background(), Input{Code: " ksu ", Quantity: 1, CustomerName: "King Saud University", Subtotal: 1350})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Code != "KSU" || res.Amount != 270 || res.DescriptionEn != "20% off" {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = l.Validate(context.Background(), Input{Code: "flat500", Quantity: 3, Subtotal: 4050})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Amount != 500 || res.Kind != KindFixed {
		t.Fatalf("unexpected result %+v", res)
	}

	res, err = l.Validate(context.Background(), Input{Code: "HUGE", Quantity: 1, Subtotal: 1350})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.Amount != 1350 {
		t.Fatalf("fixed discount must be capped at subtotal, got %v", res.Amount)
	}
}

func TestAmount(t *testing.T) {
	cases := []struct {
		kind       Kind
		value, sub float64
		want       float64
	}{
		{KindPercentage, 10, 4050, 405},
		{KindPercentage, 100, 4050, 4050},
		{KindPercentage, 33.33, 100, 33.33},
		{KindFixed, 500, 4050, 500},
		{KindFixed, 500, 300, 300},
		{KindFixed, 500, 0, 0},
		{Kind("BOGUS"), 500, 100, 0},
	}
	for _, tc := range cases {
		if got := Amount(tc.kind, tc.value, tc.sub); got != tc.want {
			t.Errorf("Amount(%s, %v, %v) = %v, want %v", tc.kind, tc.value, tc.sub, got, tc.want)
		}
	}
}

func TestValidateDoesNotMutateUsage(t *testing.T) {
	l, st := newLedger(Code{Code: "ONE", Kind: KindFixed, Value: 10, Active: true, MaxUses: intp(1)})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := l.Validate(ctx, Input{Code: "ONE", Quantity: 1, Subtotal: 100}); err != nil {
			t.Fatalf("validate %d: %v", i, err)
		}
	}
	first, _ := l.CommitUsage(ctx, "one")
	second, _ := l.CommitUsage(ctx, "ONE")
	if !first || second {
		t.Fatalf("commits = %v, %v; want true, false", first, second)
	}
	c, _ := st.Get(ctx, "ONE")
	if c.UsedCount != 1 {
		t.Fatalf("used = %d, want 1", c.UsedCount)
	}
}

func TestCommitUsageConcurrentNeverExceedsMax(t *testing.T) {
	const (
		maxUses = 10
		used    = 4
		callers = 50
	)
	l, st := newLedger(Code{Code: "RUSH", Kind: KindFixed, Value: 10, Active: true, MaxUses: intp(maxUses), UsedCount: used})

	var wg sync.WaitGroup
	var counted atomic.Int32
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.CommitUsage(context.Background(), "RUSH")
			if err != nil {
				t.Error(err)
			}
			if ok {
				counted.Add(1)
			}
		}()
	}
	wg.Wait()

	c, _ := st.Get(context.Background(), "RUSH")
	if c.UsedCount != maxUses {
		t.Fatalf("used = %d, want %d", c.UsedCount, maxUses)
	}
	if got := int(counted.Load()); got != maxUses-used {
		t.Fatalf("counted commits = %d, want %d", got, maxUses-used)
	}
}

func TestCommitUsageUnlimited(t *testing.T) {
	l, st := newLedger(Code{Code: "FREE", Kind: KindPercentage, Value: 5, Active: true})
	for i := 0; i < 3; i++ {
		if ok, err := l.CommitUsage(context.Background(), "free"); !ok || err != nil {
			t.Fatalf("commit %d: %v %v", i, ok, err)
		}
	}
	c, _ := st.Get(context.Background(), "FREE")
	if c.UsedCount != 3 {
		t.Fatalf("used = %d", c.UsedCount)
	}
}

func TestCodeCheck(t *testing.T) {
	bad := []Code{
		{Code: "", Kind: KindFixed, Value: 1},
		{Code: "P", Kind: KindPercentage, Value: 0},
		{Code: "P", Kind: KindPercentage, Value: 101},
		{Code: "F", Kind: KindFixed, Value: -5},
		{Code: "X", Kind: "OTHER", Value: 5},
		{Code: "U", Kind: KindFixed, Value: 5, MaxUses: intp(1), UsedCount: 2},
	}
	for _, c := range bad {
		if err := c.Check(); err == nil {
			t.Errorf("Check(%+v) = nil, want error", c)
		}
	}
	good := Code{Code: "OK", Kind: KindPercentage, Value: 100}
	if err := good.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}

	st := NewMemoryStore()
	if err := st.Create(context.Background(), good); err != nil {
		t.Fatal(err)
	}
	if err := st.Create(context.Background(), Code{Code: "ok", Kind: KindFixed, Value: 1}); err == nil {
		t.Fatal("duplicate code accepted")
	}
}
