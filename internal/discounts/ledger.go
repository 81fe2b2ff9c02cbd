package discounts

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
	"github.com/shopspring/decimal"
)

// Store persists discount codes. IncrementUsage must be a conditional write
// that never lets used_count pass max_uses.
type Store interface {
	Get(ctx context.Context, code string) (Code, error)
	Create(ctx context.Context, c Code) error
	IncrementUsage(ctx context.Context, code string) (bool, error)
}

type Input struct {
	Code         string
	Quantity     int
	CustomerName string
	Subtotal     float64
}

type Result struct {
	Code          string  `json:"code"`
	Kind          Kind    `json:"type"`
	Value         float64 `json:"value"`
	Amount        float64 `json:"amount"`
	DescriptionEn string  `json:"descriptionEn"`
	DescriptionAr string  `json:"descriptionAr"`
}

type Ledger struct {
	Store Store
	Now   func() time.Time
}

func (l *Ledger) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Validate checks eligibility without touching usage. A rejected code returns
// an *apperr.Error of KindValidation whose Code is a Reason.
func (l *Ledger) Validate(ctx context.Context, in Input) (Result, error) {
	code := Normalize(in.Code)
	if code == "" {
		return Result{}, invalid(ReasonNotFound)
	}
	c, err := l.Store.Get(ctx, code)
	if apperr.Is(err, apperr.KindNotFound) {
		return Result{}, invalid(ReasonNotFound)
	}
	if err != nil {
		return Result{}, err
	}

	switch {
	case !c.Active:
		return Result{}, invalid(ReasonInactive)
	case !c.InWindow(l.now()):
		return Result{}, invalid(ReasonExpired)
	case c.MinQuantity != nil && in.Quantity < *c.MinQuantity:
		return Result{}, invalid(ReasonMinQuantityNotMet)
	case c.Exhausted():
		return Result{}, invalid(ReasonMaxUsesReached)
	case !matchesCustomer(c.RestrictedTo, in.CustomerName):
		return Result{}, invalid(ReasonRestricted)
	}

	en, ar := c.DescriptionEn, c.DescriptionAr
	if en == "" || ar == "" {
		gen, genAr := describe(c)
		if en == "" {
			en = gen
		}
		if ar == "" {
			ar = genAr
		}
	}
	return Result{
		Code:          c.Code,
		Kind:          c.Kind,
		Value:         c.Value,
		Amount:        Amount(c.Kind, c.Value, in.Subtotal),
		DescriptionEn: en,
		DescriptionAr: ar,
	}, nil
}

// CommitUsage counts one use of code. If the quota filled up since checkout the
// use is not counted and false is returned; that is never an error.
func (l *Ledger) CommitUsage(ctx context.Context, code string) (bool, error) {
	code = Normalize(code)
	ok, err := l.Store.IncrementUsage(ctx, code)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Printf("discount: usage not counted code=%s reason=max_uses_reached_or_missing", code)
	}
	return ok, nil
}

// Amount is the discount granted on subtotal, never more than subtotal.
func Amount(kind Kind, value, subtotal float64) float64 {
	sub := decimal.NewFromFloat(subtotal)
	if !sub.IsPositive() {
		return 0
	}
	v := decimal.NewFromFloat(value)
	var amt decimal.Decimal
	switch kind {
	case KindPercentage:
		amt = sub.Mul(v).Div(decimal.NewFromInt(100))
	case KindFixed:
		amt = v
	default:
		return 0
	}
	if amt.GreaterThan(sub) {
		amt = sub
	}
	return amt.Round(2).InexactFloat64()
}

func matchesCustomer(restrictedTo, customer string) bool {
	r := strings.ToLower(strings.TrimSpace(restrictedTo))
	if r == "" {
		return true
	}
	c := strings.ToLower(strings.TrimSpace(customer))
	return c != "" && strings.Contains(c, r)
}

func describe(c Code) (en, ar string) {
	v := decimal.NewFromFloat(c.Value)
	if c.Kind == KindPercentage {
		return v.String() + "% off", "خصم " + v.String() + "%"
	}
	return v.StringFixed(2) + " SAR off", "خصم " + v.StringFixed(2) + " ريال"
}
