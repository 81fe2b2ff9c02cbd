package discounts

import (
	"strings"
	"time"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
)

type Kind string

const (
	KindPercentage Kind = "PERCENTAGE"
	KindFixed      Kind = "FIXED"
)

type Code struct {
	Code          string
	Kind          Kind
	Value         float64
	MinQuantity   *int
	MaxUses       *int
	UsedCount     int
	ValidFrom     *time.Time
	ValidUntil    *time.Time
	RestrictedTo  string
	DescriptionEn string
	DescriptionAr string
	Active        bool
}

// Normalize is the lookup form of a user-typed code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Check enforces the invariants an admin-created code must satisfy.
func (c Code) Check() error {
	if Normalize(c.Code) == "" {
		return apperr.Validation("DISCOUNT_CODE_REQUIRED", "Discount code is required", "رمز الخصم مطلوب")
	}
	switch c.Kind {
	case KindPercentage:
		if c.Value <= 0 || c.Value > 100 {
			return apperr.Validation("DISCOUNT_VALUE_INVALID", "Percentage must be between 0 and 100", "يجب أن تكون النسبة بين 0 و 100")
		}
	case KindFixed:
		if c.Value <= 0 {
			return apperr.Validation("DISCOUNT_VALUE_INVALID", "Amount must be positive", "يجب أن يكون المبلغ موجباً")
		}
	default:
		return apperr.Validation("DISCOUNT_KIND_INVALID", "Unknown discount type", "نوع خصم غير معروف")
	}
	if c.MaxUses != nil && c.UsedCount > *c.MaxUses {
		return apperr.Validation("DISCOUNT_USAGE_INVALID", "Used count exceeds max uses", "عدد الاستخدامات يتجاوز الحد الأقصى")
	}
	if c.ValidFrom != nil && c.ValidUntil != nil && c.ValidUntil.Before(*c.ValidFrom) {
		return apperr.Validation("DISCOUNT_WINDOW_INVALID", "Validity window ends before it starts", "فترة الصلاحية غير صحيحة")
	}
	return nil
}

// InWindow reports whether now lies inside [ValidFrom, ValidUntil]; open ends are unbounded.
func (c Code) InWindow(now time.Time) bool {
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return false
	}
	return true
}

func (c Code) Exhausted() bool {
	return c.MaxUses != nil && c.UsedCount >= *c.MaxUses
}
