package discounts

import "github.com/ariefcatur/exam-vouchers/internal/apperr"

type Reason string

const (
	ReasonNotFound          Reason = "DISCOUNT_NOT_FOUND"
	ReasonInactive          Reason = "DISCOUNT_INACTIVE"
	ReasonExpired           Reason = "DISCOUNT_EXPIRED"
	ReasonMinQuantityNotMet Reason = "DISCOUNT_MIN_QUANTITY_NOT_MET"
	ReasonMaxUsesReached    Reason = "DISCOUNT_MAX_USES_REACHED"
	ReasonRestricted        Reason = "DISCOUNT_RESTRICTED_TO_OTHER_CUSTOMER"
)

var reasonText = map[Reason]apperr.Message{
	ReasonNotFound:          {En: "Invalid discount code", Ar: "رمز الخصم غير صالح"},
	ReasonInactive:          {En: "This discount code is no longer active", Ar: "رمز الخصم هذا لم يعد فعالاً"},
	ReasonExpired:           {En: "This discount code has expired or is not yet valid", Ar: "رمز الخصم منتهي الصلاحية أو غير صالح بعد"},
	ReasonMinQuantityNotMet: {En: "Minimum quantity for this discount code not met", Ar: "لم يتم استيفاء الحد الأدنى للكمية لهذا الرمز"},
	ReasonMaxUsesReached:    {En: "This discount code has reached its usage limit", Ar: "تم الوصول إلى الحد الأقصى لاستخدام رمز الخصم"},
	ReasonRestricted:        {En: "This discount code is not valid for your account", Ar: "رمز الخصم هذا غير صالح لحسابك"},
}

func invalid(r Reason) *apperr.Error {
	m := reasonText[r]
	return apperr.Validation(string(r), m.En, m.Ar)
}

// ReasonOf extracts the rejection reason from a Validate error.
func ReasonOf(err error) (Reason, bool) {
	e, ok := apperr.As(err)
	if !ok || e.Kind != apperr.KindValidation {
		return "", false
	}
	r := Reason(e.Code)
	_, known := reasonText[r]
	return r, known
}
