package payments

import (
	"strings"

	"github.com/ariefcatur/exam-vouchers/internal/orders"
)

// ChargeStatus is the gateway's view of a charge.
type ChargeStatus string

const (
	ChargeInitiated  ChargeStatus = "INITIATED"
	ChargeInProgress ChargeStatus = "IN_PROGRESS"
	ChargeAuthorized ChargeStatus = "AUTHORIZED"
	ChargeCaptured   ChargeStatus = "CAPTURED"
	ChargeDeclined   ChargeStatus = "DECLINED"
	ChargeCancelled  ChargeStatus = "CANCELLED"
	ChargeFailed     ChargeStatus = "FAILED"
	ChargeAbandoned  ChargeStatus = "ABANDONED"
	ChargeRestricted ChargeStatus = "RESTRICTED"
	ChargeVoid       ChargeStatus = "VOID"
	ChargeTimedOut   ChargeStatus = "TIMEDOUT"
	ChargeUnknown    ChargeStatus = "UNKNOWN"
)

var known = map[ChargeStatus]bool{
	ChargeInitiated: true, ChargeInProgress: true, ChargeAuthorized: true, ChargeCaptured: true,
	ChargeDeclined: true, ChargeCancelled: true, ChargeFailed: true, ChargeAbandoned: true,
	ChargeRestricted: true, ChargeVoid: true, ChargeTimedOut: true,
}

// ParseChargeStatus normalises a gateway status string. Anything the
// gateway adds later reads as UNKNOWN and never settles an order.
func ParseChargeStatus(s string) ChargeStatus {
	cs := ChargeStatus(strings.ToUpper(strings.TrimSpace(s)))
	if cs == "CANCELED" {
		cs = ChargeCancelled
	}
	if !known[cs] {
		return ChargeUnknown
	}
	return cs
}

// TerminalOutcome maps a charge status to the order status it settles to.
// ok is false for statuses that must leave the order PENDING.
func TerminalOutcome(cs ChargeStatus) (to orders.Status, ok bool) {
	switch cs {
	case ChargeCaptured:
		return orders.StatusPaid, true
	case ChargeDeclined, ChargeCancelled, ChargeFailed, ChargeAbandoned,
		ChargeRestricted, ChargeVoid, ChargeTimedOut:
		return orders.StatusCancelled, true
	default:
		return "", false
	}
}
