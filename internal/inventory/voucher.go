package inventory

import "time"

type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusReserved  Status = "RESERVED"
	StatusAssigned  Status = "ASSIGNED"
	StatusDelivered Status = "DELIVERED"
	StatusUsed      Status = "USED"
	StatusExpired   Status = "EXPIRED"
)

// Statuses in reporting order.
var Statuses = []Status{StatusAvailable, StatusReserved, StatusAssigned, StatusDelivered, StatusUsed, StatusExpired}

var validNext = map[Status]map[Status]bool{
	StatusAvailable: {StatusReserved: true, StatusAssigned: true, StatusExpired: true},
	StatusReserved:  {StatusAssigned: true, StatusDelivered: true, StatusExpired: true},
	StatusAssigned:  {StatusDelivered: true, StatusExpired: true},
	StatusDelivered: {StatusUsed: true, StatusExpired: true},
	StatusUsed:      {},
	StatusExpired:   {},
}

// CanTransition reports whether a voucher may move from -> to. Movement is
// forward only; EXPIRED is reachable from anything not yet USED.
func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Expirable are the statuses an expiry sweep may move to EXPIRED.
func Expirable() []Status {
	return []Status{StatusAvailable, StatusReserved, StatusAssigned, StatusDelivered}
}

type Voucher struct {
	ID            string
	Code          string
	CertificateID string
	Status        Status
	PurchaseCost  float64
	PurchaseDate  time.Time
	ExpiryDate    time.Time
	BatchID       string
	OrderID       string
	AssignedAt    *time.Time
}

// ExpiredAt reports whether the voucher is past its expiry date. A voucher is
// still redeemable on the expiry date itself.
func (v Voucher) ExpiredAt(now time.Time) bool {
	if v.ExpiryDate.IsZero() {
		return false
	}
	return day(v.ExpiryDate).Before(day(now))
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CertificateStats is the status breakdown of one certificate's pool.
type CertificateStats struct {
	CertificateID   string         `json:"certificateId"`
	CertificateCode string         `json:"certificateCode"`
	Counts          map[Status]int `json:"counts"`
	Total           int            `json:"total"`
}

func (s CertificateStats) Available() int { return s.Counts[StatusAvailable] }
