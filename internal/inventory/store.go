package inventory

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrShortage means the pool cannot cover a claim. Nothing was assigned.
var ErrShortage = errors.New("not enough available vouchers")

// Store persists the voucher pool. Claim must be all-or-nothing and must
// never hand the same voucher to two orders.
type Store interface {
	Add(ctx context.Context, v *Voucher) error
	// Claim assigns qty AVAILABLE, unexpired vouchers of certificateID to
	// orderID. Repeating a claim for the same order returns the vouchers it
	// already holds.
	Claim(ctx context.Context, orderID, certificateID string, qty int) ([]Voucher, error)
	ForOrder(ctx context.Context, orderID string) ([]Voucher, error)
	// MarkDelivered moves an order's ASSIGNED vouchers to DELIVERED.
	MarkDelivered(ctx context.Context, orderID string) (int, error)
	Stats(ctx context.Context) ([]CertificateStats, error)
	LowStock(ctx context.Context, threshold int) ([]CertificateStats, error)
	// ExpireOverdue moves every not-yet-USED voucher past its expiry date to EXPIRED.
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// lowStock keeps certificates whose AVAILABLE count is below threshold.
func lowStock(all []CertificateStats, threshold int) []CertificateStats {
	out := make([]CertificateStats, 0, len(all))
	for _, s := range all {
		if s.Available() < threshold {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Available() < out[j].Available() })
	return out
}

func newStats(certID, certCode string) CertificateStats {
	s := CertificateStats{CertificateID: certID, CertificateCode: certCode, Counts: make(map[Status]int, len(Statuses))}
	for _, st := range Statuses {
		s.Counts[st] = 0
	}
	return s
}
