package inventory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
	"github.com/google/uuid"
)

// MemoryRepo is an in-process Store; each method runs under one lock.
type MemoryRepo struct {
	mu       sync.Mutex
	certs    map[string]string // id -> code
	vouchers []Voucher
	Now      func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{certs: map[string]string{}}
}

func (m *MemoryRepo) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// AddCertificate registers a certificate so Stats reports it even with an empty pool.
func (m *MemoryRepo) AddCertificate(id, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.certs[id] = code
}

func (m *MemoryRepo) Add(_ context.Context, v *Voucher) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.vouchers {
		if existing.Code == v.Code {
			return apperr.Conflict("VOUCHER_CODE_EXISTS", nil)
		}
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = StatusAvailable
	}
	if v.PurchaseDate.IsZero() {
		v.PurchaseDate = day(m.now())
	}
	if _, ok := m.certs[v.CertificateID]; !ok {
		m.certs[v.CertificateID] = v.CertificateID
	}
	m.vouchers = append(m.vouchers, *v)
	return nil
}

func (m *MemoryRepo) ForOrder(_ context.Context, orderID string) ([]Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heldBy(orderID), nil
}

func (m *MemoryRepo) heldBy(orderID string) []Voucher {
	var out []Voucher
	for _, v := range m.vouchers {
		if v.OrderID == orderID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (m *MemoryRepo) Claim(_ context.Context, orderID, certificateID string, qty int) ([]Voucher, error) {
	if qty < 1 {
		return nil, fmt.Errorf("claim qty %d", qty)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	held := m.heldBy(orderID)
	if len(held) >= qty {
		return held, nil
	}
	now := m.now()
	var pick []int
	for i, v := range m.vouchers {
		if v.CertificateID == certificateID && v.Status == StatusAvailable && !v.ExpiredAt(now) {
			pick = append(pick, i)
		}
	}
	sort.SliceStable(pick, func(a, b int) bool { return claimsFirst(m.vouchers[pick[a]], m.vouchers[pick[b]]) })
	if len(pick) > qty-len(held) {
		pick = pick[:qty-len(held)]
	}
	if len(held)+len(pick) < qty {
		return nil, fmt.Errorf("%w: certificate=%s want=%d got=%d", ErrShortage, certificateID, qty, len(held)+len(pick))
	}
	at := now.UTC()
	for _, i := range pick {
		m.vouchers[i].Status = StatusAssigned
		m.vouchers[i].OrderID = orderID
		m.vouchers[i].AssignedAt = &at
	}
	return m.heldBy(orderID), nil
}

// claimsFirst orders stock the way Repo.Claim does: earliest expiry, then
// oldest purchase, then code. An unset date sorts last.
func claimsFirst(a, b Voucher) bool {
	if c := compareDates(a.ExpiryDate, b.ExpiryDate); c != 0 {
		return c < 0
	}
	if c := compareDates(a.PurchaseDate, b.PurchaseDate); c != 0 {
		return c < 0
	}
	return a.Code < b.Code
}

func compareDates(a, b time.Time) int {
	switch {
	case a.IsZero() && b.IsZero():
		return 0
	case a.IsZero():
		return 1
	case b.IsZero():
		return -1
	}
	return day(a).Compare(day(b))
}

func (m *MemoryRepo) MarkDelivered(_ context.Context, orderID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i, v := range m.vouchers {
		if v.OrderID == orderID && v.Status == StatusAssigned {
			m.vouchers[i].Status = StatusDelivered
			n++
		}
	}
	return n, nil
}

func (m *MemoryRepo) Stats(context.Context) ([]CertificateStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byCert := map[string]*CertificateStats{}
	for id, code := range m.certs {
		s := newStats(id, code)
		byCert[id] = &s
	}
	for _, v := range m.vouchers {
		s := byCert[v.CertificateID]
		s.Counts[v.Status]++
		s.Total++
	}
	out := make([]CertificateStats, 0, len(byCert))
	for _, s := range byCert {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CertificateCode < out[j].CertificateCode })
	return out, nil
}

func (m *MemoryRepo) LowStock(ctx context.Context, threshold int) ([]CertificateStats, error) {
	all, err := m.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return lowStock(all, threshold), nil
}

func (m *MemoryRepo) ExpireOverdue(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for i, v := range m.vouchers {
		if v.ExpiredAt(now) && slices.Contains(Expirable(), v.Status) {
			m.vouchers[i].Status = StatusExpired
			n++
		}
	}
	return n, nil
}
