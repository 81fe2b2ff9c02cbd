package orders

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
)

// MemoryStore is an in-process Store. Every method holds the lock for its
// whole body so each call behaves like one SQL statement.
type MemoryStore struct {
	mu       sync.Mutex
	seq      int
	byID     map[string]Order
	byCharge map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seq: 100000, byID: map[string]Order{}, byCharge: map[string]string{}}
}

func (m *MemoryStore) Insert(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[o.ID]; ok {
		return apperr.Conflict("ORDER_EXISTS", nil)
	}
	m.seq++
	now := time.Now().UTC()
	o.OrderNumber = fmt.Sprintf("ORD-%d", m.seq)
	o.Status = StatusPending
	o.CreatedAt, o.UpdatedAt = now, now
	m.byID[o.ID] = *o
	return nil
}

func (m *MemoryStore) AttachCharge(_ context.Context, orderID, chargeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[orderID]
	if !ok || o.ChargeID != "" {
		return apperr.Conflict("CHARGE_ALREADY_ATTACHED", nil)
	}
	if _, taken := m.byCharge[chargeID]; taken {
		return apperr.Conflict("CHARGE_ALREADY_ATTACHED", nil)
	}
	o.ChargeID = chargeID
	o.UpdatedAt = time.Now().UTC()
	m.byID[orderID] = o
	m.byCharge[chargeID] = orderID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return Order{}, apperr.NotFound("ORDER")
	}
	return o, nil
}

func (m *MemoryStore) GetByChargeID(_ context.Context, chargeID string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byCharge[chargeID]
	if !ok {
		return Order{}, apperr.NotFound("ORDER")
	}
	return m.byID[id], nil
}

func (m *MemoryStore) Settle(_ context.Context, p SettleParams) (Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[p.OrderID]
	if !ok {
		return Order{}, false, apperr.NotFound("ORDER")
	}
	if o.Status != StatusPending {
		return o, false, nil
	}
	o.Status = p.Status
	if p.Status == StatusPaid {
		at := p.At.UTC()
		o.PaidAt = &at
	}
	if p.GatewayTxnID != "" {
		o.GatewayTxnID = p.GatewayTxnID
	}
	if p.PaymentMethod != "" {
		o.PaymentMethod = p.PaymentMethod
	}
	o.UpdatedAt = time.Now().UTC()
	m.byID[o.ID] = o
	return o, true, nil
}

// MemoryCatalog is a fixed Catalog for tests and local runs.
type MemoryCatalog struct {
	Certificates []Certificate
	Config       Settings
}

func (c *MemoryCatalog) CertificateByCode(_ context.Context, code string) (Certificate, error) {
	for _, cert := range c.Certificates {
		if strings.EqualFold(cert.Code, strings.TrimSpace(code)) {
			return cert, nil
		}
	}
	return Certificate{}, apperr.NotFound("CERTIFICATE")
}

func (c *MemoryCatalog) CertificateByID(_ context.Context, id string) (Certificate, error) {
	for _, cert := range c.Certificates {
		if cert.ID == id {
			return cert, nil
		}
	}
	return Certificate{}, apperr.NotFound("CERTIFICATE")
}

func (c *MemoryCatalog) ListCertificates(context.Context) ([]Certificate, error) {
	var out []Certificate
	for _, cert := range c.Certificates {
		if cert.Active {
			out = append(out, cert)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (c *MemoryCatalog) Settings(context.Context) (Settings, error) { return c.Config, nil }
