package invoices

import (
	"context"
	"errors"
	"sync"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
	"github.com/ariefcatur/exam-vouchers/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	FindByOrder(ctx context.Context, orderID string) (Invoice, error)
	// Insert writes inv unless the order already has an invoice. The losing
	// writer gets inserted=false and no error.
	Insert(ctx context.Context, inv Invoice) (inserted bool, err error)
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) FindByOrder(ctx context.Context, orderID string) (Invoice, error) {
	var inv Invoice
	err := r.DB.QueryRow(ctx, `
		SELECT id, invoice_number, order_id, issued_at FROM invoices WHERE order_id = $1`, orderID,
	).Scan(&inv.ID, &inv.Number, &inv.OrderID, &inv.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, apperr.NotFound("INVOICE")
	}
	return inv, err
}

func (r *Repo) Insert(ctx context.Context, inv Invoice) (bool, error) {
	tag, err := r.DB.Exec(ctx, `
		INSERT INTO invoices(id, invoice_number, order_id, issued_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO NOTHING`,
		inv.ID, inv.Number, inv.OrderID, inv.IssuedAt)
	if postgres.IsUniqueViolation(err) {
		return false, apperr.Conflict("INVOICE_NUMBER_TAKEN", err)
	}
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MemoryStore enforces the same one-invoice-per-order rule under a lock.
type MemoryStore struct {
	mu      sync.Mutex
	byOrder map[string]Invoice
	inserts int
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{byOrder: map[string]Invoice{}} }

func (m *MemoryStore) FindByOrder(_ context.Context, orderID string) (Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byOrder[orderID]
	if !ok {
		return Invoice{}, apperr.NotFound("INVOICE")
	}
	return inv, nil
}

func (m *MemoryStore) Insert(_ context.Context, inv Invoice) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byOrder[inv.OrderID]; ok {
		return false, nil
	}
	for _, existing := range m.byOrder {
		if existing.Number == inv.Number {
			return false, apperr.Conflict("INVOICE_NUMBER_TAKEN", nil)
		}
	}
	m.byOrder[inv.OrderID] = inv
	m.inserts++
	return true, nil
}

// Count returns how many invoices were actually written.
func (m *MemoryStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inserts
}
