package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
	"github.com/ariefcatur/exam-vouchers/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

const voucherColumns = `id, code, certificate_id, status, purchase_cost, purchase_date, expiry_date,
	COALESCE(batch_id, ''), COALESCE(order_id::text, ''), assigned_at`

func scanVoucher(row pgx.Row) (Voucher, error) {
	var v Voucher
	var status string
	err := row.Scan(&v.ID, &v.Code, &v.CertificateID, &status, &v.PurchaseCost, &v.PurchaseDate,
		&v.ExpiryDate, &v.BatchID, &v.OrderID, &v.AssignedAt)
	v.Status = Status(status)
	return v, err
}

func collectVouchers(rows pgx.Rows) ([]Voucher, error) {
	defer rows.Close()
	var out []Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repo) Add(ctx context.Context, v *Voucher) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.Status == "" {
		v.Status = StatusAvailable
	}
	if v.PurchaseDate.IsZero() {
		v.PurchaseDate = time.Now().UTC()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO vouchers(id, code, certificate_id, status, purchase_cost, purchase_date, expiry_date, batch_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))`,
		v.ID, v.Code, v.CertificateID, string(v.Status), v.PurchaseCost, v.PurchaseDate, v.ExpiryDate, v.BatchID)
	if postgres.IsUniqueViolation(err) {
		return apperr.Conflict("VOUCHER_CODE_EXISTS", err)
	}
	return err
}

func (r *Repo) ForOrder(ctx context.Context, orderID string) ([]Voucher, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE order_id = $1 ORDER BY code`, orderID)
	if err != nil {
		return nil, err
	}
	return collectVouchers(rows)
}

// Claim runs in one transaction. The order row lock serialises duplicate
// claims for the same order; SKIP LOCKED lets claims for different orders
// pick disjoint vouchers without waiting on each other.
func (r *Repo) Claim(ctx context.Context, orderID, certificateID string, qty int) ([]Voucher, error) {
	if qty < 1 {
		return nil, fmt.Errorf("claim qty %d", qty)
	}
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("ORDER")
	}
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE order_id = $1 ORDER BY code`, orderID)
	if err != nil {
		return nil, err
	}
	held, err := collectVouchers(rows)
	if err != nil {
		return nil, err
	}
	if len(held) >= qty {
		return held, nil
	}

	rows, err = tx.Query(ctx, `
		UPDATE vouchers SET status = 'ASSIGNED', order_id = $1, assigned_at = now(), updated_at = now()
		WHERE id IN (
			SELECT id FROM vouchers
			WHERE certificate_id = $2 AND status = 'AVAILABLE' AND expiry_date >= CURRENT_DATE
			ORDER BY expiry_date, purchase_date, code
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		) AND status = 'AVAILABLE'
		RETURNING `+voucherColumns,
		orderID, certificateID, qty-len(held))
	if err != nil {
		return nil, err
	}
	claimed, err := collectVouchers(rows)
	if err != nil {
		return nil, err
	}
	if len(held)+len(claimed) < qty {
		return nil, fmt.Errorf("%w: certificate=%s want=%d got=%d", ErrShortage, certificateID, qty, len(held)+len(claimed))
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return append(held, claimed...), nil
}

func (r *Repo) MarkDelivered(ctx context.Context, orderID string) (int, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE vouchers SET status = 'DELIVERED', updated_at = now()
		WHERE order_id = $1 AND status = 'ASSIGNED'`, orderID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repo) Stats(ctx context.Context) ([]CertificateStats, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT c.id, c.code, v.status, count(v.id)
		FROM certificates c
		LEFT JOIN vouchers v ON v.certificate_id = c.id
		GROUP BY c.id, c.code, c.sort_order, v.status
		ORDER BY c.sort_order, c.code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CertificateStats
	index := map[string]int{}
	for rows.Next() {
		var id, code string
		var status *string
		var n int
		if err := rows.Scan(&id, &code, &status, &n); err != nil {
			return nil, err
		}
		i, ok := index[id]
		if !ok {
			i = len(out)
			index[id] = i
			out = append(out, newStats(id, code))
		}
		if status != nil {
			out[i].Counts[Status(*status)] += n
			out[i].Total += n
		}
	}
	return out, rows.Err()
}

func (r *Repo) LowStock(ctx context.Context, threshold int) ([]CertificateStats, error) {
	all, err := r.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return lowStock(all, threshold), nil
}

func (r *Repo) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	tag, err := r.DB.Exec(ctx, `
		UPDATE vouchers SET status = 'EXPIRED', updated_at = now()
		WHERE expiry_date < $1::date AND status = ANY($2)`,
		now.UTC(), statusNames(Expirable()))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func statusNames(ss []Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
