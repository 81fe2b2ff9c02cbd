package orders

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
	"github.com/ariefcatur/exam-vouchers/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists orders. Settle must be a single conditional write: exactly
// one concurrent caller per order may observe applied=true.
type Store interface {
	// Insert assigns o.OrderNumber, o.CreatedAt and o.UpdatedAt.
	Insert(ctx context.Context, o *Order) error
	AttachCharge(ctx context.Context, orderID, chargeID string) error
	Get(ctx context.Context, id string) (Order, error)
	GetByChargeID(ctx context.Context, chargeID string) (Order, error)
	Settle(ctx context.Context, p SettleParams) (o Order, applied bool, err error)
}

type SettleParams struct {
	OrderID       string
	Status        Status
	GatewayTxnID  string
	PaymentMethod string
	At            time.Time
}

type Repo struct{ DB *pgxpool.Pool }

const orderColumns = `id, order_number, certificate_id,
	customer_name, customer_email, customer_phone,
	COALESCE(customer_vat_number, ''), COALESCE(institution_name, ''),
	quantity, unit_price, subtotal, COALESCE(discount_code, ''), discount_amount,
	vat_amount, total_amount, status, COALESCE(charge_id, ''),
	COALESCE(gateway_txn_id, ''), COALESCE(payment_method, ''),
	paid_at, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var status string
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CertificateID,
		&o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Customer.VATNumber, &o.Customer.Institution,
		&o.Quantity, &o.UnitPrice, &o.Subtotal, &o.DiscountCode, &o.DiscountAmount,
		&o.VATAmount, &o.TotalAmount, &status, &o.ChargeID,
		&o.GatewayTxnID, &o.PaymentMethod,
		&o.PaidAt, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, apperr.NotFound("ORDER")
	}
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	return o, nil
}

func (r *Repo) Insert(ctx context.Context, o *Order) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO orders(id, order_number, certificate_id,
			customer_name, customer_email, customer_phone, customer_vat_number, institution_name,
			quantity, unit_price, subtotal, discount_code, discount_amount, vat_amount, total_amount, status)
		VALUES ($1, 'ORD-' || nextval('order_number_seq'), $2,
			$3, $4, $5, NULLIF($6, ''), NULLIF($7, ''),
			$8, $9, $10, NULLIF($11, ''), $12, $13, $14, 'PENDING')
		RETURNING order_number, created_at, updated_at`,
		o.ID, o.CertificateID,
		o.Customer.Name, o.Customer.Email, o.Customer.Phone, o.Customer.VATNumber, o.Customer.Institution,
		o.Quantity, o.UnitPrice, o.Subtotal, o.DiscountCode, o.DiscountAmount, o.VATAmount, o.TotalAmount,
	).Scan(&o.OrderNumber, &o.CreatedAt, &o.UpdatedAt)
	if postgres.IsUniqueViolation(err) {
		return apperr.Conflict("ORDER_EXISTS", err)
	}
	if err != nil {
		return err
	}
	o.Status = StatusPending
	return nil
}

func (r *Repo) AttachCharge(ctx context.Context, orderID, chargeID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET charge_id = $2, updated_at = now()
		WHERE id = $1 AND charge_id IS NULL`, orderID, chargeID)
	if postgres.IsUniqueViolation(err) {
		return apperr.Conflict("CHARGE_ALREADY_ATTACHED", err)
	}
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.Conflict("CHARGE_ALREADY_ATTACHED", nil)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

func (r *Repo) GetByChargeID(ctx context.Context, chargeID string) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE charge_id = $1`, chargeID))
}

// Settle flips PENDING to a terminal status in one statement. Zero rows means
// either the order is unknown or someone else settled it first.
func (r *Repo) Settle(ctx context.Context, p SettleParams) (Order, bool, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET
			status = $2,
			paid_at = CASE WHEN $2 = 'PAID' THEN $5::timestamptz ELSE NULL END,
			gateway_txn_id = COALESCE(NULLIF($3, ''), gateway_txn_id),
			payment_method = COALESCE(NULLIF($4, ''), payment_method),
			updated_at = now()
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+orderColumns,
		p.OrderID, string(p.Status), p.GatewayTxnID, p.PaymentMethod, p.At))
	if err == nil {
		return o, true, nil
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return Order{}, false, err
	}
	cur, err := r.Get(ctx, p.OrderID)
	if err != nil {
		return Order{}, false, err
	}
	return cur, false, nil
}
