package discounts

import (
	"context"
	"errors"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
	"github.com/ariefcatur/exam-vouchers/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Get(ctx context.Context, code string) (Code, error) {
	var c Code
	var kind string
	var restricted *string
	err := r.DB.QueryRow(ctx, `
		SELECT code, kind, value, min_quantity, max_uses, used_count,
		       valid_from, valid_until, restricted_to, description_en, description_ar, active
		FROM discount_codes WHERE code = $1`, Normalize(code)).Scan(
		&c.Code, &kind, &c.Value, &c.MinQuantity, &c.MaxUses, &c.UsedCount,
		&c.ValidFrom, &c.ValidUntil, &restricted, &c.DescriptionEn, &c.DescriptionAr, &c.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return Code{}, apperr.NotFound("DISCOUNT")
	}
	if err != nil {
		return Code{}, err
	}
	c.Kind = Kind(kind)
	if restricted != nil {
		c.RestrictedTo = *restricted
	}
	return c, nil
}

func (r *Repo) Create(ctx context.Context, c Code) error {
	if err := c.Check(); err != nil {
		return err
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO discount_codes(code, kind, value, min_quantity, max_uses, used_count,
			valid_from, valid_until, restricted_to, description_en, description_ar, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, $12)`,
		Normalize(c.Code), string(c.Kind), c.Value, c.MinQuantity, c.MaxUses, c.UsedCount,
		c.ValidFrom, c.ValidUntil, c.RestrictedTo, c.DescriptionEn, c.DescriptionAr, c.Active)
	if postgres.IsUniqueViolation(err) {
		return apperr.Conflict("DISCOUNT_EXISTS", err)
	}
	return err
}

// IncrementUsage is the only write to used_count.
func (r *Repo) IncrementUsage(ctx context.Context, code string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE discount_codes SET used_count = used_count + 1
		WHERE code = $1 AND (max_uses IS NULL OR used_count < max_uses)`, Normalize(code))
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
