package orders

import (
	"context"
	"errors"
	"strings"

	"github.com/ariefcatur/exam-vouchers/internal/apperr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Catalog is read-only access to certificates and storewide settings.
type Catalog interface {
	CertificateByCode(ctx context.Context, code string) (Certificate, error)
	CertificateByID(ctx context.Context, id string) (Certificate, error)
	// ListCertificates returns the active certificates in display order.
	ListCertificates(ctx context.Context) ([]Certificate, error)
	Settings(ctx context.Context) (Settings, error)
}

type CatalogRepo struct {
	DB *pgxpool.Pool
	// Defaults fill any settings column left empty.
	Defaults Settings
}

const certificateColumns = `id, code, name_en, name_ar, description_en, description_ar, category,
	price, institution_price, validity_months, active, sort_order`

func scanCertificate(row pgx.Row) (Certificate, error) {
	var c Certificate
	err := row.Scan(&c.ID, &c.Code, &c.NameEn, &c.NameAr, &c.DescriptionEn, &c.DescriptionAr, &c.Category,
		&c.Price, &c.InstitutionPrice, &c.ValidityMonths, &c.Active, &c.SortOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return Certificate{}, apperr.NotFound("CERTIFICATE")
	}
	return c, err
}

func (r *CatalogRepo) CertificateByCode(ctx context.Context, code string) (Certificate, error) {
	return scanCertificate(r.DB.QueryRow(ctx,
		`SELECT `+certificateColumns+` FROM certificates WHERE upper(code) = $1`,
		strings.ToUpper(strings.TrimSpace(code))))
}

func (r *CatalogRepo) CertificateByID(ctx context.Context, id string) (Certificate, error) {
	return scanCertificate(r.DB.QueryRow(ctx, `SELECT `+certificateColumns+` FROM certificates WHERE id = $1`, id))
}

func (r *CatalogRepo) ListCertificates(ctx context.Context) ([]Certificate, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+certificateColumns+` FROM certificates
		WHERE active ORDER BY sort_order, code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CatalogRepo) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	err := r.DB.QueryRow(ctx, `
		SELECT vat_percent, seller_name, seller_vat_number, low_stock_threshold
		FROM settings WHERE id = 1`).Scan(&s.VATPercent, &s.SellerName, &s.SellerVATNumber, &s.LowStockThreshold)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.Defaults, nil
	}
	if err != nil {
		return Settings{}, err
	}
	return s.withDefaults(r.Defaults), nil
}

func (s Settings) withDefaults(d Settings) Settings {
	if s.SellerName == "" {
		s.SellerName = d.SellerName
	}
	if s.SellerVATNumber == "" {
		s.SellerVATNumber = d.SellerVATNumber
	}
	if s.VATPercent == 0 {
		s.VATPercent = d.VATPercent
	}
	if s.LowStockThreshold == 0 {
		s.LowStockThreshold = d.LowStockThreshold
	}
	return s
}
