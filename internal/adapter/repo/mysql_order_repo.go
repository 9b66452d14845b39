package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checkout-api/internal/usecase"
)

type MySQLOrderRepo struct{ db *sql.DB }

func NewMySQLOrderRepo(db *sql.DB) *MySQLOrderRepo { return &MySQLOrderRepo{db: db} }

func (r *MySQLOrderRepo) Create(ctx context.Context, o *usecase.OrderRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO orders (id,status,currency,provider_order_id,subtotal_cents,tax_cents,shipping_cents,discount_cents,total_cents,customer_json,items_json,version,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,0,NOW(),NOW())
`, o.ID, o.Status, o.Currency, nullable(o.ProviderOrderID), o.SubtotalCents, o.TaxCents, o.ShippingCents, o.DiscountCents, o.TotalCents, o.CustomerJSON, o.ItemsJSON)
	if isDuplicate(err) {
		return usecase.ErrDuplicate
	}
	return err
}

func (r *MySQLOrderRepo) GetByID(ctx context.Context, id string) (*usecase.OrderRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,status,currency,COALESCE(provider_order_id,''),subtotal_cents,tax_cents,shipping_cents,discount_cents,total_cents,customer_json,items_json,version
FROM orders WHERE id=?`, id)
	return scanOrder(row)
}

func (r *MySQLOrderRepo) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*usecase.OrderRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id,status,currency,COALESCE(provider_order_id,''),subtotal_cents,tax_cents,shipping_cents,discount_cents,total_cents,customer_json,items_json,version
FROM orders WHERE provider_order_id=?`, providerOrderID)
	return scanOrder(row)
}

func (r *MySQLOrderRepo) SetProviderOrderID(ctx context.Context, id, providerOrderID string) error {
	res, err := r.db.ExecContext(ctx, `
        UPDATE orders
        SET provider_order_id = ?, version = version + 1, updated_at = NOW()
        WHERE id = ? AND provider_order_id IS NULL`,
		providerOrderID, id,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("order %s: provider order id already set or order missing", id)
	}
	return nil
}

// UpdateStatusIf applies a guarded transition and bumps the version.
// rows == 0 → nothing matched (either not found or status mismatch).
func (r *MySQLOrderRepo) UpdateStatusIf(ctx context.Context, id string, fromStatus, toStatus string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE orders
        SET status = ?, version = version + 1, updated_at = NOW()
        WHERE id = ? AND status = ?`,
		toStatus, id, fromStatus,
	)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func scanOrder(row *sql.Row) (*usecase.OrderRecord, error) {
	var rec usecase.OrderRecord
	err := row.Scan(&rec.ID, &rec.Status, &rec.Currency, &rec.ProviderOrderID,
		&rec.SubtotalCents, &rec.TaxCents, &rec.ShippingCents, &rec.DiscountCents, &rec.TotalCents,
		&rec.CustomerJSON, &rec.ItemsJSON, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ usecase.OrderRepo = (*MySQLOrderRepo)(nil)
