package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"checkout-api/internal/usecase"
)

type MySQLCaptureRepo struct{ db *sql.DB }

func NewMySQLCaptureRepo(db *sql.DB) *MySQLCaptureRepo { return &MySQLCaptureRepo{db: db} }

// Record inserts the capture row. capture_id is the primary key: replaying
// the same capture is a no-op.
func (r *MySQLCaptureRepo) Record(ctx context.Context, c *usecase.CaptureRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO captures (capture_id,order_id,provider_order_id,status,amount_cents,currency,created_at)
VALUES (?,?,?,?,?,?,?)
`, c.CaptureID, c.OrderID, c.ProviderOrderID, c.Status, c.AmountCents, c.Currency, c.CreatedAt)
	if isDuplicate(err) {
		return nil
	}
	return err
}

func (r *MySQLCaptureRepo) GetByOrderID(ctx context.Context, orderID string) (*usecase.CaptureRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT capture_id,order_id,provider_order_id,status,amount_cents,currency,created_at
FROM captures WHERE order_id=?`, orderID)
	var c usecase.CaptureRecord
	err := row.Scan(&c.CaptureID, &c.OrderID, &c.ProviderOrderID, &c.Status, &c.AmountCents, &c.Currency, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// isDuplicate reports a MySQL 1062 duplicate key error.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

var _ usecase.CaptureRepo = (*MySQLCaptureRepo)(nil)
