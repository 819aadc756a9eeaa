// Package sqlite stores the payment audit log in a local SQLite file.
//
// WAL mode is enabled on Open so the reconciler can append while an operator
// reads the trail of an order.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jcmexdev/storefront/internal/storefront/paymentlog"

	// Pure-Go driver, no CGO needed in the container image.
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS payment_log (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Empty when a webhook could not be correlated to an order.
    order_id     TEXT NOT NULL DEFAULT '',
    payment_ref  TEXT NOT NULL DEFAULT '',
    event_id     TEXT NOT NULL DEFAULT '',
    status       TEXT NOT NULL,
    detail       TEXT NOT NULL DEFAULT '',

    -- W3C ids of the span that wrote the row.
    trace_id     TEXT NOT NULL DEFAULT '',
    span_id      TEXT NOT NULL DEFAULT '',

    created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payment_log_order ON payment_log(order_id, created_at);
CREATE INDEX IF NOT EXISTS idx_payment_log_ref ON payment_log(payment_ref);
`

// Repository is the SQLite implementation of paymentlog.Repository.
type Repository struct {
	db *sql.DB
}

var _ paymentlog.Repository = (*Repository)(nil)

// Open opens (or creates) the database at path and applies the schema.
//
//	repo, err := sqlite.Open("./data/payments.db")
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// Single writer; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Save appends an entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *paymentlog.Entry) error {
	const q = `
		INSERT INTO payment_log
			(order_id, payment_ref, event_id, status, detail, trace_id, span_id, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.OrderID,
		entry.PaymentRef,
		entry.EventID,
		string(entry.Status),
		entry.Detail,
		entry.TraceID,
		entry.SpanID,
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save payment log %s for order %q: %w", entry.Status, entry.OrderID, err)
	}
	return nil
}

func (r *Repository) ListByOrder(ctx context.Context, orderID string) ([]paymentlog.Entry, error) {
	const q = `
		SELECT order_id, payment_ref, event_id, status, detail, trace_id, span_id, created_at
		FROM   payment_log
		WHERE  order_id = ?
		ORDER  BY created_at, id`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list payment log for %q: %w", orderID, err)
	}
	defer rows.Close()

	var out []paymentlog.Entry
	for rows.Next() {
		var e paymentlog.Entry
		var createdAt string
		if err := rows.Scan(&e.OrderID, &e.PaymentRef, &e.EventID, &e.Status, &e.Detail,
			&e.TraceID, &e.SpanID, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan payment log: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
