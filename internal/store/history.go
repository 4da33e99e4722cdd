package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/nekodylan/OVL-MD/internal/core"
)

type HistoryRepository struct {
	db *sqlx.DB
}

type historyRow struct {
	ID        string `db:"id"`
	ChatID    string `db:"chat_id"`
	Sender    string `db:"sender"`
	FromMe    bool   `db:"from_me"`
	Payload   string `db:"payload"`
	CreatedAt int64  `db:"created_at"`
}

// SaveBatch writes entries in one transaction. Ids already stored are left untouched.
func (r *HistoryRepository) SaveBatch(ctx context.Context, entries []core.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin history batch")
	}
	query := tx.Rebind(`INSERT INTO message_history (id, chat_id, sender, from_me, payload, created_at)
VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`)
	for _, e := range entries {
		created := e.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := tx.ExecContext(ctx, query, e.ID, e.ChatID, e.Sender, e.FromMe, e.Payload, created.Unix()); err != nil {
			_ = tx.Rollback()
			return errors.Wrap(err, "insert history")
		}
	}
	return errors.Wrap(tx.Commit(), "commit history batch")
}

// Get returns a stored message by id, or nil when it is unknown.
func (r *HistoryRepository) Get(ctx context.Context, id string) (*core.HistoryEntry, error) {
	var row historyRow
	query := r.db.Rebind(`SELECT id, chat_id, sender, from_me, payload, created_at FROM message_history WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get history")
	}
	return &core.HistoryEntry{
		ID:        row.ID,
		ChatID:    row.ChatID,
		Sender:    row.Sender,
		FromMe:    row.FromMe,
		Payload:   row.Payload,
		CreatedAt: time.Unix(row.CreatedAt, 0),
	}, nil
}

// PruneBefore removes entries created before cutoff and returns how many went.
func (r *HistoryRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := r.db.Rebind(`DELETE FROM message_history WHERE created_at < ?`)
	res, err := r.db.ExecContext(ctx, query, cutoff.Unix())
	if err != nil {
		return 0, errors.Wrap(err, "prune history")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
