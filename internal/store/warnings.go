package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/nekodylan/OVL-MD/internal/core"
)

type WarningRepository struct {
	db *sqlx.DB
}

// Increment creates the warning record with count 1 or adds one to it and
// returns the new count. Every applied eventID is remembered for the key, so an
// event seen before is not counted again, even after the record was deleted, and
// yields ErrAlreadyApplied.
func (r *WarningRepository) Increment(ctx context.Context, key core.WarningKey, eventID string) (count int, err error) {
	if eventID == "" {
		eventID = uuid.NewString()
	}
	now := time.Now().Unix()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin warning increment")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	mark := tx.Rebind(`INSERT INTO warning_events (group_id, user_id, policy, event_id, applied_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (group_id, user_id, policy, event_id) DO NOTHING`)
	res, err := tx.ExecContext(ctx, mark, key.GroupID, key.UserID, string(key.Policy), eventID, now)
	if err != nil {
		return 0, errors.Wrap(err, "record warning event")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrAlreadyApplied
	}

	bump := tx.Rebind(`INSERT INTO warnings (group_id, user_id, policy, warn_count, last_event_id, updated_at)
VALUES (?, ?, ?, 1, ?, ?)
ON CONFLICT (group_id, user_id, policy) DO UPDATE
SET warn_count = warnings.warn_count + 1, last_event_id = excluded.last_event_id, updated_at = excluded.updated_at
RETURNING warn_count`)
	if err = tx.QueryRowxContext(ctx, bump, key.GroupID, key.UserID, string(key.Policy), eventID, now).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "increment warning")
	}
	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit warning increment")
	}
	return count, nil
}

// PruneBefore forgets applied event ids recorded before cutoff.
func (r *WarningRepository) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := r.db.Rebind(`DELETE FROM warning_events WHERE applied_at < ?`)
	res, err := r.db.ExecContext(ctx, query, cutoff.Unix())
	if err != nil {
		return 0, errors.Wrap(err, "prune warning events")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Get returns the warning record for key, or nil when the member has none.
func (r *WarningRepository) Get(ctx context.Context, key core.WarningKey) (*core.WarningRecord, error) {
	var rec core.WarningRecord
	query := r.db.Rebind(`SELECT group_id, user_id, policy, warn_count AS count FROM warnings WHERE group_id = ? AND user_id = ? AND policy = ?`)
	if err := r.db.GetContext(ctx, &rec, query, key.GroupID, key.UserID, string(key.Policy)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get warning")
	}
	return &rec, nil
}

func (r *WarningRepository) Delete(ctx context.Context, key core.WarningKey) error {
	query := r.db.Rebind(`DELETE FROM warnings WHERE group_id = ? AND user_id = ? AND policy = ?`)
	_, err := r.db.ExecContext(ctx, query, key.GroupID, key.UserID, string(key.Policy))
	return errors.Wrap(err, "delete warning")
}

// ResetMember drops every warning a member holds in a group.
func (r *WarningRepository) ResetMember(ctx context.Context, groupID, userID string) (int64, error) {
	query := r.db.Rebind(`DELETE FROM warnings WHERE group_id = ? AND user_id = ?`)
	res, err := r.db.ExecContext(ctx, query, groupID, userID)
	if err != nil {
		return 0, errors.Wrap(err, "reset warnings")
	}
	n, _ := res.RowsAffected()
	return n, nil
}
