package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/nekodylan/OVL-MD/internal/core"
)

type BanRepository struct {
	db *sqlx.DB
}

func (r *BanRepository) IsBanned(ctx context.Context, id string, typ core.BanType) (bool, error) {
	var one int
	query := r.db.Rebind(`SELECT 1 FROM bans WHERE id = ? AND type = ?`)
	if err := r.db.GetContext(ctx, &one, query, id, string(typ)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, errors.Wrap(err, "lookup ban")
	}
	return true, nil
}

// Add records a ban and reports whether it was new.
func (r *BanRepository) Add(ctx context.Context, id string, typ core.BanType) (bool, error) {
	query := r.db.Rebind(`INSERT INTO bans (id, type) VALUES (?, ?) ON CONFLICT (id, type) DO NOTHING`)
	res, err := r.db.ExecContext(ctx, query, id, string(typ))
	if err != nil {
		return false, errors.Wrap(err, "add ban")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Remove deletes a ban and reports whether one existed.
func (r *BanRepository) Remove(ctx context.Context, id string, typ core.BanType) (bool, error) {
	query := r.db.Rebind(`DELETE FROM bans WHERE id = ? AND type = ?`)
	res, err := r.db.ExecContext(ctx, query, id, string(typ))
	if err != nil {
		return false, errors.Wrap(err, "remove ban")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *BanRepository) List(ctx context.Context, typ core.BanType) ([]core.BanRecord, error) {
	var out []core.BanRecord
	query := r.db.Rebind(`SELECT id, type FROM bans WHERE type = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &out, query, string(typ)); err != nil {
		return nil, errors.Wrap(err, "list bans")
	}
	return out, nil
}

type SudoRepository struct {
	db *sqlx.DB
}

// List returns every sudo id in storage order of id.
func (r *SudoRepository) List(ctx context.Context) ([]string, error) {
	var out []string
	if err := r.db.SelectContext(ctx, &out, `SELECT id FROM sudo ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "list sudo")
	}
	return out, nil
}

func (r *SudoRepository) Add(ctx context.Context, id string) (bool, error) {
	query := r.db.Rebind(`INSERT INTO sudo (id) VALUES (?) ON CONFLICT (id) DO NOTHING`)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, errors.Wrap(err, "add sudo")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *SudoRepository) Remove(ctx context.Context, id string) (bool, error) {
	query := r.db.Rebind(`DELETE FROM sudo WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, errors.Wrap(err, "remove sudo")
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type RankRepository struct {
	db *sqlx.DB
}

// Bump adds exp and one message to a member's rank, creating it at level 0, and
// returns the updated record.
func (r *RankRepository) Bump(ctx context.Context, id, name string, exp int) (core.RankRecord, error) {
	var rec core.RankRecord
	query := r.db.Rebind(`INSERT INTO ranks (id, name, level, exp, messages) VALUES (?, ?, 0, ?, 1)
ON CONFLICT (id) DO UPDATE SET name = excluded.name, exp = ranks.exp + excluded.exp, messages = ranks.messages + 1
RETURNING id, name, level, exp, messages`)
	if err := r.db.QueryRowxContext(ctx, query, id, name, exp).StructScan(&rec); err != nil {
		return core.RankRecord{}, errors.Wrap(err, "bump rank")
	}
	return rec, nil
}

func (r *RankRepository) SetLevel(ctx context.Context, id string, level int) error {
	query := r.db.Rebind(`UPDATE ranks SET level = ? WHERE id = ?`)
	_, err := r.db.ExecContext(ctx, query, level, id)
	return errors.Wrap(err, "set level")
}

func (r *RankRepository) Get(ctx context.Context, id string) (*core.RankRecord, error) {
	var rec core.RankRecord
	query := r.db.Rebind(`SELECT id, name, level, exp, messages FROM ranks WHERE id = ?`)
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get rank")
	}
	return &rec, nil
}

// Top returns the members with the most exp.
func (r *RankRepository) Top(ctx context.Context, limit int) ([]core.RankRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var out []core.RankRecord
	query := r.db.Rebind(`SELECT id, name, level, exp, messages FROM ranks ORDER BY exp DESC, id LIMIT ?`)
	if err := r.db.SelectContext(ctx, &out, query, limit); err != nil {
		return nil, errors.Wrap(err, "top ranks")
	}
	return out, nil
}
