package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/nekodylan/OVL-MD/internal/core"
)

type PolicyRepository struct {
	db *sqlx.DB
}

// Get returns the policy for a group, or nil when none was ever configured.
func (r *PolicyRepository) Get(ctx context.Context, groupID string, kind core.PolicyKind) (*core.PolicySetting, error) {
	var setting core.PolicySetting
	query := r.db.Rebind(`SELECT group_id, kind, enabled, action FROM policy_settings WHERE group_id = ? AND kind = ?`)
	if err := r.db.GetContext(ctx, &setting, query, groupID, string(kind)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get policy")
	}
	return &setting, nil
}

func (r *PolicyRepository) Put(ctx context.Context, setting core.PolicySetting) error {
	query := r.db.Rebind(`INSERT INTO policy_settings (group_id, kind, enabled, action) VALUES (?, ?, ?, ?)
ON CONFLICT (group_id, kind) DO UPDATE SET enabled = excluded.enabled, action = excluded.action`)
	_, err := r.db.ExecContext(ctx, query, setting.GroupID, string(setting.Kind), setting.Enabled, string(setting.Action))
	return errors.Wrap(err, "put policy")
}

// ListGroup returns every configured policy of a group.
func (r *PolicyRepository) ListGroup(ctx context.Context, groupID string) ([]core.PolicySetting, error) {
	var out []core.PolicySetting
	query := r.db.Rebind(`SELECT group_id, kind, enabled, action FROM policy_settings WHERE group_id = ? ORDER BY kind`)
	if err := r.db.SelectContext(ctx, &out, query, groupID); err != nil {
		return nil, errors.Wrap(err, "list policies")
	}
	return out, nil
}

type GroupSettingsRepository struct {
	db *sqlx.DB
}

// Get returns the membership settings of a group, or nil when none exist.
func (r *GroupSettingsRepository) Get(ctx context.Context, groupID string) (*core.GroupSettings, error) {
	var settings core.GroupSettings
	query := r.db.Rebind(`SELECT group_id, welcome, goodbye, antipromote, antidemote FROM group_settings WHERE group_id = ?`)
	if err := r.db.GetContext(ctx, &settings, query, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get group settings")
	}
	return &settings, nil
}

func (r *GroupSettingsRepository) Put(ctx context.Context, s core.GroupSettings) error {
	query := r.db.Rebind(`INSERT INTO group_settings (group_id, welcome, goodbye, antipromote, antidemote) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (group_id) DO UPDATE SET welcome = excluded.welcome, goodbye = excluded.goodbye,
  antipromote = excluded.antipromote, antidemote = excluded.antidemote`)
	_, err := r.db.ExecContext(ctx, query, s.GroupID, s.Welcome, s.Goodbye, s.AntiPromote, s.AntiDemote)
	return errors.Wrap(err, "put group settings")
}
