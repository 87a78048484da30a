package pgx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/gatehouse-auth/gatehouse/core"
)

func (a *Adapter) CreateVerification(ctx context.Context, v *core.Verification) error {
	query := `INSERT INTO verifications (id, identifier, value_hash, purpose, attempts, expires_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := a.pool.Exec(ctx, query,
		v.ID, v.Identifier, v.ValueHash, v.Purpose, v.Attempts, v.ExpiresAt, v.CreatedAt,
	)
	return err
}

func (a *Adapter) GetVerificationByID(ctx context.Context, id string) (*core.Verification, error) {
	query := `SELECT id, identifier, value_hash, purpose, attempts, expires_at, created_at FROM verifications WHERE id = $1`

	v := &core.Verification{}
	err := a.pool.QueryRow(ctx, query, id).Scan(
		&v.ID, &v.Identifier, &v.ValueHash, &v.Purpose, &v.Attempts, &v.ExpiresAt, &v.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrVerificationNotFound
		}
		return nil, err
	}
	return v, nil
}

func (a *Adapter) UpdateVerification(ctx context.Context, v *core.Verification) error {
	query := `UPDATE verifications SET value_hash = $1, attempts = $2, expires_at = $3 WHERE id = $4`

	tag, err := a.pool.Exec(ctx, query, v.ValueHash, v.Attempts, v.ExpiresAt, v.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrVerificationNotFound
	}
	return nil
}

func (a *Adapter) DeleteVerification(ctx context.Context, id string) error {
	tag, err := a.pool.Exec(ctx, `DELETE FROM verifications WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return core.ErrVerificationNotFound
	}
	return nil
}

func (a *Adapter) DeleteExpiredVerifications(ctx context.Context) (int, error) {
	tag, err := a.pool.Exec(ctx, `DELETE FROM verifications WHERE expires_at < now()`)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}
