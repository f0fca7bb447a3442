package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edupagos/colegio-api/internal/models"
)

// AuthRepository manages refresh tokens and the audit trail.
type AuthRepository struct {
	db *sqlx.DB
}

// NewAuthRepository constructs an AuthRepository.
func NewAuthRepository(db *sqlx.DB) *AuthRepository {
	return &AuthRepository{db: db}
}

// SaveRefreshToken stores a newly issued refresh token.
func (r *AuthRepository) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO refresh_tokens (id, user_id, token, expires_at, created_at, revoked, ip_address, user_agent)
        VALUES (:id, :user_id, :token, :expires_at, :created_at, :revoked, :ip_address, :user_agent)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// FindRefreshToken looks up a live refresh token by its opaque value.
func (r *AuthRepository) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, token, expires_at, created_at, revoked, revoked_at, ip_address, user_agent
        FROM refresh_tokens WHERE token = $1 AND revoked = false`
	var stored models.RefreshToken
	if err := r.db.GetContext(ctx, &stored, query, token); err != nil {
		return nil, err
	}
	return &stored, nil
}

// RevokeRefreshToken marks one token revoked.
func (r *AuthRepository) RevokeRefreshToken(ctx context.Context, id string) error {
	const query = `UPDATE refresh_tokens SET revoked = true, revoked_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeUserTokens revokes every live token of one user, used on password
// reset and account deletion.
func (r *AuthRepository) RevokeUserTokens(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = true, revoked_at = $2 WHERE user_id = $1 AND revoked = false`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

// SaveAuditLog appends one audit entry. Audit failures are reported but never
// block the action that produced them.
func (r *AuthRepository) SaveAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values,
        ip_address, user_agent, created_at)
        VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values,
        :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("save audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns the most recent audit entries, optionally scoped to a
// resource.
func (r *AuthRepository) ListAuditLogs(ctx context.Context, resource string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var logs []models.AuditLog
	if resource != "" {
		const query = `SELECT id, user_id, action, resource, resource_id, old_values, new_values,
            ip_address, user_agent, created_at
            FROM audit_logs WHERE resource = $1 ORDER BY created_at DESC LIMIT $2`
		if err := r.db.SelectContext(ctx, &logs, query, resource, limit); err != nil {
			return nil, fmt.Errorf("list audit logs: %w", err)
		}
		return logs, nil
	}
	const query = `SELECT id, user_id, action, resource, resource_id, old_values, new_values,
        ip_address, user_agent, created_at
        FROM audit_logs ORDER BY created_at DESC LIMIT $1`
	if err := r.db.SelectContext(ctx, &logs, query, limit); err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return logs, nil
}
