// Package device tracks registered kiosks and their refresh tokens.
package device

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huandu/go-sqlbuilder"
)

var (
	// ErrDeviceID is returned for empty or oversized device ids.
	ErrDeviceID = errors.New("device id required (max 128 characters)")
	// ErrTokenRejected is returned for unknown, revoked or expired refresh tokens.
	ErrTokenRejected = errors.New("refresh token rejected")
)

// Repository persists kiosks and refresh tokens.
type Repository struct {
	db     *sql.DB
	flavor sqlbuilder.Flavor
	now    func() time.Time
}

// NewRepository creates a repo bound to the SQL flavor of db.
func NewRepository(db *sql.DB, flavor sqlbuilder.Flavor) *Repository {
	return &Repository{db: db, flavor: flavor, now: time.Now}
}

// ValidID reports whether id is acceptable as a device id.
func ValidID(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && len(id) <= 128
}

// Register records a kiosk, or refreshes its last-seen time.
func (r *Repository) Register(ctx context.Context, deviceID string) error {
	if !ValidID(deviceID) {
		return ErrDeviceID
	}
	now := r.now().UTC()

	ub := r.flavor.NewUpdateBuilder().Update("kiosk_devices")
	ub.Set(ub.Assign("last_seen_at", now)).Where(ub.Equal("device_id", deviceID))
	query, args := ub.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("touch device: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	ib := r.flavor.NewInsertBuilder().InsertInto("kiosk_devices").
		Cols("device_id", "created_at", "last_seen_at").Values(deviceID, now, now)
	query, args = ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert device: %w", err)
	}
	return nil
}

// SaveRefreshToken stores a refresh token for rotation checks. Only a hash is kept.
func (r *Repository) SaveRefreshToken(ctx context.Context, deviceID, token string, expiresAt time.Time) error {
	ib := r.flavor.NewInsertBuilder().InsertInto("refresh_tokens").
		Cols("token_hash", "device_id", "expires_at", "revoked").
		Values(hashToken(token), deviceID, expiresAt.UTC(), false)
	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// ConsumeRefreshToken revokes token if it is live and belongs to deviceID.
// Each refresh token can be exchanged once.
func (r *Repository) ConsumeRefreshToken(ctx context.Context, deviceID, token string) error {
	ub := r.flavor.NewUpdateBuilder().Update("refresh_tokens")
	ub.Set(ub.Assign("revoked", true)).Where(
		ub.Equal("token_hash", hashToken(token)),
		ub.Equal("device_id", deviceID),
		ub.Equal("revoked", false),
		ub.GreaterThan("expires_at", r.now().UTC()),
	)
	query, args := ub.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("consume refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("consume refresh token: %w", err)
	}
	if n == 0 {
		return ErrTokenRejected
	}
	return nil
}

// PurgeExpiredTokens deletes refresh tokens past their expiry.
func (r *Repository) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	db := r.flavor.NewDeleteBuilder()
	db.DeleteFrom("refresh_tokens").Where(db.LessThan("expires_at", r.now().UTC()))
	query, args := db.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return res.RowsAffected()
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
