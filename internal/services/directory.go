package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"swiftparcel-backend/internal/models"

	"github.com/jmoiron/sqlx"
)

// ErrNoDriverAvailable is a soft outcome, not a request failure: the caller
// dispatches the parcel without an assignment and retries manually later.
var ErrNoDriverAvailable = errors.New("no driver available")

// DriverRef identifies a claimed driver.
type DriverRef struct {
	ID       string  `db:"id"`
	Name     string  `db:"name"`
	FCMToken *string `db:"fcm_token"`
}

// DriverDirectory answers "give me one ready driver" for the assignment
// coordinator. The lookup crosses a component boundary, so every call is
// bounded by a timeout regardless of what context the caller passes in.
type DriverDirectory struct {
	db      *sqlx.DB
	timeout time.Duration
}

func NewDriverDirectory(db *sqlx.DB) *DriverDirectory {
	return &DriverDirectory{db: db, timeout: 5 * time.Second}
}

// ClaimAvailable atomically claims one available driver, flipping them to
// on_trip. The single UPDATE with SKIP LOCKED means two concurrent claims
// can never pick the same driver.
func (d *DriverDirectory) ClaimAvailable(ctx context.Context) (DriverRef, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var ref DriverRef
	err := d.db.QueryRowxContext(ctx, `
		UPDATE users
		SET driver_status = $1, updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = (
			SELECT id FROM users
			WHERE role = $2 AND driver_status = $3
			ORDER BY updated_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, name, fcm_token
	`, models.DriverOnTrip, models.RoleDriver, models.DriverAvailable).StructScan(&ref)
	if errors.Is(err, sql.ErrNoRows) {
		return DriverRef{}, ErrNoDriverAvailable
	}
	if err != nil {
		return DriverRef{}, fmt.Errorf("driver directory claim failed: %w", err)
	}
	return ref, nil
}

// Release returns a claimed driver to the available pool. Used as
// compensation when the parcel write loses the assignment race.
func (d *DriverDirectory) Release(ctx context.Context, driverID string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		UPDATE users
		SET driver_status = $1, updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = $2 AND role = $3
	`, models.DriverAvailable, driverID, models.RoleDriver)
	return err
}

// SetDriverStatus is the explicit admin path for moving a driver between
// available, on_trip and offline. Delivery does not auto-release a driver.
func (d *DriverDirectory) SetDriverStatus(ctx context.Context, driverID string, status models.DriverStatus) error {
	if !status.IsValid() {
		return models.NewValidationError("unknown driver status %q", status)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `
		UPDATE users
		SET driver_status = $1, updated_at = EXTRACT(EPOCH FROM NOW())::BIGINT
		WHERE id = $2 AND role = $3
	`, status, driverID, models.RoleDriver)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return models.ErrNotFound
	}
	return err
}
