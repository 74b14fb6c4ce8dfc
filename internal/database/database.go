package database

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func Connect(dbURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("✅ Database connection established")
	return db, nil
}

func Migrate(db *sqlx.DB) error {
	migrations := []string{
		// Users double as the driver directory: drivers carry an
		// availability status the assignment coordinator claims against.
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			name TEXT NOT NULL,
			role TEXT NOT NULL CHECK(role IN ('partner', 'driver', 'admin')),
			driver_status TEXT CHECK(driver_status IN ('available', 'on_trip', 'offline')),
			fcm_token TEXT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		`CREATE TABLE IF NOT EXISTS shipments (
			id TEXT PRIMARY KEY,
			awb TEXT NOT NULL UNIQUE,
			owner_id TEXT NOT NULL REFERENCES users(id),
			pickup_name TEXT NOT NULL,
			pickup_phone TEXT NOT NULL DEFAULT '',
			pickup_street TEXT NOT NULL,
			pickup_city TEXT NOT NULL,
			pickup_state TEXT NOT NULL DEFAULT '',
			pickup_pincode TEXT NOT NULL,
			delivery_name TEXT NOT NULL,
			delivery_phone TEXT NOT NULL DEFAULT '',
			delivery_street TEXT NOT NULL,
			delivery_city TEXT NOT NULL,
			delivery_state TEXT NOT NULL DEFAULT '',
			delivery_pincode TEXT NOT NULL,
			service_type TEXT NOT NULL DEFAULT 'standard',
			insurance BOOLEAN NOT NULL DEFAULT FALSE,
			fragile BOOLEAN NOT NULL DEFAULT FALSE,
			total_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_value DOUBLE PRECISION NOT NULL DEFAULT 0,
			shipping_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'pending',
			estimated_delivery BIGINT NOT NULL,
			actual_delivery BIGINT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Ordered package list per shipment; position preserves booking order.
		`CREATE TABLE IF NOT EXISTS shipment_packages (
			id SERIAL PRIMARY KEY,
			shipment_id TEXT NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
			position INT NOT NULL,
			weight_kg DOUBLE PRECISION NOT NULL,
			quantity INT NOT NULL DEFAULT 1,
			value DOUBLE PRECISION NOT NULL DEFAULT 0,
			length_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
			width_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
			height_cm DOUBLE PRECISION NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS parcels (
			id TEXT PRIMARY KEY,
			barcode TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'scanned',
			description TEXT NOT NULL DEFAULT '',
			weight_kg DOUBLE PRECISION,
			scanned_by_id TEXT NOT NULL REFERENCES users(id),
			scanned_by_name TEXT NOT NULL,
			scanned_at BIGINT NOT NULL,
			assigned_driver_id TEXT REFERENCES users(id),
			assigned_driver_name TEXT,
			delivered_at BIGINT,
			delivered_to TEXT,
			delivery_notes TEXT,
			photo_proof TEXT,
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			updated_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT
		)`,

		// Append-only tracking history. The serial id is the ordering
		// authority; rows are never updated or deleted.
		`CREATE TABLE IF NOT EXISTS tracking_events (
			id SERIAL PRIMARY KEY,
			shipment_id TEXT REFERENCES shipments(id) ON DELETE CASCADE,
			parcel_id TEXT REFERENCES parcels(id) ON DELETE CASCADE,
			status TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL DEFAULT EXTRACT(EPOCH FROM NOW())::BIGINT,
			CHECK (shipment_id IS NOT NULL OR parcel_id IS NOT NULL)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_tracking_events_shipment ON tracking_events(shipment_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_events_parcel ON tracking_events(parcel_id)`,
		`CREATE INDEX IF NOT EXISTS idx_parcels_partner ON parcels(scanned_by_id)`,
		`CREATE INDEX IF NOT EXISTS idx_users_driver_status ON users(role, driver_status)`,
	}

	for i, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}
