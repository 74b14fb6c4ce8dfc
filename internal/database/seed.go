package database

import (
	"log"

	"swiftparcel-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"
)

func SeedUsers(db *sqlx.DB) error {
	// Check if users already exist
	var count int
	if err := db.Get(&count, "SELECT COUNT(*) FROM users"); err != nil {
		return err
	}

	if count > 0 {
		log.Println("✓ Users already seeded, skipping...")
		return nil
	}

	log.Println("🌱 Seeding test users...")

	partnerPassword, err := bcrypt.GenerateFromPassword([]byte("partner123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	driverPassword, err := bcrypt.GenerateFromPassword([]byte("driver123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	adminPassword, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	available := string(models.DriverAvailable)

	users := []map[string]interface{}{
		{
			"id":            uuid.New().String(),
			"email":         "partner@swiftparcel.com",
			"password":      string(partnerPassword),
			"name":          "Scan Partner",
			"role":          models.RolePartner,
			"driver_status": nil,
		},
		{
			"id":            uuid.New().String(),
			"email":         "driver@swiftparcel.com",
			"password":      string(driverPassword),
			"name":          "John Driver",
			"role":          models.RoleDriver,
			"driver_status": available,
		},
		{
			"id":            uuid.New().String(),
			"email":         "driver2@swiftparcel.com",
			"password":      string(driverPassword),
			"name":          "Maya Driver",
			"role":          models.RoleDriver,
			"driver_status": available,
		},
		{
			"id":            uuid.New().String(),
			"email":         "admin@swiftparcel.com",
			"password":      string(adminPassword),
			"name":          "Dispatch Admin",
			"role":          models.RoleAdmin,
			"driver_status": nil,
		},
	}

	for _, user := range users {
		query := `
			INSERT INTO users (id, email, password, name, role, driver_status)
			VALUES (:id, :email, :password, :name, :role, :driver_status)
		`
		if _, err := db.NamedExec(query, user); err != nil {
			return err
		}
		log.Printf("  ✓ Created user: %s (%s)", user["email"], user["role"])
	}

	log.Println("✓ Successfully seeded test users")
	log.Println("  📧 Partner: partner@swiftparcel.com / partner123")
	log.Println("  📧 Driver:  driver@swiftparcel.com / driver123")
	log.Println("  📧 Admin:   admin@swiftparcel.com / admin123")
	return nil
}
