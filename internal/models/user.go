package models

// Roles carried in the JWT and checked by middleware.RequireRole.
const (
	RolePartner = "partner" // scan partner: performs physical intake scanning
	RoleDriver  = "driver"
	RoleAdmin   = "admin" // dispatchers and dashboard users
)

type DriverStatus string

// Driver availability taxonomy used by the assignment coordinator. A driver
// is claimable only while "available"; claiming flips them to "on_trip".
const (
	DriverAvailable DriverStatus = "available"
	DriverOnTrip    DriverStatus = "on_trip"
	DriverOffline   DriverStatus = "offline"
)

func (s DriverStatus) IsValid() bool {
	switch s {
	case DriverAvailable, DriverOnTrip, DriverOffline:
		return true
	default:
		return false
	}
}

type User struct {
	ID           string        `json:"id" db:"id"`
	Email        string        `json:"email" db:"email"`
	Password     string        `json:"-" db:"password"` // Never return password in JSON
	Name         string        `json:"name" db:"name"`
	Role         string        `json:"role" db:"role"` // "partner", "driver" or "admin"
	DriverStatus *DriverStatus `json:"driver_status,omitempty" db:"driver_status"`
	FCMToken     *string       `json:"-" db:"fcm_token"`
	CreatedAt    int64         `json:"created_at" db:"created_at"`
	UpdatedAt    int64         `json:"updated_at" db:"updated_at"`
}

type UserResponse struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	Name         string        `json:"name"`
	Role         string        `json:"role"`
	DriverStatus *DriverStatus `json:"driver_status,omitempty"`
	CreatedAt    int64         `json:"created_at"`
}

func (u *User) ToUserResponse() UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		DriverStatus: u.DriverStatus,
		CreatedAt:    u.CreatedAt,
	}
}
