package identity

import (
	"strings"
	"time"
)

// Role is the access tier of an account.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOwner    Role = "owner"
	RoleManager  Role = "manager"
	RoleStaff    Role = "staff"
	RoleRider    Role = "rider"
	RoleCustomer Role = "customer"
)

// Roles lists every valid role.
var Roles = []Role{RoleAdmin, RoleOwner, RoleManager, RoleStaff, RoleRider, RoleCustomer}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Status marks whether an account may sign in.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Location is a saved address.
type Location struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// User represents a registered account.
type User struct {
	ID                    string
	FirstName             string
	MiddleName            string
	LastName              string
	Age                   *int
	Phone                 string
	Locations             []Location
	Role                  Role
	BranchID              string
	Email                 string
	PasswordHash          []byte
	TemporaryPasswordHash []byte
	Status                Status
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CanAuthenticate reports whether at least one password hash is present.
func (u User) CanAuthenticate() bool {
	return len(u.PasswordHash) > 0 || len(u.TemporaryPasswordHash) > 0
}

// Profile is the public view of a user. Password hashes never leave the service.
type Profile struct {
	ID         string     `json:"id"`
	FirstName  string     `json:"firstname"`
	MiddleName string     `json:"middlename,omitempty"`
	LastName   string     `json:"lastname"`
	Age        *int       `json:"age,omitempty"`
	Phone      string     `json:"phone,omitempty"`
	Locations  []Location `json:"locations"`
	Role       Role       `json:"role"`
	BranchID   string     `json:"branchId,omitempty"`
	Email      string     `json:"email"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Profile projects the user without credentials.
func (u User) Profile() Profile {
	locations := u.Locations
	if locations == nil {
		locations = []Location{}
	}
	return Profile{
		ID:         u.ID,
		FirstName:  u.FirstName,
		MiddleName: u.MiddleName,
		LastName:   u.LastName,
		Age:        u.Age,
		Phone:      u.Phone,
		Locations:  locations,
		Role:       u.Role,
		BranchID:   u.BranchID,
		Email:      u.Email,
		Status:     u.Status,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// stampCreated fills missing creation and update times.
func stampCreated(u *User) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}
}

// NormalizeEmail trims and lower-cases an email so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
