package users

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/pkg/errors"
)

// RoleType represents the role the backend assigned to a user
type RoleType string

const (
	RoleUser  RoleType = "user"  // Regular user, can only see and edit their own profile
	RoleAdmin RoleType = "admin" // Can list, edit and delete other users
)

// ParseRole converts a raw role string into a RoleType.
func ParseRole(s string) (RoleType, error) {
	switch RoleType(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", errors.Errorf("[ParseRole] invalid role %q (valid options: user, admin)", s)
	}
}

// User is the client's cached copy of a backend user record.
// The backend owns it; the client only replaces it on fetch or merges a Patch locally.
type User struct {
	ID          string    `json:"id"`                   // Opaque backend identifier
	Email       string    `json:"email"`                // User's email address
	Username    string    `json:"username,omitempty"`   // Login handle
	DisplayName string    `json:"name,omitempty"`       // Backend "name" field
	Role        RoleType  `json:"role"`                 // user or admin
	CreatedAt   time.Time `json:"created_at,omitempty"` // When the account was created
	UpdatedAt   time.Time `json:"updated_at,omitempty"` // Last backend-side modification
}

// Patch is a partial User update. Nil fields are left untouched.
type Patch struct {
	Email       *string   `json:"email,omitempty"`
	Username    *string   `json:"username,omitempty"`
	DisplayName *string   `json:"name,omitempty"`
	Role        *RoleType `json:"role,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Email == nil && p.Username == nil && p.DisplayName == nil && p.Role == nil
}

// Apply returns a copy of u with the patch merged in.
func (u User) Apply(p Patch) User {
	u.Email = utils.ValueOr(p.Email, u.Email)
	u.Username = utils.ValueOr(p.Username, u.Username)
	u.DisplayName = utils.ValueOr(p.DisplayName, u.DisplayName)
	u.Role = utils.ValueOr(p.Role, u.Role)
	return u
}

// Clone returns a copy of the user, or nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// IsAdmin returns true if the user can use the admin user-management views
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Name returns the display name, falling back to the username and then the email.
func (u *User) Name() string {
	switch {
	case u == nil:
		return ""
	case u.DisplayName != "":
		return u.DisplayName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// UsersPage is one page of the admin user listing.
type UsersPage struct {
	Users []*User `json:"users"`
	Total int     `json:"total"`
	Page  int     `json:"page"`
	Limit int     `json:"limit"`
}

// Pages returns the number of pages the listing spans.
func (p UsersPage) Pages() int {
	if p.Limit <= 0 {
		return 0
	}
	return (p.Total + p.Limit - 1) / p.Limit
}
