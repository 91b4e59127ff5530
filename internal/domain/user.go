package domain

import "time"

type UserRole string

const (
	UserRoleRenter UserRole = "renter"
	UserRoleRentee UserRole = "rentee"
	UserRoleBoth   UserRole = "both"
)

func (r UserRole) Valid() bool {
	switch r {
	case UserRoleRenter, UserRoleRentee, UserRoleBoth:
		return true
	}
	return false
}

// CanRent reports whether the role may open rentals.
func (r UserRole) CanRent() bool {
	return r == UserRoleRenter || r == UserRoleBoth
}

// CanList reports whether the role may list GPUs for rent.
func (r UserRole) CanList() bool {
	return r == UserRoleRentee || r == UserRoleBoth
}

type User struct {
	ID                int32     `json:"id"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	PasswordHash      string    `json:"-"`
	Name              string    `json:"name"`
	PhoneNumber       string    `json:"phoneNumber"`
	Role              UserRole  `json:"role"`
	BillingCustomerID *string   `json:"billingCustomerId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// UserPatch lists the user fields that may change after registration.
type UserPatch struct {
	Name              *string
	Email             *string
	PhoneNumber       *string
	Role              *UserRole
	BillingCustomerID *string
}
