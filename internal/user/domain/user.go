package domain

import (
	"errors"
	"strings"
)

var ErrNotFound = errors.New("user not found")

// Roles that receive operational notifications.
var (
	DeliveryStaffRoles  = []string{"content-manager", "administrator"}
	InventoryAlertRoles = []string{"administrator", "admin"}
)

type User struct {
	ID          string
	FirstName   string
	LastName    string
	Email       string
	Role        string
	Locked      bool
	Deactivated bool
}

// Restricted reports whether the account may not place orders.
func (u User) Restricted() bool {
	return u.Locked || u.Deactivated
}

// DisplayName falls back to the user id when no name is on file.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.ID
	}
	return name
}
