package eddy

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusGone      UserStatus = "gone"
)

// User is the read model for feed owners: regular users and groups alike.
type User struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	Username string     `json:"username"`
	Status   UserStatus `json:"status"`
	IsGroup  bool       `json:"is_group"`

	// Profile privacy, used to derive post flags at creation/update time.
	IsPrivate   bool `json:"is_private"`
	IsProtected bool `json:"is_protected"`
}

// IsActive reports whether the account still owns its content. Content of
// suspended or gone accounts fails closed everywhere.
func (u *User) IsActive() bool {
	return u != nil && u.Status == UserStatusActive
}
