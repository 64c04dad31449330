package model

import (
	"time"

	"counseling-platform/internal/domain"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleCounsellor Role = "counsellor"
)

// User is a domain entity representing a platform account. The role field is
// the single source of truth for capability checks: a counsellor may be
// assigned to chats and sees the shared queue, a regular user owns chats.
type User struct {
	ID        int64
	Username  string
	Role      Role
	CreatedAt time.Time
}

func NewUser(id int64, username string, role Role) (*User, error) {
	if id <= 0 || username == "" {
		return nil, domain.ErrInvalidArgument
	}
	if role != RoleUser && role != RoleCounsellor {
		return nil, domain.ErrInvalidArgument
	}
	return &User{ID: id, Username: username, Role: role, CreatedAt: time.Now()}, nil
}

func (u *User) IsCounsellor() bool { return u != nil && u.Role == RoleCounsellor }
