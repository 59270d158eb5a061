package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// EntityID satisfies memstore.Entity.
func (u User) EntityID() string { return u.ID }

// Clone returns a copy that shares no pointers with u.
func (u User) Clone() User {
	if u.UpdatedAt != nil {
		t := *u.UpdatedAt
		u.UpdatedAt = &t
	}
	return u
}

// NormalizeUser trims input fields and checks the rules the API enforces.
// An empty ID is allowed; the service assigns one.
func NormalizeUser(u User) (User, error) {
	u.ID = strings.TrimSpace(u.ID)
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)

	if strings.ContainsAny(u.ID, "/ \t\r\n") {
		return User{}, fmt.Errorf("%w: id must not contain '/' or whitespace", ErrInvalidUser)
	}
	if u.Name == "" {
		return User{}, fmt.Errorf("%w: name cannot be empty", ErrInvalidUser)
	}
	if u.Email != "" {
		addr, err := mail.ParseAddress(u.Email)
		if err != nil || addr.Address != u.Email {
			return User{}, fmt.Errorf("%w: invalid email %q", ErrInvalidUser, u.Email)
		}
	}
	return u, nil
}
