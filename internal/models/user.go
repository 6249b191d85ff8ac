package models

import (
	"fmt"
	"strings"

	"github.com/desertthunder/imgset/internal/shared"
)

// User is an account that owns labels, csvfiles, datasets and images.
type User struct {
	record
	email string
	name  string
}

// NewUser creates a [User] with the given sequence, email and display name.
func NewUser(sequence int, email, name string) *User {
	return &User{record: newRecord(sequence), email: email, name: name}
}

func (u *User) Email() string { return u.email }
func (u *User) Name() string  { return u.name }

func (u *User) SetEmail(email string) { u.email = email }
func (u *User) SetName(name string)   { u.name = name }

// Validate requires a plausible email address.
func (u *User) Validate() error {
	if u.id == "" {
		return fmt.Errorf("%w: user ID is required", shared.ErrInvalidInput)
	}
	if !strings.Contains(u.email, "@") {
		return fmt.Errorf("%w: user email %q is invalid", shared.ErrInvalidInput, u.email)
	}
	return nil
}
