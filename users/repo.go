package users

import "context"

// Directory looks up user profiles held by the user service. GetByEmail
// returns errors.ErrUserNotFound when no profile matches.
type Directory interface {
	GetByEmail(ctx context.Context, email string) (*User, error)
}
