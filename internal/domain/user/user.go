package user

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user: not found")

// Directory answers whether a user id refers to a registered user.
type Directory interface {
	Exists(ctx context.Context, id string) (bool, error)
}
