package repository

import (
	"context"
	"errors"

	"github.com/beaconops/emergency-dispatch/internal/models"
)

// ErrNotFound is returned when a user or contact does not exist.
var ErrNotFound = errors.New("not found")

type UserRepository interface {
	AddUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
}

type ContactRepository interface {
	AddContact(ctx context.Context, c *models.Contact) error
	ListContacts(ctx context.Context, userID string) ([]models.Contact, error)
	DeleteContact(ctx context.Context, id string) error
}

// ContactBook is the full registry surface the intake layer wires against.
type ContactBook interface {
	UserRepository
	ContactRepository
}
