package repository

import (
	"context"
	"errors"

	"github.com/julioborgesigt/encurtador/internal/domain"
)

var (
	ErrCodeNotFound = errors.New("short code not found")
	ErrCodeTaken    = errors.New("short code already exists")
	ErrUserNotFound = errors.New("user not found")
)

// ListParams narrows and pages a user's link listing.
type ListParams struct {
	Search string
	Limit  int
	Offset int
}

// GoogleProfile is the identity the OAuth collaborator hands us.
type GoogleProfile struct {
	GoogleID  string
	Email     string
	Name      string
	AvatarURL string
}

// Storage is the persistence collaborator for the core. Implementations
// must enforce short_code uniqueness: Insert returns ErrCodeTaken when the
// code is already present, including when two concurrent inserts race on
// the constraint.
type Storage interface {
	// User methods
	UpsertGoogleUser(ctx context.Context, profile GoogleProfile) (*domain.User, error)
	GetUserByID(ctx context.Context, id int64) (*domain.User, error)

	// Link methods. FindByCode returns expired records as-is; expiration
	// semantics belong to the service layer.
	FindByCode(ctx context.Context, code string) (*domain.URL, error)
	FindDuplicateByURL(ctx context.Context, originalURL string) (*domain.URL, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, url *domain.URL) error
	DeleteByID(ctx context.Context, id int64) error
	DeleteByCode(ctx context.Context, code string) error
	IncrementClicks(ctx context.Context, id int64) error
	ListUserLinks(ctx context.Context, userID int64, params ListParams) ([]*domain.URL, int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}
