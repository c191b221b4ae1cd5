package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/julioborgesigt/encurtador/internal/domain"
	"github.com/julioborgesigt/encurtador/internal/repository"
)

// uniqueViolation is the SQLSTATE postgres reports when an insert races on
// the short_code unique index.
const uniqueViolation = "23505"

// PostgresStorage implements the Storage interface for PostgreSQL.
type PostgresStorage struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates a new PostgreSQL storage instance.
func New(db *gorm.DB, log *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:  db,
		log: log,
	}
}

// --- User Methods ---

// UpsertGoogleUser finds a user by Google ID, refreshing the profile and
// last_login, or creates a new account on first sign-in.
func (s *PostgresStorage) UpsertGoogleUser(ctx context.Context, profile repository.GoogleProfile) (*domain.User, error) {
	var user domain.User

	now := time.Now()
	err := s.db.WithContext(ctx).Where("google_id = ?", profile.GoogleID).First(&user).Error
	if err == nil {
		updates := map[string]interface{}{
			"email":      profile.Email,
			"name":       profile.Name,
			"last_login": now,
		}
		if profile.AvatarURL != "" {
			updates["avatar_url"] = profile.AvatarURL
		}
		if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			s.log.Error("failed to update user profile", zap.Int64("user_id", user.ID), zap.Error(err))
			return nil, fmt.Errorf("failed to update user: %w", err)
		}
		return &user, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Error("failed to find user by google_id", zap.Error(err))
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	user = domain.User{
		GoogleID:  profile.GoogleID,
		Email:     profile.Email,
		Name:      profile.Name,
		LastLogin: &now,
	}
	if profile.AvatarURL != "" {
		avatar := profile.AvatarURL
		user.AvatarURL = &avatar
	}

	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		s.log.Error("failed to create user", zap.String("email", profile.Email), zap.Error(err))
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.log.Info("created new user", zap.Int64("user_id", user.ID), zap.String("email", user.Email))
	return &user, nil
}

// GetUserByID loads a user by primary key.
func (s *PostgresStorage) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User

	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrUserNotFound
	}
	if err != nil {
		s.log.Error("failed to get user", zap.Int64("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// --- Link Methods ---

// FindByCode returns the record for a short code. Expired records are
// returned unchanged; the service decides what expiry means.
func (s *PostgresStorage) FindByCode(ctx context.Context, code string) (*domain.URL, error) {
	var url domain.URL

	err := s.db.WithContext(ctx).Where("short_code = ?", code).First(&url).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrCodeNotFound
	}
	if err != nil {
		s.log.Error("failed to get link", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return &url, nil
}

// FindDuplicateByURL returns a non-custom record with the same destination,
// if one exists.
func (s *PostgresStorage) FindDuplicateByURL(ctx context.Context, originalURL string) (*domain.URL, error) {
	var url domain.URL

	err := s.db.WithContext(ctx).
		Where("original_url = ? AND is_custom = ?", originalURL, false).
		First(&url).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrCodeNotFound
	}
	if err != nil {
		s.log.Error("failed to find duplicate", zap.Error(err))
		return nil, fmt.Errorf("failed to find duplicate: %w", err)
	}

	return &url, nil
}

// CodeExists checks whether a short code is present.
func (s *PostgresStorage) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&domain.URL{}).Where("short_code = ?", code).Count(&count).Error
	if err != nil {
		s.log.Error("failed to check code existence", zap.String("code", code), zap.Error(err))
		return false, fmt.Errorf("failed to check code: %w", err)
	}

	return count > 0, nil
}

// Insert persists a new link. A unique-index violation on short_code is
// translated to ErrCodeTaken so concurrent creations racing on the same
// code surface as a conflict, never as a raw constraint error.
func (s *PostgresStorage) Insert(ctx context.Context, url *domain.URL) error {
	if err := s.db.WithContext(ctx).Create(url).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return repository.ErrCodeTaken
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrCodeTaken
		}
		s.log.Error("failed to insert link", zap.String("code", url.ShortCode), zap.Error(err))
		return fmt.Errorf("failed to insert link: %w", err)
	}

	s.log.Info("saved new link", zap.String("code", url.ShortCode), zap.Bool("is_custom", url.IsCustom))
	return nil
}

// DeleteByID removes a record by primary key.
func (s *PostgresStorage) DeleteByID(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&domain.URL{}, id)
	if result.Error != nil {
		s.log.Error("failed to delete link", zap.Int64("id", id), zap.Error(result.Error))
		return fmt.Errorf("failed to delete link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrCodeNotFound
	}
	return nil
}

// DeleteByCode removes a record by its short code.
func (s *PostgresStorage) DeleteByCode(ctx context.Context, code string) error {
	result := s.db.WithContext(ctx).Where("short_code = ?", code).Delete(&domain.URL{})
	if result.Error != nil {
		s.log.Error("failed to delete link", zap.String("code", code), zap.Error(result.Error))
		return fmt.Errorf("failed to delete link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrCodeNotFound
	}

	s.log.Info("deleted link", zap.String("code", code))
	return nil
}

// IncrementClicks bumps the click counter and stamps last_accessed in a
// single atomic UPDATE.
func (s *PostgresStorage) IncrementClicks(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Model(&domain.URL{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"clicks":        gorm.Expr("clicks + 1"),
			"last_accessed": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment clicks: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrCodeNotFound
	}
	return nil
}

// ListUserLinks returns a page of the user's links, newest first, with an
// optional text search over destination, code and description.
func (s *PostgresStorage) ListUserLinks(ctx context.Context, userID int64, params repository.ListParams) ([]*domain.URL, int64, error) {
	query := s.db.WithContext(ctx).Model(&domain.URL{}).Where("user_id = ?", userID)

	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		query = query.Where(
			"original_url ILIKE ? OR short_code ILIKE ? OR description ILIKE ?",
			pattern, pattern, pattern,
		)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		s.log.Error("failed to count user links", zap.Int64("user_id", userID), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count user links: %w", err)
	}

	var urls []*domain.URL
	err := query.Order("created_at DESC").
		Limit(params.Limit).
		Offset(params.Offset).
		Find(&urls).Error
	if err != nil {
		s.log.Error("failed to list user links", zap.Int64("user_id", userID), zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list user links: %w", err)
	}

	return urls, total, nil
}

// DeleteExpired purges every record whose expiration is in the past.
func (s *PostgresStorage) DeleteExpired(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", time.Now()).
		Delete(&domain.URL{})
	if result.Error != nil {
		s.log.Error("failed to delete expired links", zap.Error(result.Error))
		return 0, fmt.Errorf("failed to delete expired links: %w", result.Error)
	}

	if result.RowsAffected > 0 {
		s.log.Info("removed expired links", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}
