// Package admin aggregates system-wide metrics for the admin panel.
// It reports over the store directly; nothing here touches the
// code-resolution core.
package admin

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/julioborgesigt/encurtador/internal/domain"
)

// GeneralStats is the headline metric block of the dashboard.
type GeneralStats struct {
	TotalUsers     int64 `json:"total_users"`
	TotalLinks     int64 `json:"total_links"`
	TotalClicks    int64 `json:"total_clicks"`
	RecentLinks    int64 `json:"recent_links"` // created in the last 30 days
	RecentUsers    int64 `json:"recent_users"`
	ActiveLinks    int64 `json:"active_links"`
	ExpiredLinks   int64 `json:"expired_links"`
	CustomLinks    int64 `json:"custom_links"`
	GeneratedLinks int64 `json:"generated_links"`
}

// TopLink is one row of the most-clicked listing.
type TopLink struct {
	ShortCode   string `json:"short_code"`
	OriginalURL string `json:"original_url"`
	Clicks      int64  `json:"clicks"`
	IsCustom    bool   `json:"is_custom"`
}

// UserWithStats is one row of the per-user listing.
type UserWithStats struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLogin   *time.Time `json:"last_login,omitempty"`
	LinkCount   int64      `json:"link_count"`
	TotalClicks int64      `json:"total_clicks"`
}

// Dashboard bundles everything the admin frontend renders at once.
type Dashboard struct {
	General        GeneralStats `json:"general"`
	TopLinks       []TopLink    `json:"top_links"`
	RecentActivity []domain.URL `json:"recent_activity"`
}

// Service runs the reporting queries.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewService(db *gorm.DB, log *zap.Logger) *Service {
	return &Service{db: db, log: log}
}

// GetDashboard collects the full dashboard payload.
func (s *Service) GetDashboard(ctx context.Context) (*Dashboard, error) {
	general, err := s.getGeneralStats(ctx)
	if err != nil {
		return nil, err
	}

	topLinks, err := s.getTopLinks(ctx, 10)
	if err != nil {
		return nil, err
	}

	var recent []domain.URL
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(10).Find(&recent).Error; err != nil {
		return nil, fmt.Errorf("failed to load recent activity: %w", err)
	}

	return &Dashboard{
		General:        *general,
		TopLinks:       topLinks,
		RecentActivity: recent,
	}, nil
}

func (s *Service) getGeneralStats(ctx context.Context) (*GeneralStats, error) {
	db := s.db.WithContext(ctx)
	now := time.Now()
	monthAgo := now.AddDate(0, 0, -30)

	var stats GeneralStats

	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalUsers, db.Model(&domain.User{})},
		{&stats.TotalLinks, db.Model(&domain.URL{})},
		{&stats.RecentLinks, db.Model(&domain.URL{}).Where("created_at >= ?", monthAgo)},
		{&stats.RecentUsers, db.Model(&domain.User{}).Where("created_at >= ?", monthAgo)},
		{&stats.ActiveLinks, db.Model(&domain.URL{}).Where("expires_at IS NULL OR expires_at > ?", now)},
		{&stats.ExpiredLinks, db.Model(&domain.URL{}).Where("expires_at IS NOT NULL AND expires_at <= ?", now)},
		{&stats.CustomLinks, db.Model(&domain.URL{}).Where("is_custom = ?", true)},
	}

	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			s.log.Error("failed to compute admin stats", zap.Error(err))
			return nil, fmt.Errorf("failed to compute stats: %w", err)
		}
	}

	if err := db.Model(&domain.URL{}).Select("COALESCE(SUM(clicks), 0)").Scan(&stats.TotalClicks).Error; err != nil {
		return nil, fmt.Errorf("failed to sum clicks: %w", err)
	}

	stats.GeneratedLinks = stats.TotalLinks - stats.CustomLinks
	return &stats, nil
}

func (s *Service) getTopLinks(ctx context.Context, limit int) ([]TopLink, error) {
	var top []TopLink
	err := s.db.WithContext(ctx).Model(&domain.URL{}).
		Select("short_code, original_url, clicks, is_custom").
		Order("clicks DESC").
		Limit(limit).
		Scan(&top).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load top links: %w", err)
	}
	return top, nil
}

// GetUsers returns a page of users with per-user link and click totals.
func (s *Service) GetUsers(ctx context.Context, limit, offset int) ([]UserWithStats, int64, error) {
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&domain.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	var users []UserWithStats
	err := db.Model(&domain.User{}).
		Select(`users.id, users.email, users.name, users.created_at, users.last_login,
			COUNT(urls.id) AS link_count, COALESCE(SUM(urls.clicks), 0) AS total_clicks`).
		Joins("LEFT JOIN urls ON urls.user_id = users.id").
		Group("users.id").
		Order("users.created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(&users).Error
	if err != nil {
		s.log.Error("failed to list users with stats", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	return users, total, nil
}

// DeleteLink removes a link by ID from the admin panel.
func (s *Service) DeleteLink(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&domain.URL{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	s.log.Info("admin deleted link", zap.Int64("link_id", id))
	return nil
}
