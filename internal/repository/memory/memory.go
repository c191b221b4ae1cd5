// Package memory is an in-process Storage used by tests and local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/julioborgesigt/encurtador/internal/domain"
	"github.com/julioborgesigt/encurtador/internal/repository"
)

type MemStorage struct {
	mu            sync.RWMutex
	urlsByCode    map[string]*domain.URL
	usersByGoogle map[string]*domain.User
	urlCounter    int64
	userCounter   int64
}

func New() *MemStorage {
	return &MemStorage{
		urlsByCode:    make(map[string]*domain.URL),
		usersByGoogle: make(map[string]*domain.User),
	}
}

// --- User Methods ---

func (s *MemStorage) UpsertGoogleUser(_ context.Context, profile repository.GoogleProfile) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if user, exists := s.usersByGoogle[profile.GoogleID]; exists {
		user.Email = profile.Email
		user.Name = profile.Name
		if profile.AvatarURL != "" {
			avatar := profile.AvatarURL
			user.AvatarURL = &avatar
		}
		user.LastLogin = &now
		return user, nil
	}

	s.userCounter++
	user := &domain.User{
		ID:        s.userCounter,
		GoogleID:  profile.GoogleID,
		Email:     profile.Email,
		Name:      profile.Name,
		CreatedAt: now,
		LastLogin: &now,
	}
	if profile.AvatarURL != "" {
		avatar := profile.AvatarURL
		user.AvatarURL = &avatar
	}
	s.usersByGoogle[profile.GoogleID] = user

	return user, nil
}

func (s *MemStorage) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.usersByGoogle {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

// --- Link Methods ---

func (s *MemStorage) FindByCode(_ context.Context, code string) (*domain.URL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	url, ok := s.urlsByCode[code]
	if !ok {
		return nil, repository.ErrCodeNotFound
	}
	cp := *url
	return &cp, nil
}

func (s *MemStorage) FindDuplicateByURL(_ context.Context, originalURL string) (*domain.URL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, url := range s.urlsByCode {
		if !url.IsCustom && url.OriginalURL == originalURL {
			cp := *url
			return &cp, nil
		}
	}
	return nil, repository.ErrCodeNotFound
}

func (s *MemStorage) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.urlsByCode[code]
	return ok, nil
}

func (s *MemStorage) Insert(_ context.Context, url *domain.URL) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.urlsByCode[url.ShortCode]; exists {
		return repository.ErrCodeTaken
	}

	s.urlCounter++
	url.ID = s.urlCounter
	if url.CreatedAt.IsZero() {
		url.CreatedAt = time.Now()
	}
	cp := *url
	s.urlsByCode[url.ShortCode] = &cp
	return nil
}

func (s *MemStorage) DeleteByID(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for code, url := range s.urlsByCode {
		if url.ID == id {
			delete(s.urlsByCode, code)
			return nil
		}
	}
	return repository.ErrCodeNotFound
}

func (s *MemStorage) DeleteByCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.urlsByCode[code]; !ok {
		return repository.ErrCodeNotFound
	}
	delete(s.urlsByCode, code)
	return nil
}

func (s *MemStorage) IncrementClicks(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, url := range s.urlsByCode {
		if url.ID == id {
			now := time.Now()
			url.Clicks++
			url.LastAccessed = &now
			return nil
		}
	}
	return repository.ErrCodeNotFound
}

func (s *MemStorage) ListUserLinks(_ context.Context, userID int64, params repository.ListParams) ([]*domain.URL, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.URL
	for _, url := range s.urlsByCode {
		if url.UserID == nil || *url.UserID != userID {
			continue
		}
		if params.Search != "" && !matchesSearch(url, params.Search) {
			continue
		}
		cp := *url
		matched = append(matched, &cp)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if params.Offset >= len(matched) {
		return []*domain.URL{}, total, nil
	}
	end := len(matched)
	if params.Limit > 0 && params.Offset+params.Limit < end {
		end = params.Offset + params.Limit
	}
	return matched[params.Offset:end], total, nil
}

func (s *MemStorage) DeleteExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var removed int64
	for code, url := range s.urlsByCode {
		if url.IsExpired(now) {
			delete(s.urlsByCode, code)
			removed++
		}
	}
	return removed, nil
}

func matchesSearch(url *domain.URL, search string) bool {
	needle := strings.ToLower(search)
	if strings.Contains(strings.ToLower(url.OriginalURL), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(url.ShortCode), needle) {
		return true
	}
	return url.Description != nil && strings.Contains(strings.ToLower(*url.Description), needle)
}
