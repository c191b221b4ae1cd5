package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/julioborgesigt/encurtador/internal/clicks"
	"github.com/julioborgesigt/encurtador/internal/config"
	"github.com/julioborgesigt/encurtador/internal/repository"
	"github.com/julioborgesigt/encurtador/internal/validation"
	"github.com/julioborgesigt/encurtador/pkg/qrcode"
	"github.com/julioborgesigt/encurtador/pkg/random"

	"github.com/julioborgesigt/encurtador/internal/domain"
)

// Requester identifies the caller of a mutating operation. A nil *Requester
// is a guest.
type Requester struct {
	UserID int64
	Email  string
}

// CreateRequest carries the inputs of a link creation.
type CreateRequest struct {
	URL         string
	CustomCode  string
	Description string
	ExpiresIn   *int // days; nil or <=0 means never expires
}

// ShortenerService orchestrates code generation, collision avoidance and
// redirect resolution over an injected Storage.
type ShortenerService struct {
	storage repository.Storage
	clicks  clicks.Sink
	cfg     *config.Config
	log     *zap.Logger
	now     func() time.Time
}

func NewShortener(storage repository.Storage, sink clicks.Sink, cfg *config.Config, log *zap.Logger) *ShortenerService {
	return &ShortenerService{
		storage: storage,
		clicks:  sink,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// CreateShortLink decides between reusing an existing non-custom link,
// rejecting a taken custom code, or minting a new record.
//
// Guests cannot choose a code, attach a description or pick an expiration:
// whatever they submit, those are forced to none/none/the guest default.
func (s *ShortenerService) CreateShortLink(ctx context.Context, req CreateRequest, requester *Requester) (*domain.URL, error) {
	if requester == nil {
		guestDays := s.cfg.Shortener.GuestExpirationDays
		req.CustomCode = ""
		req.Description = ""
		req.ExpiresIn = &guestDays
	}

	if fields := validation.ValidateCreate(req.URL, req.CustomCode, req.Description, req.ExpiresIn, s.cfg.Env); len(fields) > 0 {
		return nil, validationErr(fields)
	}

	var code string
	isCustom := false

	if req.CustomCode != "" {
		taken, err := s.storage.CodeExists(ctx, req.CustomCode)
		if err != nil {
			return nil, persistenceErr(err)
		}
		if taken {
			return nil, codeTakenErr()
		}
		code = req.CustomCode
		isCustom = true
	} else {
		// De-duplication short-circuit: a live, non-custom record for the
		// same destination is returned unchanged. An expired one is
		// removed first and a fresh record minted.
		duplicate, err := s.storage.FindDuplicateByURL(ctx, req.URL)
		switch {
		case err == nil && !duplicate.IsExpired(s.now()):
			s.log.Debug("reusing existing link", zap.String("code", duplicate.ShortCode))
			return duplicate, nil
		case err == nil:
			if err := s.storage.DeleteByID(ctx, duplicate.ID); err != nil && !errors.Is(err, repository.ErrCodeNotFound) {
				return nil, persistenceErr(err)
			}
		case !errors.Is(err, repository.ErrCodeNotFound):
			return nil, persistenceErr(err)
		}

		code, err = s.generateUniqueCode(ctx)
		if err != nil {
			return nil, persistenceErr(err)
		}
	}

	url := &domain.URL{
		OriginalURL: req.URL,
		ShortCode:   code,
		IsCustom:    isCustom,
		ExpiresAt:   s.computeExpiration(req.ExpiresIn),
	}
	if requester != nil {
		userID := requester.UserID
		url.UserID = &userID
	}
	if req.Description != "" {
		description := req.Description
		url.Description = &description
	}
	if qr, err := qrcode.DataURL(s.cfg.Shortener.BaseURL + "/" + code); err == nil {
		url.QRCode = &qr
	} else {
		s.log.Warn("failed to generate QR code", zap.String("code", code), zap.Error(err))
	}

	if err := s.storage.Insert(ctx, url); err != nil {
		// Two concurrent creations can race past CodeExists; the store's
		// uniqueness constraint decides the winner and the loser reports
		// a conflict, not a generic failure.
		if errors.Is(err, repository.ErrCodeTaken) {
			return nil, codeTakenErr()
		}
		return nil, persistenceErr(err)
	}

	s.log.Info("created link",
		zap.String("code", url.ShortCode),
		zap.Bool("is_custom", url.IsCustom),
		zap.Bool("guest", requester == nil))
	return url, nil
}

// generateUniqueCode draws random codes until one is free of collisions,
// up to the configured attempt budget. After exhausting the budget it
// falls back to a single longer draw accepted without a further check:
// with a 62-symbol alphabet at length+2 the residual collision odds are
// accepted, and the insert's uniqueness constraint still backstops it.
func (s *ShortenerService) generateUniqueCode(ctx context.Context) (string, error) {
	length := s.cfg.Shortener.CodeLength
	attempts := s.cfg.Shortener.MaxGenerateAttempts

	for i := 0; i < attempts; i++ {
		code, err := random.NewRandomString(length)
		if err != nil {
			return "", fmt.Errorf("failed to generate code: %w", err)
		}

		exists, err := s.storage.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check code existence: %w", err)
		}
		if !exists {
			return code, nil
		}

		s.log.Debug("code collision, retrying", zap.Int("attempt", i+1))
	}

	s.log.Warn("collision budget exhausted, widening code length",
		zap.Int("length", length+2))
	code, err := random.NewRandomString(length + 2)
	if err != nil {
		return "", fmt.Errorf("failed to generate widened code: %w", err)
	}
	return code, nil
}

// computeExpiration turns an expires-in-days value into a timestamp.
// Nil or non-positive means the link never expires.
func (s *ShortenerService) computeExpiration(expiresIn *int) *time.Time {
	if expiresIn == nil || *expiresIn <= 0 {
		return nil
	}
	expiresAt := s.now().AddDate(0, 0, *expiresIn)
	return &expiresAt
}

// Resolve looks up a short code and returns its destination. An expired
// record is lazily deleted and reported gone. The click-count update is
// handed to the background sink: the redirect is never gated on it and a
// failed submission is logged and dropped.
func (s *ShortenerService) Resolve(ctx context.Context, code string) (string, error) {
	url, err := s.storage.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return "", notFoundErr()
		}
		return "", persistenceErr(err)
	}

	if url.IsExpired(s.now()) {
		if err := s.storage.DeleteByID(ctx, url.ID); err != nil && !errors.Is(err, repository.ErrCodeNotFound) {
			s.log.Error("failed to delete expired link", zap.String("code", code), zap.Error(err))
		}
		return "", goneErr()
	}

	if err := s.clicks.SubmitClick(&clicks.Click{LinkID: url.ID, ShortCode: url.ShortCode, At: s.now()}); err != nil {
		s.log.Warn("dropped click update", zap.String("code", code), zap.Error(err))
	}

	return url.OriginalURL, nil
}

// AuthorizeDelete applies the ownership rules for deletion. Ownerless
// records are deletable by any authenticated requester; that permissiveness
// for pre-auth legacy links is intentional.
func (s *ShortenerService) AuthorizeDelete(ctx context.Context, code string, requester *Requester) (*domain.URL, error) {
	if requester == nil {
		return nil, unauthorizedErr()
	}

	url, err := s.storage.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return nil, notFoundErr()
		}
		return nil, persistenceErr(err)
	}

	if url.UserID != nil && *url.UserID != requester.UserID {
		return nil, forbiddenErr()
	}

	return url, nil
}

// Delete removes a link after the ownership guard clears the requester.
func (s *ShortenerService) Delete(ctx context.Context, code string, requester *Requester) error {
	if _, err := s.AuthorizeDelete(ctx, code, requester); err != nil {
		return err
	}

	if err := s.storage.DeleteByCode(ctx, code); err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return notFoundErr()
		}
		return persistenceErr(err)
	}

	s.log.Info("deleted link", zap.String("code", code), zap.Int64("user_id", requester.UserID))
	return nil
}

// GetStats returns the record behind a short code for its owner. Ownerless
// records are visible to any authenticated requester.
func (s *ShortenerService) GetStats(ctx context.Context, code string, requester *Requester) (*domain.URL, error) {
	if requester == nil {
		return nil, unauthorizedErr()
	}

	url, err := s.storage.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			return nil, notFoundErr()
		}
		return nil, persistenceErr(err)
	}

	if url.UserID != nil && *url.UserID != requester.UserID {
		return nil, forbiddenErr()
	}

	return url, nil
}

// ListLinks returns a page of the requester's links. Guests have no
// history and get an empty page.
func (s *ShortenerService) ListLinks(ctx context.Context, requester *Requester, params repository.ListParams) ([]*domain.URL, int64, error) {
	if requester == nil {
		return []*domain.URL{}, 0, nil
	}

	urls, total, err := s.storage.ListUserLinks(ctx, requester.UserID, params)
	if err != nil {
		return nil, 0, persistenceErr(err)
	}
	return urls, total, nil
}
