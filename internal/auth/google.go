package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/julioborgesigt/encurtador/internal/domain"
	"github.com/julioborgesigt/encurtador/internal/repository"
)

const userinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleConfig holds the OAuth client settings.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

// googleUserinfo is the subset of the userinfo response we consume.
type googleUserinfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleService runs the authorization-code exchange against Google and
// upserts the resulting profile into the user store.
type GoogleService struct {
	oauth   *oauth2.Config
	storage repository.Storage
	log     *zap.Logger
}

func NewGoogleService(cfg GoogleConfig, storage repository.Storage, log *zap.Logger) *GoogleService {
	return &GoogleService{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		storage: storage,
		log:     log,
	}
}

// AuthURL builds the consent-screen redirect URL for the given CSRF state.
func (s *GoogleService) AuthURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// HandleCallback exchanges the authorization code, fetches the profile and
// upserts the user. Returns the signed-in user.
func (s *GoogleService) HandleCallback(ctx context.Context, code string) (*domain.User, error) {
	exchangeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	token, err := s.oauth.Exchange(exchangeCtx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}

	info, err := s.fetchUserinfo(exchangeCtx, token)
	if err != nil {
		return nil, err
	}
	if info.ID == "" || info.Email == "" {
		return nil, fmt.Errorf("incomplete userinfo response from Google")
	}

	user, err := s.storage.UpsertGoogleUser(ctx, repository.GoogleProfile{
		GoogleID:  info.ID,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	s.log.Info("user signed in via Google",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email))
	return user, nil
}

func (s *GoogleService) fetchUserinfo(ctx context.Context, token *oauth2.Token) (*googleUserinfo, error) {
	client := s.oauth.Client(ctx, token)

	resp, err := client.Get(userinfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo request failed with status %d", resp.StatusCode)
	}

	var info googleUserinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}

	return &info, nil
}
