package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kset/verifikator/internal/config"
	"github.com/kset/verifikator/internal/domain"
	"golang.org/x/oauth2"
)

// Exchanger wraps the identity provider's code-for-token and
// token-for-userinfo calls. Stateless; a single failed call fails the whole
// attempt, with no retries.
type Exchanger struct {
	conf        *oauth2.Config
	userInfoURL string
}

func NewExchanger(cfg *config.Config) *Exchanger {
	return &Exchanger{
		conf: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURI,
			Scopes:       []string{"openid", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.GoogleAuthURL,
				TokenURL:  cfg.GoogleTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.GoogleUserInfoURL,
	}
}

// AuthCodeURL builds the provider authorization URL carrying the attempt
// state. prompt=select_account forces the account chooser so users with
// multiple Google accounts pick the one on the roster.
func (e *Exchanger) AuthCodeURL(state string) string {
	return e.conf.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Exchange trades the authorization code for an access token and returns the
// email asserted by the provider's userinfo endpoint.
func (e *Exchanger) Exchange(ctx context.Context, code string) (string, error) {
	tok, err := e.conf.Exchange(ctx, code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			slog.Error("token endpoint rejected code", "status", rerr.Response.StatusCode, "body", string(rerr.Body))
		} else {
			slog.Error("token exchange request failed", "err", err)
		}
		return "", fmt.Errorf("exchange authorization code: %w", domain.ErrTokenExchange)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.userInfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("build userinfo request: %w", domain.ErrUserInfo)
	}
	resp, err := e.conf.Client(ctx, tok).Do(req)
	if err != nil {
		slog.Error("userinfo request failed", "err", err)
		return "", fmt.Errorf("fetch userinfo: %w", domain.ErrUserInfo)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		slog.Error("userinfo endpoint returned error", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("userinfo status %d: %w", resp.StatusCode, domain.ErrUserInfo)
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode userinfo payload: %w", domain.ErrUserInfo)
	}
	if payload.Email == "" {
		return "", fmt.Errorf("userinfo payload has no email claim: %w", domain.ErrUserInfo)
	}
	return payload.Email, nil
}
