package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/saurabhp75/epic-web/internal/models"
)

const githubProviderName = "github"

// GitHubProvider authenticates users against GitHub's OAuth flow
type GitHubProvider struct {
	clientID     string
	clientSecret string
	client       *http.Client

	// Overridable for tests
	authorizeURL string
	tokenURL     string
	apiBaseURL   string
}

func NewGitHubProvider(clientID, clientSecret string) *GitHubProvider {
	return &GitHubProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       &http.Client{Timeout: 10 * time.Second},
		authorizeURL: "https://github.com/login/oauth/authorize",
		tokenURL:     "https://github.com/login/oauth/access_token",
		apiBaseURL:   "https://api.github.com",
	}
}

func (p *GitHubProvider) Name() string {
	return githubProviderName
}

func (p *GitHubProvider) AuthorizationURL(state, redirectURI string) string {
	query := url.Values{}
	query.Set("client_id", p.clientID)
	query.Set("redirect_uri", redirectURI)
	query.Set("state", state)
	query.Set("scope", "read:user user:email")
	return p.authorizeURL + "?" + query.Encode()
}

func (p *GitHubProvider) HandleCallback(ctx context.Context, code, redirectURI string) (*Profile, error) {
	token, err := p.exchangeCode(ctx, code, redirectURI)
	if err != nil {
		return nil, err
	}

	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := p.apiGet(ctx, token, "/user", &user); err != nil {
		return nil, err
	}

	email := user.Email
	if email == "" {
		email, err = p.primaryEmail(ctx, token)
		if err != nil {
			return nil, err
		}
	}

	return &Profile{
		ID:       strconv.FormatInt(user.ID, 10),
		Email:    strings.ToLower(email),
		Username: user.Login,
		Name:     user.Name,
	}, nil
}

func (p *GitHubProvider) exchangeCode(ctx context.Context, code, redirectURI string) (string, error) {
	form := url.Values{}
	form.Set("client_id", p.clientID)
	form.Set("client_secret", p.clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %v", models.ErrAuthProviderFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: token endpoint returned %d", models.ErrAuthProviderFailure, resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decoding token response: %v", models.ErrAuthProviderFailure, err)
	}
	if body.Error != "" || body.AccessToken == "" {
		return "", fmt.Errorf("%w: token exchange rejected: %s", models.ErrAuthProviderFailure, body.Error)
	}
	return body.AccessToken, nil
}

func (p *GitHubProvider) primaryEmail(ctx context.Context, token string) (string, error) {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := p.apiGet(ctx, token, "/user/emails", &emails); err != nil {
		return "", err
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email, nil
		}
	}
	return "", fmt.Errorf("%w: no verified email on account", models.ErrAuthProviderFailure)
}

func (p *GitHubProvider) apiGet(ctx context.Context, token, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build api request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrAuthProviderFailure, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", models.ErrAuthProviderFailure, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", models.ErrAuthProviderFailure, path, err)
	}
	return nil
}
