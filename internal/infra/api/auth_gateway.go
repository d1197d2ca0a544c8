// Package api implements the REST clients for the identity and notification
// endpoints of the trading platform.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"terminal/config"
	"terminal/internal/domain/entity"
	domainerrors "terminal/internal/domain/errors"
	"terminal/internal/domain/service"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// authGateway implements service.AuthGateway over the platform's REST API.
type authGateway struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewAuthGateway is the constructor for the REST auth gateway.
func NewAuthGateway(cfg *config.Config, logger *slog.Logger) service.AuthGateway {
	return &authGateway{
		baseURL:    strings.TrimRight(cfg.API.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.API.Timeout},
		logger:     logger,
	}
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type userPayload struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type tokenPayload struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // Seconds until the access token expires.
	SessionID    string `json:"sessionId"`
}

type loginResponse struct {
	User userPayload `json:"user"`
	tokenPayload
}

type refreshRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges an identifier/secret pair for a user and credentials.
func (g *authGateway) Login(ctx context.Context, identifier, secret string) (*service.LoginResult, error) {
	g.logger.Debug("Logging in", slog.String("identifier", identifier))

	var resp loginResponse
	if err := g.do(ctx, http.MethodPost, "/login", "", loginRequest{Identifier: identifier, Secret: secret}, &resp); err != nil {
		return nil, errors.Wrap(err, "login request failed")
	}

	return &service.LoginResult{
		User:        userFromPayload(resp.User),
		Credentials: credentialsFromTokens(resp.tokenPayload),
	}, nil
}

// FetchCurrentUser resolves the account behind an access token.
func (g *authGateway) FetchCurrentUser(ctx context.Context, accessToken string) (*entity.User, error) {
	var payload userPayload
	if err := g.do(ctx, http.MethodGet, "/me", accessToken, nil, &payload); err != nil {
		return nil, errors.Wrap(err, "fetch current user failed")
	}

	return userFromPayload(payload), nil
}

// Refresh exchanges the current token pair for a renewed credential set.
func (g *authGateway) Refresh(ctx context.Context, accessToken, refreshToken string) (*entity.Credentials, error) {
	var payload tokenPayload
	req := refreshRequest{AccessToken: accessToken, RefreshToken: refreshToken}
	if err := g.do(ctx, http.MethodPost, "/refresh-token", "", req, &payload); err != nil {
		return nil, errors.Wrap(err, "refresh request failed")
	}

	return credentialsFromTokens(payload), nil
}

// do performs one request/response cycle and classifies the outcome.
// There is no retry at this layer; classification happens here and nowhere else.
func (g *authGateway) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		// Network failure: the server never ruled on the credentials.
		return domainerrors.ErrTransient.WrapMessage(err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domainerrors.ErrUnauthorized.WrapMessage(method + " " + path)
	case resp.StatusCode >= 400:
		return domainerrors.ErrTransient.WrapMessage(method + " " + path + ": " + resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domainerrors.ErrTransient.WrapMessage("decode response: " + err.Error())
	}

	return nil
}

func userFromPayload(p userPayload) *entity.User {
	return &entity.User{
		ID:        p.ID,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
	}
}

// credentialsFromTokens derives the absolute expiry client-side: now+expiresIn
// when the server reports it, otherwise the exp claim of the access token.
// The tier is left unset; the caller threads it through explicitly.
func credentialsFromTokens(p tokenPayload) *entity.Credentials {
	sessionID := p.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return &entity.Credentials{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		SessionID:    sessionID,
		ExpiresAt:    deriveExpiry(p.AccessToken, p.ExpiresIn),
	}
}

func deriveExpiry(accessToken string, expiresIn int64) time.Time {
	if expiresIn > 0 {
		return time.Now().Add(time.Duration(expiresIn) * time.Second)
	}

	// No expiresIn on the wire: fall back to the token's own exp claim.
	// The signature is the server's concern; only the timestamp matters here.
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.Time
}
