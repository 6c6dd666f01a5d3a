package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionFile reads the session JWT the app shell writes after login and
// extracts the principal from its claims. The token signature is verified by
// the cloud API on every request; locally the claims are only parsed, so an
// expired or malformed token degrades to ErrNotAuthenticated rather than a
// hard failure.
type SessionFile struct {
	Path string

	// now is the time source for expiry checks; overridable in tests.
	now func() time.Time

	mu        sync.Mutex
	cachedTok string
	cachedPr  Principal
	cachedExp time.Time
}

// NewSessionFile creates a provider over the given token file path.
func NewSessionFile(path string) *SessionFile {
	return &SessionFile{Path: path, now: time.Now}
}

// load reads and parses the token file. Results are cached until the token
// expires so every sync cycle does not re-read the file.
func (s *SessionFile) load(_ context.Context) (string, Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cachedTok != "" && now.Before(s.cachedExp) {
		return s.cachedTok, s.cachedPr, nil
	}

	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return "", Principal{}, fmt.Errorf("%w: read session token: %v", ErrNotAuthenticated, err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", Principal{}, fmt.Errorf("%w: session token file empty", ErrNotAuthenticated)
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return "", Principal{}, fmt.Errorf("%w: parse session token: %v", ErrNotAuthenticated, err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", Principal{}, fmt.Errorf("%w: session token has no subject", ErrNotAuthenticated)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return "", Principal{}, fmt.Errorf("%w: session token has no expiry", ErrNotAuthenticated)
	}
	if exp != nil && !now.Before(exp.Time) {
		return "", Principal{}, fmt.Errorf("%w: session token expired", ErrNotAuthenticated)
	}

	pr := Principal{ID: sub}
	if email, ok := claims["email"].(string); ok {
		pr.Email = email
	}

	s.cachedTok = token
	s.cachedPr = pr
	if exp != nil {
		s.cachedExp = exp.Time
	} else {
		s.cachedExp = now.Add(time.Minute)
	}
	return token, pr, nil
}

func (s *SessionFile) CurrentPrincipal(ctx context.Context) (Principal, error) {
	_, pr, err := s.load(ctx)
	return pr, err
}

func (s *SessionFile) Token(ctx context.Context) (string, error) {
	tok, _, err := s.load(ctx)
	return tok, err
}
