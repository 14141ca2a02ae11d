// Package auth supplies the chat session from the host's credentials.
package auth

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/weiawesome/marketplace-admin-chat/internal/domain"
	"github.com/weiawesome/marketplace-admin-chat/pkg/jwt"
)

// Config names where the session comes from. A token file wins over an
// inline token.
type Config struct {
	UserID    string
	Role      string
	Token     string
	TokenFile string
}

// Source builds sessions from Config.
type Source struct {
	cfg Config
	now func() time.Time
}

func NewSource(cfg Config) *Source {
	return &Source{cfg: cfg, now: time.Now}
}

// TokenFile returns the watched token path, or "".
func (s *Source) TokenFile() string {
	return s.cfg.TokenFile
}

// Session returns the current session. It fails with ErrAuthMissing when
// no usable token is available.
func (s *Source) Session() (domain.Session, error) {
	token := strings.TrimSpace(s.cfg.Token)
	if s.cfg.TokenFile != "" {
		data, err := os.ReadFile(s.cfg.TokenFile)
		if err != nil {
			return domain.Session{}, fmt.Errorf("%w: read token file: %v", domain.ErrAuthMissing, err)
		}
		token = strings.TrimSpace(string(data))
	}

	session := domain.Session{UserID: s.cfg.UserID, Token: token, Role: s.cfg.Role}
	if err := session.Validate(); err != nil {
		return domain.Session{}, err
	}

	claims, err := s.inspect(token)
	if err != nil {
		return domain.Session{}, err
	}
	if claims != nil {
		if session.UserID == "" {
			session.UserID = claims.User()
		}
		if session.Role == "" && len(claims.Roles) > 0 {
			session.Role = claims.Roles[0]
		}
	}
	return session, nil
}

// CheckToken rejects tokens that are known to be unusable. Opaque tokens
// pass; only the server can judge them.
func (s *Source) CheckToken(token string) error {
	_, err := s.inspect(token)
	return err
}

func (s *Source) inspect(token string) (*jwt.Claims, error) {
	claims, err := jwt.Inspect(token, s.now())
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrExpiredToken):
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthMissing, err)
	case errors.Is(err, jwt.ErrInvalidToken) && claims != nil:
		// a JWT that is not an access token
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthMissing, err)
	default:
		return nil, nil
	}
}
