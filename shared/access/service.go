// Package access handles client credentials, the admin key and login sessions.
package access

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrPhoneTaken is returned when a phone number is already registered.
	ErrPhoneTaken = errors.New("phone already registered")
	// ErrInvalidRegistration is returned for incomplete registration data.
	ErrInvalidRegistration = errors.New("invalid registration")
)

// MinPasswordLength is the shortest accepted client password.
const MinPasswordLength = 4

// Service checks credentials and issues sessions.
type Service struct {
	adminKey string
	sessions *SessionStore
	cost     int
	logger   zerolog.Logger
}

// NewService creates an access service. An empty adminKey disables admin access.
func NewService(adminKey string, sessions *SessionStore, logger zerolog.Logger) *Service {
	return &Service{
		adminKey: adminKey,
		sessions: sessions,
		cost:     bcrypt.DefaultCost,
		logger:   logger.With().Str("component", "access").Logger(),
	}
}

// Sessions returns the client session store.
func (s *Service) Sessions() *SessionStore {
	return s.sessions
}

// NormalizePhone strips everything but digits and a leading plus.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		if unicode.IsDigit(r) || (i == 0 && r == '+') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateRegistration checks the fields of a new client.
func ValidateRegistration(name, phone, password string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRegistration)
	}
	if len(strings.TrimPrefix(NormalizePhone(phone), "+")) < 7 {
		return fmt.Errorf("%w: phone %q is too short", ErrInvalidRegistration, phone)
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must have at least %d characters", ErrInvalidRegistration, MinPasswordLength)
	}
	return nil
}

// HashPassword returns the bcrypt hash stored on the client record.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword compares a stored value with the given password. Records
// created before hashing keep their password in plain text and are compared
// directly.
func VerifyPassword(stored, given string) bool {
	if stored == "" {
		return false
	}
	if isBcrypt(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// Login verifies a password for clientID and issues a session token.
// stored is the password value kept on the client record.
func (s *Service) Login(clientID, stored, password string) (string, error) {
	if clientID == "" || !VerifyPassword(stored, password) {
		s.logger.Info().Str("client_id", clientID).Msg("login rejected")
		return "", &AccessDeniedError{Reason: "invalid phone or password"}
	}
	token := s.sessions.Issue(clientID)
	s.logger.Info().Str("client_id", clientID).Msg("client logged in")
	return token, nil
}

// Logout drops a session.
func (s *Service) Logout(token string) {
	s.sessions.Revoke(token)
}

// ClientFor resolves a session token to a client id.
func (s *Service) ClientFor(token string) (string, error) {
	if token == "" {
		return "", &AccessDeniedError{Reason: "session token required"}
	}
	clientID, ok := s.sessions.Resolve(token)
	if !ok {
		return "", &AccessDeniedError{Reason: "session expired or unknown"}
	}
	return clientID, nil
}

// CheckAdminKey verifies the admin API key.
func (s *Service) CheckAdminKey(key string) error {
	if s.adminKey == "" {
		return &AccessDeniedError{Reason: "admin access is disabled", Forbidden: true}
	}
	if key == "" {
		return &AccessDeniedError{Reason: "admin key required"}
	}
	if subtle.ConstantTimeCompare([]byte(s.adminKey), []byte(key)) != 1 {
		return &AccessDeniedError{Reason: "invalid admin key", Forbidden: true}
	}
	return nil
}

// AccessDeniedError is returned when access is denied. Forbidden marks a
// caller that identified itself but lacks permission.
type AccessDeniedError struct {
	Reason    string
	Forbidden bool
}

func (e *AccessDeniedError) Error() string {
	return e.Reason
}

// IsAccessDenied checks if error is access denied.
func IsAccessDenied(err error) bool {
	var denied *AccessDeniedError
	return errors.As(err, &denied)
}
