// ABOUTME: Signed OAuth state tokens for the Slack install flow
// ABOUTME: Uses HS256 JWTs with a nonce and short expiry to reject forged callbacks

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// State errors
var (
	ErrInvalidState = errors.New("invalid state")
	ErrExpiredState = errors.New("state expired")
)

// StateTTL is how long an issued install link stays usable.
const StateTTL = 10 * time.Minute

// StateSigner mints and verifies the OAuth state parameter carried
// through the Slack authorize redirect. A callback whose state fails
// verification was not produced by this process and is rejected.
type StateSigner struct {
	secret []byte
}

// NewStateSigner creates a state signer with the given secret
func NewStateSigner(secret []byte) *StateSigner {
	return &StateSigner{secret: secret}
}

// Issue returns a fresh signed state token with the given lifetime.
// Each token carries a unique nonce so two installs never share state.
func (s *StateSigner) Issue(expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"jti": uuid.New().String(),
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the signature and expiry of a state token
func (s *StateSigner) Verify(state string) error {
	token, err := jwt.Parse(state, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredState
		}
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	if !token.Valid {
		return ErrInvalidState
	}

	return nil
}
