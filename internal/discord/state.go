package discord

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"vanguard-platform/internal/apperr"
)

// StateCookie holds the nonce bound into the OAuth state parameter.
const StateCookie = "cv_oauth_state"

// StateTTL bounds how long a login attempt may take.
const StateTTL = 10 * time.Minute

type stateClaims struct {
	RedirectURI string `json:"redirect_uri"`
	Nonce       string `json:"nonce"`
	jwt.RegisteredClaims
}

// StateSigner issues and verifies the signed OAuth state parameter.
type StateSigner struct {
	secret []byte
	now    func() time.Time
}

func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: []byte(secret), now: time.Now}
}

// Issue returns a state token for redirectURI and the nonce that must come
// back in the state cookie.
func (s *StateSigner) Issue(redirectURI string) (token, nonce string, err error) {
	nonce = uuid.NewString()
	now := s.now()
	claims := stateClaims{
		RedirectURI: redirectURI,
		Nonce:       nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(StateTTL)),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", "", err
	}
	return token, nonce, nil
}

// Verify checks the token signature, expiry and nonce and returns the
// redirect URI it was issued for.
func (s *StateSigner) Verify(token, nonce string) (string, error) {
	var claims stateClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUnauthorized, err, "invalid oauth state")
	}
	if nonce == "" || claims.Nonce != nonce {
		return "", apperr.Wrap(apperr.ErrUnauthorized, errors.New("nonce mismatch"), "invalid oauth state")
	}
	return claims.RedirectURI, nil
}
