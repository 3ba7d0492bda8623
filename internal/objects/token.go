package objects

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vanguard-platform/internal/apperr"
)

// DownloadTokens signs short-lived grants for the file proxy.
type DownloadTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewDownloadTokens(secret string, ttl time.Duration) *DownloadTokens {
	return &DownloadTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a token that lets its bearer download reportID.
func (d *DownloadTokens) Issue(reportID int64) (string, error) {
	now := d.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(reportID, 10),
		Audience:  jwt.ClaimStrings{"report-download"},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.secret)
}

// Verify returns the report id the token was issued for.
func (d *DownloadTokens) Verify(token string) (int64, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return d.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience("report-download"),
		jwt.WithTimeFunc(d.now),
	)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrForbidden, err, "invalid download token")
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrForbidden, err, "invalid download token")
	}
	return id, nil
}
