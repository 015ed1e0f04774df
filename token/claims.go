package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-session-guard/internal/errors"
	"github.com/pkg/errors"
)

// Claims is the subset of access-token claims the session layer reads.
type Claims struct {
	Subject   string
	Email     string
	Tenant    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ParseUnverified reads claims from a JWT without checking its signature.
// Access tokens are verified by the data backend; the client only needs their
// expiry and subject to schedule refreshes.
func ParseUnverified(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrInvalidToken
	}
	tok, _, err := jwt.NewParser().ParseUnverified(rawToken, jwt.MapClaims{})
	if err != nil {
		return nil, errors.Wrapf(apperrors.ErrInvalidToken, "parse: %v", err)
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, "error extracting claims")
	}
	return fromMapClaims(mc)
}

func fromMapClaims(mc jwt.MapClaims) (*Claims, error) {
	c := &Claims{}
	sub, err := mc.GetSubject()
	if err != nil {
		return nil, errors.Wrap(apperrors.ErrInvalidToken, "sub")
	}
	c.Subject = sub
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	c.Email, _ = mc["email"].(string)
	c.Tenant, _ = mc["tenant"].(string)
	return c, nil
}
