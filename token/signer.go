package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// RSASigner signs JWTs with an RS256 key pair and publishes its key as a JWKS
type RSASigner struct {
	keyPair *KeyPair
}

func NewRSASigner(keyPair *KeyPair) *RSASigner {
	return &RSASigner{keyPair: keyPair}
}

func (a *RSASigner) Sign(claims jwt.MapClaims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = a.keyPair.KeyID
	signed, err := tok.SignedString(a.keyPair.PrivateKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token with RSA key")
	}
	return signed, nil
}

// JWKS returns the public key set for the signer
func (a *RSASigner) JWKS() JWKS {
	return JWKS{Keys: []JWK{a.keyPair.ToJWK()}}
}
