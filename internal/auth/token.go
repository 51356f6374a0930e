// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// DefaultTokenTTL is the token lifetime used when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// tokenIssuerName identifies this process in the token's issuer claim.
const tokenIssuerName = "emberveil-server"

// Claims is the verified content of a session token.
type Claims struct {
	AccountID int64
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// tokenClaims is the on-the-wire JWT claims layout.
type tokenClaims struct {
	AccountID int64  `json:"account_id"`
	Username  string `json:"username"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and validates self-contained session tokens (HS256).
// Token expiry is checked structurally by Verify, independently of the
// SessionManager's own expiry bookkeeping.
type TokenIssuer struct {
	secret []byte
	now    func() time.Time
}

// NewTokenIssuer creates a TokenIssuer with the given process-wide secret.
func NewTokenIssuer(secret []byte) *TokenIssuer {
	return &TokenIssuer{secret: secret, now: time.Now}
}

// WithClock overrides the issuer's clock. Test use only.
func (ti *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	ti.now = now
	return ti
}

// Issue produces a signed token embedding the account identity and the
// issued-at/expiry timestamps in epoch seconds.
func (ti *TokenIssuer) Issue(accountID int64, username string, ttl time.Duration) (string, error) {
	now := ti.now()
	claims := tokenClaims{
		AccountID: accountID,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    tokenIssuerName,
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ti.secret)
	if err != nil {
		return "", oops.Code("TOKEN_SIGN_FAILED").Wrap(err)
	}
	return signed, nil
}

// Verify validates a token's signature and expiry and returns its claims.
// Returns ErrInvalidSession (wrapped) for any failure mode; the caller
// never learns whether the signature or the expiry was at fault.
func (ti *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &tokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return ti.secret, nil
		},
		jwt.WithTimeFunc(ti.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		code := "TOKEN_INVALID_SIGNATURE"
		if errors.Is(err, jwt.ErrTokenExpired) {
			code = "TOKEN_EXPIRED"
		}
		return nil, oops.Code(code).Wrap(errors.Join(err, ErrInvalidSession))
	}

	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, oops.Code("TOKEN_INVALID").Wrap(ErrInvalidSession)
	}

	return &Claims{
		AccountID: claims.AccountID,
		Username:  claims.Username,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
