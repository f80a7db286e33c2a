package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	scopeClaim = "scope"
	adminScope = "admin"
)

var tokenAlgorithm = jwa.HS256

// tokenCodec issues and checks admin access tokens. Tokens are HS256 JWTs
// whose subject is the admin id and which carry scope=admin.
type tokenCodec struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	skew     time.Duration
}

func (c tokenCodec) sign(adminID string, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(c.ttl)
	tok, err := jwt.NewBuilder().
		Subject(adminID).
		Issuer(c.issuer).
		Audience([]string{c.audience}).
		IssuedAt(now).
		NotBefore(now.Add(-c.skew)).
		Expiration(expiresAt).
		Claim(scopeClaim, adminScope).
		Build()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(tokenAlgorithm, c.secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return string(signed), expiresAt, nil
}

// verify returns the admin id of a valid token.
func (c tokenCodec) verify(raw string, now time.Time) (string, error) {
	if err := checkAlgorithm(raw); err != nil {
		return "", err
	}
	opts := []jwt.ParseOption{
		jwt.WithKey(tokenAlgorithm, c.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })),
		jwt.WithAcceptableSkew(c.skew),
		jwt.WithRequiredClaim(jwt.SubjectKey),
		jwt.WithRequiredClaim(jwt.ExpirationKey),
		jwt.WithClaimValue(scopeClaim, adminScope),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		opts = append(opts, jwt.WithAudience(c.audience))
	}
	tok, err := jwt.ParseString(raw, opts...)
	if err != nil {
		return "", err
	}
	return tok.Subject(), nil
}

// checkAlgorithm refuses tokens whose header names anything but HS256,
// including alg=none, before any signature work happens.
func checkAlgorithm(raw string) error {
	msg, err := jws.ParseString(raw)
	if err != nil {
		return err
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return fmt.Errorf("auth: expected one signature, got %d", len(sigs))
	}
	headers := sigs[0].ProtectedHeaders()
	if headers == nil {
		return errors.New("auth: token missing protected headers")
	}
	if alg := headers.Algorithm(); alg != tokenAlgorithm {
		return fmt.Errorf("auth: unexpected token algorithm %q", alg)
	}
	return nil
}
