package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/rand"  // secure random number generation
    "encoding/hex" // hex encoding functions
    "errors"       // sentinel errors for token verification
    "time"         // time utilities for generating expirations

    "github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// ErrInvalidToken is returned by ParseSessionToken when the presented token
// is malformed, carries the wrong signing method, fails signature
// verification or has expired.  Callers do not need to distinguish these
// cases – they all mean "not authenticated".
var ErrInvalidToken = errors.New("invalid session token")

// SessionToken represents a signed JWT session token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp as a time.Time.  Session tokens are presented in the
// Authorization header when calling protected endpoints.
type SessionToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// NewSessionToken builds and signs an HS256 JWT for a user.  It takes the
// signing secret, the user ID and a TTL in days.  The JWT carries the
// standard claims: subject (sub), expiration (exp) and issued at (iat).
// Roles are deliberately not embedded – privileged endpoints re-read roles
// from the store on every request so a revocation takes effect immediately.
func NewSessionToken(secret, userID string, ttlDays int) (SessionToken, error) {
    exp := time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour)
    claims := jwt.MapClaims{
        "sub": userID,
        "exp": exp.Unix(),
        "iat": time.Now().UTC().Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return SessionToken{}, err
    }
    return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies the signature and expiry of a session token
// and returns the subject (user ID).  The signing method must be HMAC;
// tokens signed with anything else are rejected.
func ParseSessionToken(secret, raw string) (string, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrInvalidToken
        }
        return []byte(secret), nil
    })
    if err != nil || !tok.Valid {
        return "", ErrInvalidToken
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return "", ErrInvalidToken
    }
    sub, ok := claims["sub"].(string)
    if !ok || sub == "" {
        return "", ErrInvalidToken
    }
    return sub, nil
}

// NewOpaqueToken returns a cryptographically secure random token used for
// email confirmation and password reset links.  These are plain random
// identifiers, not JWTs: they are looked up in the store and carry no
// claims of their own.
func NewOpaqueToken() (string, error) {
    return randomHex(32) // 32 bytes -> 64 hex chars
}

// randomHex returns a hex‑encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
    buf := make([]byte, n)
    if _, err := rand.Read(buf); err != nil {
        return "", err
    }
    return hex.EncodeToString(buf), nil
}
