package auth

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"aethersecure/crypto"
	"aethersecure/models"

	"github.com/google/uuid"
)

// TokenType is the scheme clients put in the Authorization header.
const TokenType = "bearer"

// ErrInvalidToken covers malformed, forged and expired tokens alike.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Claims is the signed body of a session token. Times are unix seconds.
type Claims struct {
	Subject   string `json:"sub"`
	AccountID int64  `json:"aid"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	ID        string `json:"jti"`
}

// TokenIssuer mints and verifies session tokens of the form
// base64url(claims) "." base64url(ed25519 signature over the first segment).
type TokenIssuer struct {
	keys *crypto.SigningKeyPair
	ttl  time.Duration
	now  func() time.Time
}

// NewTokenIssuer returns an issuer signing with keys. A non-positive ttl means one hour.
func NewTokenIssuer(keys *crypto.SigningKeyPair, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{keys: keys, ttl: ttl, now: time.Now}
}

// Issue signs a fresh token for subject, bound to the account with accountID.
func (i *TokenIssuer) Issue(subject string, accountID int64) (models.Token, error) {
	if subject == "" {
		return models.Token{}, errors.New("subject is required")
	}
	if accountID <= 0 {
		return models.Token{}, errors.New("account id is required")
	}

	now := i.now()
	expires := now.Add(i.ttl)
	claims := Claims{
		Subject:   subject,
		AccountID: accountID,
		IssuedAt:  now.Unix(),
		ExpiresAt: expires.Unix(),
		ID:        uuid.NewString(),
	}
	body, err := json.Marshal(claims)
	if err != nil {
		return models.Token{}, fmt.Errorf("marshal token claims: %w", err)
	}

	encodedBody := base64.RawURLEncoding.EncodeToString(body)
	signature, err := i.keys.Sign([]byte(encodedBody))
	if err != nil {
		return models.Token{}, fmt.Errorf("sign token: %w", err)
	}

	return models.Token{
		AccessToken: encodedBody + "." + base64.RawURLEncoding.EncodeToString(signature),
		TokenType:   TokenType,
		ExpiresAt:   time.Unix(claims.ExpiresAt, 0).UTC(),
	}, nil
}

// Parse verifies token and returns its claims.
func (i *TokenIssuer) Parse(token string) (*Claims, error) {
	encodedBody, encodedSignature, ok := strings.Cut(token, ".")
	if !ok || encodedBody == "" || strings.Contains(encodedSignature, ".") {
		return nil, ErrInvalidToken
	}

	signature, err := base64.RawURLEncoding.DecodeString(encodedSignature)
	if err != nil {
		return nil, ErrInvalidToken
	}
	if !i.keys.Verify([]byte(encodedBody), signature) {
		return nil, ErrInvalidToken
	}

	body, err := base64.RawURLEncoding.DecodeString(encodedBody)
	if err != nil {
		return nil, ErrInvalidToken
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	var claims Claims
	if err := decoder.Decode(&claims); err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || claims.AccountID <= 0 || claims.ExpiresAt <= i.now().Unix() {
		return nil, ErrInvalidToken
	}

	return &claims, nil
}
