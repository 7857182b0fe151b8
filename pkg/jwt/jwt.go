package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	headerType      = "JWT"
	headerAlgorithm = "HS256"
)

type header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// Claims is the payload of an access token issued by the campus identity service.
// Subject carries the numeric user id.
type Claims struct {
	Subject   string `json:"sub"`
	Role      string `json:"role,omitempty"`
	Issuer    string `json:"iss,omitempty"`
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

func (c Claims) valid(now time.Time) error {
	if c.ExpiresAt == 0 || now.Unix() > c.ExpiresAt {
		return ErrExpiredToken
	}
	if c.NotBefore > 0 && now.Unix() < c.NotBefore {
		return ErrInvalidToken
	}
	return nil
}

// Credential is the verified identity behind a token.
type Credential struct {
	UserID    int64
	Role      string
	ExpiresAt time.Time
}

// Service signs and verifies HS256 tokens with a shared secret.
type Service struct {
	key []byte
	now func() time.Time
}

// New returns a Service. The secret must not be empty.
func New(secret string) (*Service, error) {
	if secret == "" {
		return nil, ErrMissingSigningKey
	}
	return &Service{key: []byte(secret), now: time.Now}, nil
}

// Issue signs a token for userID valid for ttl. The notification service never
// issues tokens in production; this exists for tests and local tooling.
func (s *Service) Issue(userID int64, role string, ttl time.Duration) (string, error) {
	now := s.now()
	return s.Sign(Claims{
		Subject:   strconv.FormatInt(userID, 10),
		Role:      role,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(ttl).Unix(),
	})
}

// Sign encodes and signs arbitrary claims.
func (s *Service) Sign(claims any) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}

	h, err := json.Marshal(header{Type: headerType, Algorithm: headerAlgorithm})
	if err != nil {
		return "", fmt.Errorf("marshal header: %w", err)
	}
	c, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	payload := encode(h) + "." + encode(c)
	return payload + "." + s.sign(payload), nil
}

// Verify checks signature, algorithm and expiry, and resolves the subject
// into a user id. Tokens without an exp claim are rejected.
func (s *Service) Verify(token string) (Credential, error) {
	if token == "" {
		return Credential{}, ErrMissingToken
	}

	var claims Claims
	if err := s.parse(token, &claims); err != nil {
		return Credential{}, err
	}
	if err := claims.valid(s.now()); err != nil {
		return Credential{}, err
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Credential{}, ErrInvalidSubject
	}

	return Credential{
		UserID:    id,
		Role:      claims.Role,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0).UTC(),
	}, nil
}

func (s *Service) parse(token string, claims any) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrInvalidToken
	}

	payload := parts[0] + "." + parts[1]
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(s.sign(payload))) != 1 {
		return ErrInvalidSignature
	}

	raw, err := decode(parts[0])
	if err != nil {
		return fmt.Errorf("%w: header: %v", ErrInvalidToken, err)
	}
	var h header
	if err := json.Unmarshal(raw, &h); err != nil {
		return fmt.Errorf("%w: header: %v", ErrInvalidToken, err)
	}
	if h.Algorithm != headerAlgorithm {
		return ErrUnexpectedSigningMethod
	}

	raw, err = decode(parts[1])
	if err != nil {
		return fmt.Errorf("%w: claims: %v", ErrInvalidToken, err)
	}
	if err := json.Unmarshal(raw, claims); err != nil {
		return fmt.Errorf("%w: claims: %v", ErrInvalidToken, err)
	}
	return nil
}

func (s *Service) sign(payload string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	return encode(mac.Sum(nil))
}

func encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
