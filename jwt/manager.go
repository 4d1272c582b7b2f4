package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the algorithm used to sign and verify tokens.
type SigningMethod string

const (
	// MethodEd25519 signs with an Ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
)

// tokenClass separates access and refresh key material so that a token of
// one class can never verify as the other.
type tokenClass int

const (
	classAccess tokenClass = iota
	classRefresh
)

// Config holds the signing material and validation rules for a Manager.
//
// Config instances are intended to be set up during initialization and then
// treated as immutable.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod SigningMethod

	// HS256: the HMAC secrets. Ed25519: the private keys (raw or PEM).
	AccessSecret  []byte
	RefreshSecret []byte

	// Ed25519 verify keys. Unused for HS256.
	AccessPublicKey  []byte
	RefreshPublicKey []byte

	Issuer string
	Leeway time.Duration
}

// Manager mints and verifies the access and refresh tokens of the session
// authority. A Manager is safe for concurrent use.
type Manager struct {
	config Config
}

// AccessClaims is the claim set carried by access tokens. Subject holds the
// identity ID.
type AccessClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set carried by refresh tokens. ID holds the
// credential record identifier the token is bound to.
type RefreshClaims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
			return nil, errors.New("hs256 requires access and refresh secrets")
		}
	case MethodEd25519:
		for _, key := range [][]byte{cfg.AccessSecret, cfg.RefreshSecret} {
			if len(key) == 0 {
				return nil, errors.New("ed25519 requires access and refresh private keys")
			}
			if _, err := parseEdPrivateKey(key); err != nil {
				return nil, err
			}
		}
		for _, key := range [][]byte{cfg.AccessPublicKey, cfg.RefreshPublicKey} {
			if len(key) == 0 {
				return nil, errors.New("ed25519 requires access and refresh public keys")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, err
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// CreateAccess mints a short-lived access token for the given identity.
func (j *Manager) CreateAccess(subject, name string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(j.config.AccessTTL)

	claims := AccessClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(j.getMethod(), claims)
	signKey, err := j.getSignKey(classAccess)
	if err != nil {
		return "", time.Time{}, err
	}

	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// CreateRefresh mints a refresh token bound to a credential record. The
// record ID travels in the jti claim so the verifier can locate the record
// without a token-to-record index.
func (j *Manager) CreateRefresh(subject, name, credentialID string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(j.config.RefreshTTL)

	claims := RefreshClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        credentialID,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(j.getMethod(), claims)
	signKey, err := j.getSignKey(classRefresh)
	if err != nil {
		return "", time.Time{}, err
	}

	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseAccess verifies an access token and returns its claims.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, classAccess, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns its claims. Expiry is
// checked here before any store lookup happens.
func (j *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenStr, classRefresh, claims); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, jwt.ErrTokenInvalidId
	}
	return claims, nil
}

func (j *Manager) parse(tokenStr string, class tokenClass, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithExpirationRequired(),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return j.getVerifyKey(class)
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) keyFor(class tokenClass) ([]byte, []byte) {
	if class == classRefresh {
		return j.config.RefreshSecret, j.config.RefreshPublicKey
	}
	return j.config.AccessSecret, j.config.AccessPublicKey
}

func (j *Manager) getSignKey(class tokenClass) (interface{}, error) {
	secret, _ := j.keyFor(class)
	switch j.config.SigningMethod {
	case MethodHS256:
		return secret, nil
	default:
		return parseEdPrivateKey(secret)
	}
}

func (j *Manager) getVerifyKey(class tokenClass) (interface{}, error) {
	secret, public := j.keyFor(class)
	switch j.config.SigningMethod {
	case MethodHS256:
		return secret, nil
	default:
		return parseEdPublicKey(public)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
