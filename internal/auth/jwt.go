package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/strefethen/connect-bridge-go/internal/config"
)

const (
	issuer   = "connect-bridge"
	audience = "connect-bridge-client"
)

// TokenPayload represents the validated payload data.
type TokenPayload struct {
	Sub    string
	Client string
}

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrNoSecret     = errors.New("JWT_SECRET is not configured")
)

type tokenClaims struct {
	Client string `json:"client"`
	jwt.RegisteredClaims
}

// GenerateAccessToken signs an access token for payload, valid for the
// configured expiry.
func GenerateAccessToken(cfg config.Config, payload TokenPayload) (string, error) {
	if cfg.JWTSecret == "" {
		return "", ErrNoSecret
	}
	if payload.Sub == "" {
		return "", errors.New("token subject is required")
	}

	now := time.Now()
	claims := tokenClaims{
		Client: payload.Client,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   payload.Sub,
			Issuer:    issuer,
			Audience:  []string{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(cfg.JWTAccessTokenExpirySec) * time.Second)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// VerifyToken parses and validates the JWT.
func VerifyToken(cfg config.Config, token string) (TokenPayload, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(issuer),
	)

	claims := &tokenClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(_ *jwt.Token) (any, error) {
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return TokenPayload{}, ErrTokenExpired
		}
		return TokenPayload{}, ErrTokenInvalid
	}
	if parsed == nil || !parsed.Valid || claims.Subject == "" {
		return TokenPayload{}, ErrTokenInvalid
	}

	return TokenPayload{Sub: claims.Subject, Client: claims.Client}, nil
}
