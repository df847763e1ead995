package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/cmlabs-hris/hris-sync/internal/domain/auth"
)

// Token types carried in the "type" claim.
const (
	TypeAccess = "access"
	TypeSSE    = "sse"
)

// SSETokenTTL bounds how long a stream token can be used to connect.
const SSETokenTTL = 5 * time.Minute

// Access tokens are issued by the HRIS backend with the shared secret; this
// service only issues them for tooling and tests.
type Service interface {
	GenerateAccessToken(userID string, name string) (token string, expiresAt int64, err error)
	GenerateSSEToken(userID string) (token string, expiresIn int, err error)
	ValidateSSEToken(tokenString string) (userID string, err error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpirationTime string
	tokenAuth                 *jwtauth.JWTAuth
	now                       func() time.Time
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func NewJWTService(secretKey string, accessTokenExpirationTime string) Service {
	return &JWTService{
		accessTokenExpirationTime: accessTokenExpirationTime,
		tokenAuth:                 jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
		now:                       time.Now,
	}
}

func (j *JWTService) GenerateAccessToken(userID string, name string) (token string, expiresAt int64, err error) {
	expDuration, err := time.ParseDuration(j.accessTokenExpirationTime)
	if err != nil {
		return "", 0, fmt.Errorf("access token expiration: %w", err)
	}
	expiresAt = j.now().Add(expDuration).Unix()

	token, err = j.encode(map[string]interface{}{
		"user_id": userID,
		"name":    name,
		"type":    TypeAccess,
		"exp":     expiresAt,
	})
	return token, expiresAt, err
}

// GenerateSSEToken issues the query-string token of the collaboration stream.
func (j *JWTService) GenerateSSEToken(userID string) (token string, expiresIn int, err error) {
	token, err = j.encode(map[string]interface{}{
		"user_id": userID,
		"type":    TypeSSE,
		"exp":     j.now().Add(SSETokenTTL).Unix(),
	})
	if err != nil {
		return "", 0, err
	}
	return token, int(SSETokenTTL.Seconds()), nil
}

func (j *JWTService) encode(claims map[string]interface{}) (string, error) {
	_, tokenString, err := j.tokenAuth.Encode(claims)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateSSEToken checks signature, expiry and type and returns the user ID.
func (j *JWTService) ValidateSSEToken(tokenString string) (userID string, err error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		if errors.Is(err, jwtauth.ErrExpired) {
			return "", auth.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", auth.ErrInvalidToken, err)
	}

	if tokenType, ok := token.Get("type"); !ok || tokenType != TypeSSE {
		return "", auth.ErrInvalidToken
	}

	userIDVal, ok := token.Get("user_id")
	if !ok {
		return "", auth.ErrMissingIdentity
	}
	userID, ok = userIDVal.(string)
	if !ok || userID == "" {
		return "", auth.ErrMissingIdentity
	}
	return userID, nil
}
