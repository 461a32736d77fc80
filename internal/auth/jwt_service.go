package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength JWT 密钥最小长度
const MinSecretLength = 32

// TokenClaims JWT 令牌声明
type TokenClaims struct {
	Subject string
	Role    string
	Type    string
	Exp     int64
	Iat     int64
}

// JWTService 签发和校验 API 访问令牌
type JWTService struct {
	secret    []byte
	expiresIn time.Duration
}

// NewJWTService 创建新的 JWT 服务
func NewJWTService(secret string, expiresIn time.Duration) (*JWTService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("JWT secret must be at least %d characters long, got %d", MinSecretLength, len(secret))
	}
	if expiresIn <= 0 {
		return nil, fmt.Errorf("invalid JWT access token TTL: %s", expiresIn)
	}
	return &JWTService{secret: []byte(secret), expiresIn: expiresIn}, nil
}

// GenerateAccessToken 生成访问令牌
func (s *JWTService) GenerateAccessToken(subject, role string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}
	if role == "" {
		role = "uploader"
	}

	now := time.Now()
	expiry := now.Add(s.expiresIn)
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"type": "access",
		"exp":  expiry.Unix(),
		"iat":  now.Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate access token: %w", err)
	}
	return token, expiry, nil
}

// ParseToken 解析和验证 JWT 令牌
func (s *JWTService) ParseToken(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ExtractClaims 从访问令牌中提取声明
func (s *JWTService) ExtractClaims(tokenString string) (*TokenClaims, error) {
	claims, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}

	subject, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	tokenType, _ := claims["type"].(string)
	expFloat, _ := claims["exp"].(float64)
	iatFloat, _ := claims["iat"].(float64)

	if tokenType != "access" {
		return nil, errors.New("not an access token")
	}
	if subject == "" {
		return nil, errors.New("subject not found in token claims")
	}

	return &TokenClaims{
		Subject: subject,
		Role:    role,
		Type:    tokenType,
		Exp:     int64(expFloat),
		Iat:     int64(iatFloat),
	}, nil
}
