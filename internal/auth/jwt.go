package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenTTL - срок жизни токена оператора
	DefaultTokenTTL = 24 * time.Hour
	issuer          = "blockbase"
	minSecretLen    = 32
)

var (
	ErrShortSecret  = errors.New("секрет должен быть не короче 32 байт")
	ErrInvalidToken = errors.New("недействительный токен")
)

// Claims представляет claims токена оператора admin API
type Claims struct {
	Operator string `json:"operator"`
	// CanWrite разрешает изменять блоки мира
	CanWrite bool `json:"can_write"`
	jwt.RegisteredClaims
}

// TokenManager выпускает и проверяет токены с общим HMAC секретом
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager создаёт менеджер. Пустой secret - случайный ключ на время жизни процесса.
func NewTokenManager(secret string, ttl time.Duration) (*TokenManager, error) {
	var key []byte
	if secret == "" {
		key = make([]byte, minSecretLen)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("генерация секрета: %w", err)
		}
	} else {
		key = []byte(secret)
		if len(key) < minSecretLen {
			return nil, ErrShortSecret
		}
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{secret: key, ttl: ttl, now: time.Now}, nil
}

// Generate создаёт подписанный токен для оператора
func (m *TokenManager) Generate(operator string, canWrite bool) (string, error) {
	now := m.now()
	claims := &Claims{
		Operator: operator,
		CanWrite: canWrite,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   operator,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Validate проверяет подпись и срок токена
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// GenerateSecureSecret генерирует случайный секрет для конфига
func GenerateSecureSecret() (string, error) {
	b := make([]byte, minSecretLen)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
