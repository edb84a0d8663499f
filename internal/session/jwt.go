package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims identify a shopper. The shopper id is a generated uuid, not a
// customer id: it keys the durable cart so the same browser finds its cart
// again after a reload, whether or not the shopper ever signs in.
type Claims struct {
	ShopperID string `json:"shopper_id"`
	// CustomerID is set once the shopper is known to the commerce API,
	// either by signing in or by completing a checkout.
	CustomerID string `json:"customer_id,omitempty"`
	jwt.RegisteredClaims
}

// Service issues and validates shopper session tokens.
type Service struct {
	secretKey []byte
	expiry    time.Duration
}

func NewService(secretKey string, expiry time.Duration) *Service {
	return &Service{
		secretKey: []byte(secretKey),
		expiry:    expiry,
	}
}

// NewShopperID generates a fresh shopper identity.
func NewShopperID() string {
	return uuid.New().String()
}

// Issue creates a signed session token for a shopper.
func (s *Service) Issue(shopperID, customerID string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.expiry)

	claims := Claims{
		ShopperID:  shopperID,
		CustomerID: customerID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   shopperID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// Validate parses a session token and returns its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ShopperID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Expiry returns the configured session lifetime.
func (s *Service) Expiry() time.Duration {
	return s.expiry
}
