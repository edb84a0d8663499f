package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/storefront/internal/session"
)

const SessionCookie = "shopper_session"

type contextKey string

const shopperContextKey contextKey = "shopper"

// ExtractToken extracts the session token from cookie or Authorization
// header.
func ExtractToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// Session identifies the shopper behind every request. A valid token is
// reused; anything else gets a fresh shopper identity and cookie. The
// shopper id keys the durable cart, so the same browser finds its cart
// again after a reload.
func Session(svc *session.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := resolveClaims(svc, r)
			if claims == nil {
				shopperID := session.NewShopperID()
				token, expiresAt, err := svc.Issue(shopperID, "")
				if err != nil {
					http.Error(w, "failed to establish session", http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    token,
					Path:     "/",
					Expires:  expiresAt,
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
				claims = &session.Claims{ShopperID: shopperID}
			}

			ctx := context.WithValue(r.Context(), shopperContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolveClaims(svc *session.Service, r *http.Request) *session.Claims {
	token := ExtractToken(r)
	if token == "" {
		return nil
	}
	claims, err := svc.Validate(token)
	if err != nil {
		return nil
	}
	return claims
}

// GetClaims retrieves the shopper claims from the request context.
func GetClaims(ctx context.Context) (*session.Claims, bool) {
	claims, ok := ctx.Value(shopperContextKey).(*session.Claims)
	return claims, ok
}

// GetShopperID is a helper to get just the shopper id from context.
func GetShopperID(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok {
		return ""
	}
	return claims.ShopperID
}

// GetCustomerID returns the signed-in customer id, empty for guests.
func GetCustomerID(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok {
		return ""
	}
	return claims.CustomerID
}
