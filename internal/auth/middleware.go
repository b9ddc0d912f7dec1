package auth

import (
	"context"
	"net/http"
	"time"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// ContextKeyAPIKey is the context key for storing the API key ID
	ContextKeyAPIKey contextKey = "api_key_id"
	// ContextKeyRole is the context key for storing the caller role
	ContextKeyRole contextKey = "role"
)

// Authenticator handles authentication for API requests
type Authenticator struct {
	keyStore KeyStore // optional; nil means admin-key-only deployments
	adminKey string   // static ADMIN_API_KEY from config
}

// NewAuthenticator creates a new Authenticator. keyStore may be nil when
// only the static admin key is configured.
func NewAuthenticator(keyStore KeyStore, adminKey string) *Authenticator {
	return &Authenticator{
		keyStore: keyStore,
		adminKey: adminKey,
	}
}

// AuthResult contains the result of an authentication attempt
type AuthResult struct {
	Authenticated bool
	Role          Role
	APIKeyID      string
	Error         string
}

// Authenticate authenticates a request using the Authorization header.
// It supports both the static admin key and stored API keys.
func (a *Authenticator) Authenticate(ctx context.Context, authHeader string) AuthResult {
	token := ExtractBearerToken(authHeader)
	if token == "" {
		return AuthResult{
			Authenticated: false,
			Error:         "missing bearer token",
		}
	}

	// The static admin key is checked first and in constant time.
	if a.adminKey != "" && VerifyAPIKeyConstantTime(token, a.adminKey) {
		return AuthResult{
			Authenticated: true,
			Role:          RoleSuperadmin,
		}
	}

	if a.keyStore == nil {
		return AuthResult{
			Authenticated: false,
			Error:         "invalid token",
		}
	}

	// Verify against every enabled key. There is no way around the scan
	// with bcrypt since hashes are non-deterministic.
	keys, err := a.keyStore.ListKeys(ctx)
	if err != nil {
		return AuthResult{
			Authenticated: false,
			Error:         "authentication service unavailable",
		}
	}

	var apiKey *Key
	for i := range keys {
		if keys[i].Enabled && VerifyAPIKey(token, keys[i].Hash) {
			apiKey = &keys[i]
			break
		}
	}

	if apiKey == nil {
		return AuthResult{
			Authenticated: false,
			Error:         "invalid token",
		}
	}

	if apiKey.ExpiresAt != nil && time.Now().After(*apiKey.ExpiresAt) {
		return AuthResult{
			Authenticated: false,
			Error:         "api key expired",
		}
	}

	// Update last used timestamp (async, ignore errors)
	id := apiKey.ID
	go func() {
		_ = a.keyStore.TouchKey(context.Background(), id)
	}()

	return AuthResult{
		Authenticated: true,
		Role:          apiKey.Role,
		APIKeyID:      apiKey.ID,
	}
}

// RequireKey is a middleware that requires an authenticated API key with
// at least the given role.
func (a *Authenticator) RequireKey(requiredRole Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			result := a.Authenticate(r.Context(), authHeader)

			if !result.Authenticated {
				http.Error(w, result.Error, http.StatusUnauthorized)
				return
			}

			if !HasPermission(result.Role, requiredRole) {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}

			ctx := context.WithValue(r.Context(), ContextKeyRole, result.Role)
			if result.APIKeyID != "" {
				ctx = context.WithValue(ctx, ContextKeyAPIKey, result.APIKeyID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRoleFromContext extracts the role from the request context
func GetRoleFromContext(ctx context.Context) (Role, bool) {
	role, ok := ctx.Value(ContextKeyRole).(Role)
	return role, ok
}

// GetAPIKeyIDFromContext extracts the API key ID from the request context
func GetAPIKeyIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ContextKeyAPIKey).(string)
	return id, ok
}

// GetIPAddress extracts the client IP address from the request
func GetIPAddress(r *http.Request) string {
	// X-Forwarded-For wins when a proxy is in front
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}
