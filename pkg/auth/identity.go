package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"parlor/pkg/config"
	"parlor/pkg/logger"
	"parlor/pkg/utils"
)

// Role represents the resolved caller role for a request.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

// SecConfig mirrors the security-related configuration used to drive
// authentication, CORS and rate limiting behavior. Put here so
// limiter.go and gateway.go can reference the shared type.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	IPWhitelist    []string
	BackendKeys    map[string]struct{}
	FrontendKeys   map[string]struct{}
	AdminKeys      map[string]struct{}
	JWTSecret      string
	JWTIssuer      string
}

// Identity is the verified end user behind a request. The API key
// authenticates the calling service; the identity names the person.
type Identity struct {
	ID    string
	Email string
}

type ctxIdentityKey struct{}

// RequireIdentity verifies the end-user identity on the request and
// injects it into the context. Two proofs are accepted:
//
//   - X-User-Token: a JWT signed with the configured secret
//   - X-User-ID + X-User-Signature: HMAC-SHA256 of the user id under a
//     configured signing key
//
// Backend and admin callers may instead assert an identity via plain
// X-User-ID; their key already proves a trusted service.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role := r.Header.Get("X-Role-Name")
		userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
		sig := strings.TrimSpace(r.Header.Get("X-User-Signature"))
		token := strings.TrimSpace(r.Header.Get("X-User-Token"))

		if token != "" {
			secret, issuer := config.GetJWTSecret()
			if secret == "" {
				logger.Error("no_jwt_secret_configured")
				utils.JSONError(w, http.StatusInternalServerError, "server misconfigured: no token secret available")
				return
			}
			claims, err := ValidateToken(token, secret, issuer)
			if err != nil {
				logger.Warn("invalid_user_token", "path", r.URL.Path, "error", err)
				utils.JSONError(w, http.StatusUnauthorized, "invalid user token")
				return
			}
			if userID != "" && userID != claims.UserID {
				logger.Warn("identity_mismatch_token_header", "token", claims.UserID, "header", userID)
				utils.JSONError(w, http.StatusForbidden, "identity mismatch between token and header")
				return
			}
			next.ServeHTTP(w, withIdentity(r, Identity{ID: claims.UserID, Email: claims.Email}))
			return
		}

		if sig != "" {
			if userID == "" {
				utils.JSONError(w, http.StatusUnauthorized, "missing signature headers")
				return
			}
			keys := config.GetSigningKeys()
			if len(keys) == 0 {
				logger.Error("no_signing_keys_configured")
				utils.JSONError(w, http.StatusInternalServerError, "server misconfigured: no signing secrets available")
				return
			}
			if !signatureValid(userID, sig, keys) {
				logger.Warn("invalid_signature", "user", userID)
				utils.JSONError(w, http.StatusUnauthorized, "invalid signature")
				return
			}
			next.ServeHTTP(w, withIdentity(r, Identity{ID: userID, Email: strings.TrimSpace(r.Header.Get("X-User-Email"))}))
			return
		}

		// trusted services assert the user directly
		if role == "backend" || role == "admin" {
			if userID == "" {
				utils.JSONError(w, http.StatusBadRequest, "user id required for backend requests")
				return
			}
			if len(userID) > 128 {
				utils.JSONError(w, http.StatusBadRequest, "user id too long")
				return
			}
			next.ServeHTTP(w, withIdentity(r, Identity{ID: userID, Email: strings.TrimSpace(r.Header.Get("X-User-Email"))}))
			return
		}

		logger.Warn("missing_identity_proof", "role", role, "path", r.URL.Path, "remote", r.RemoteAddr)
		utils.JSONError(w, http.StatusUnauthorized, "missing or invalid user credentials")
	})
}

func signatureValid(userID, sig string, keys map[string]struct{}) bool {
	for k := range keys {
		mac := hmac.New(sha256.New, []byte(k))
		mac.Write([]byte(userID))
		expected := hex.EncodeToString(mac.Sum(nil))
		if hmac.Equal([]byte(expected), []byte(sig)) {
			return true
		}
	}
	return false
}

func withIdentity(r *http.Request, id Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxIdentityKey{}, id))
}

// IdentityFromContext returns the verified identity, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	v, ok := ctx.Value(ctxIdentityKey{}).(Identity)
	return v, ok
}

// UserIDFromContext returns the verified user id or empty string.
func UserIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.ID
}

// EmailFromContext returns the verified email or empty string.
func EmailFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.Email
}
