package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tomasen/realip"
)

const controlIssuer = "vaultsync"

var (
	ErrTokenMissing = errors.New("control token missing")
	ErrTokenInvalid = errors.New("control token invalid")
)

// ControlClaims identifies a caller of the control API.
type ControlClaims struct {
	jwt.RegisteredClaims
}

// IssueControlToken signs a bearer token for the control API with secret.
// A zero ttl issues a token that never expires.
func IssueControlToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrTokenMissing
	}
	now := time.Now()
	claims := ControlClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  subject,
			Issuer:   controlIssuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseControlToken verifies tokenString against secret.
func ParseControlToken(tokenString, secret string) (*ControlClaims, error) {
	claims := &ControlClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(controlIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// requireToken rejects requests without a valid bearer token. Websocket
// clients that cannot set headers may pass it as ?token=.
func requireToken(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				raw = r.URL.Query().Get("token")
			}
			if raw == "" {
				http.Error(w, ErrTokenMissing.Error(), http.StatusUnauthorized)
				return
			}
			claims, err := ParseControlToken(strings.TrimSpace(raw), secret)
			if err != nil {
				sub("auth").Warn("rejected control token", "client", realip.FromRequest(r), "err", err)
				http.Error(w, ErrTokenInvalid.Error(), http.StatusUnauthorized)
				return
			}
			if logEnabled(slog.LevelDebug) {
				sub("auth").Debug("control token accepted", "sub", claims.Subject, "jti", claims.ID)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rejectCrossSite blocks state-changing requests a browser could send from
// another site without a preflight: anything that is not a JSON body, or
// that carries a foreign Origin.
func rejectCrossSite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || mt != "application/json" {
			forbid(w, r, "content type must be application/json")
			return
		}
		if r.Header.Get("Sec-Fetch-Site") == "cross-site" {
			forbid(w, r, "cross-site request")
			return
		}
		if origin := r.Header.Get("Origin"); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || u.Host != r.Host {
				forbid(w, r, "cross-origin request")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func forbid(w http.ResponseWriter, r *http.Request, reason string) {
	sub("auth").Warn("rejected control request", "method", r.Method, "path", r.URL.Path,
		"client", realip.FromRequest(r), "reason", reason)
	http.Error(w, reason, http.StatusForbidden)
}
