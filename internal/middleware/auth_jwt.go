package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"styletransfer/internal/domain"
)

const tokenIssuer = "styletransfer"

type TokenClaims struct {
	Sub      string      `json:"sub"`
	Role     domain.Role `json:"role"`
	Exp      int64       `json:"exp"`
	IssuedAt int64       `json:"iat"`
	Issuer   string      `json:"iss"`
}

type userKey string

const (
	claimsKey userKey = "claims"
)

var (
	errMalformedToken = errors.New("invalid token")
	errBadSignature   = errors.New("invalid signature")
	errExpiredToken   = errors.New("token expired")
)

// IssueToken signs a bearer token for subject with the given role, valid for
// ttl from now.
func IssueToken(secret, subject string, role domain.Role, ttl time.Duration, now time.Time) (string, error) {
	return SignJWT(secret, TokenClaims{
		Sub:      subject,
		Role:     role,
		IssuedAt: now.Unix(),
		Exp:      now.Add(ttl).Unix(),
		Issuer:   tokenIssuer,
	})
}

func SignJWT(secret string, claims TokenClaims) (string, error) {
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	headerEnc := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadEnc := base64.RawURLEncoding.EncodeToString(payloadJSON)
	data := headerEnc + "." + payloadEnc
	return data + "." + hmacSign(secret, data), nil
}

func hmacSign(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func VerifyJWT(secret, token string) (*TokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errMalformedToken
	}
	expected := hmacSign(secret, parts[0]+"."+parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return nil, errBadSignature
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, errMalformedToken
	}
	var claims TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, errMalformedToken
	}
	if claims.Exp != 0 && time.Now().Unix() > claims.Exp {
		return nil, errExpiredToken
	}
	if claims.Sub == "" {
		return nil, errMalformedToken
	}
	return &claims, nil
}

// AuthJWT rejects requests without a valid bearer token with 401.
func AuthJWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, "invalid authorization")
				return
			}
			claims, err := VerifyJWT(secret, strings.TrimSpace(parts[1]))
			if err != nil {
				unauthorized(w, "invalid authentication credentials")
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), *claims)))
		})
	}
}

// RequireAdmin must run after AuthJWT; non-admin tokens get 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			unauthorized(w, "missing authorization")
			return
		}
		if claims.Role != domain.RoleAdmin {
			writeJSONError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSONError(w, http.StatusUnauthorized, "unauthorized", msg)
}

func ClaimsFromContext(ctx context.Context) (TokenClaims, bool) {
	v, ok := ctx.Value(claimsKey).(TokenClaims)
	return v, ok
}

func ContextWithClaims(ctx context.Context, claims TokenClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// UserIDFromContext returns the authenticated subject, or "".
func UserIDFromContext(ctx context.Context) string {
	claims, _ := ClaimsFromContext(ctx)
	return claims.Sub
}
