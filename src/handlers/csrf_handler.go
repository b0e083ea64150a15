package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/username/pinigine/backend/src/config"
	"github.com/username/pinigine/backend/src/logger"
	"github.com/username/pinigine/backend/src/utils"
)

const csrfCookieName = "_pinigine_csrf"

// GetCSRFToken issues a signed double-submit token: the value is set as a
// cookie and returned in the body/header, and state-changing requests must
// echo it back in the X-CSRF-Token header.
func GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := generateSignedToken(config.Cfg.CSRFAuthKey)
	if err != nil {
		logger.L.Error("Failed to generate CSRF token", "error", err)
		utils.SendJSONError(w, "Failed to generate CSRF token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		MaxAge:   3600,  // 1 hour
	})

	w.Header().Set("X-CSRF-Token", token)
	utils.SendJSON(w, map[string]string{"csrfToken": token}, http.StatusOK)
}

// CSRFMiddleware validates the double-submit token on state-changing requests.
// GET, HEAD and OPTIONS pass through.
func CSRFMiddleware(authKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get("X-CSRF-Token")
			cookie, err := r.Cookie(csrfCookieName)
			if headerToken == "" || err != nil || headerToken != cookie.Value || !validSignedToken(authKey, headerToken) {
				logger.L.Warn("CSRF token validation failed",
					"method", r.Method,
					"path", r.URL.Path,
					"origin", r.Header.Get("Origin"))
				utils.SendJSONError(w, "CSRF token validation failed", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// generateSignedToken returns "<random>.<hmac>" so a token cannot be forged
// by an attacker who can set cookies but does not know the auth key.
func generateSignedToken(authKey []byte) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	value := base64.RawURLEncoding.EncodeToString(b)
	return value + "." + signToken(authKey, value), nil
}

func validSignedToken(authKey []byte, token string) bool {
	value, sig, found := strings.Cut(token, ".")
	if !found {
		return false
	}
	expected := signToken(authKey, value)
	return hmac.Equal([]byte(sig), []byte(expected))
}

func signToken(authKey []byte, value string) string {
	mac := hmac.New(sha256.New, authKey)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
