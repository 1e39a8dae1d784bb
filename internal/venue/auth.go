package venue

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"

	"driftbet/internal/config"
)

// Auth signs gateway requests with HMAC-SHA256:
// message = timestamp + method + requestPath [+ body], keyed by the API secret.
// Read-only market data endpoints are unauthenticated; everything that touches
// the user account (positions, order submission) carries these headers.
type Auth struct {
	wallet string
	apiKey string
	secret string
}

// NewAuth creates an Auth instance from the venue config.
func NewAuth(cfg config.VenueConfig) *Auth {
	return &Auth{
		wallet: cfg.Wallet,
		apiKey: cfg.ApiKey,
		secret: cfg.Secret,
	}
}

// Wallet returns the account address requests are signed for.
func (a *Auth) Wallet() string {
	return a.wallet
}

// HasCredentials reports whether signed requests can be made.
func (a *Auth) HasCredentials() bool {
	return a.apiKey != "" && a.secret != ""
}

// Headers generates the authentication headers for a gateway request.
func (a *Auth) Headers(method, path, body string) map[string]string {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	return map[string]string{
		"BET-WALLET":    a.wallet,
		"BET-API-KEY":   a.apiKey,
		"BET-TIMESTAMP": timestamp,
		"BET-SIGNATURE": a.buildHMAC(timestamp, method, path, body),
	}
}

// buildHMAC computes the HMAC-SHA256 signature over
// timestamp + method + requestPath [+ body]. Secrets issued by the gateway are
// base64; fall back to the raw bytes if the secret doesn't decode.
func (a *Auth) buildHMAC(timestamp, method, path, body string) string {
	secretBytes, err := base64.StdEncoding.DecodeString(a.secret)
	if err != nil {
		secretBytes = []byte(a.secret)
	}

	message := timestamp + method + path
	if body != "" {
		message += body
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
