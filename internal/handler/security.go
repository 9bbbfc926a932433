package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// APIKeyInfo holds the identity data for a validated admin API key.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
}

// APIKeyRepository provides lookup of API keys by their peppered SHA-256
// hash.
type APIKeyRepository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

// hashAPIKey computes the stored hash form of a raw key: HMAC-SHA256 with
// the configured pepper, hex encoded.
func hashAPIKey(key string, pepper []byte) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}

// requireAPIKey guards admin endpoints. The key is read from the X-API-Key
// header, hashed, looked up, and compared in constant time to prevent
// timing side-channels even when the repository returns a stale row.
func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			respondError(w, r, http.StatusUnauthorized, "missing API key")
			return
		}

		computed := hashAPIKey(key, h.cfg.APIKeyPepper)
		info, err := h.apikeys.FindByHash(r.Context(), computed)
		if err != nil {
			respondError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil {
			respondError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		computedRaw, _ := hex.DecodeString(computed)
		if subtle.ConstantTimeCompare(computedRaw, stored) != 1 {
			respondError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}

		zctx.From(r.Context()).Debug("Admin request authenticated", zap.String("key_name", info.Name))
		next.ServeHTTP(w, r)
	})
}
