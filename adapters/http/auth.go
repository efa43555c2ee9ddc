package http

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/artpar/kvorm/adapters/hasher"
	"github.com/artpar/kvorm/adapters/metrics"
	"github.com/artpar/kvorm/pkg/httpapi"
)

// NewAuthMiddleware guards the document API with a single bearer token. The
// configured value is a bcrypt hash of the accepted token, so the config file
// never holds the token itself.
func NewAuthMiddleware(tokenHash string, collector *metrics.Collector, logger zerolog.Logger) func(http.Handler) http.Handler {
	hash := []byte(tokenHash)
	verifier := hasher.NewBcrypt(0)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				recordAuthFailure(collector, "missing_token")
				logger.Warn().
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Msg("request without bearer token")
				httpapi.WriteUnauthorized(w, "")
				return
			}

			if !verifier.Compare(hash, token) {
				recordAuthFailure(collector, "invalid_token")
				logger.Warn().
					Str("path", r.URL.Path).
					Str("remote", r.RemoteAddr).
					Msg("request with invalid bearer token")
				httpapi.WriteUnauthorized(w, "Invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && strings.EqualFold(auth[:len(prefix)], prefix) {
		return auth[len(prefix):]
	}
	return ""
}

func recordAuthFailure(collector *metrics.Collector, reason string) {
	if collector != nil {
		collector.AuthFailures.WithLabelValues(reason).Inc()
	}
}
