package api

import (
	"net/http"
	"time"

	"vrptw/internal/buildinfo"
)

// DebugJSON reports the build, the host and the effective non-secret
// configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	cfg := s.Config
	info := map[string]any{
		"build": buildinfo.Info(),
		"host":  buildinfo.Host(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"PORT":                 cfg.Server.Port,
			"STRATEGY":             cfg.Strategy,
			"TIMEOUT":              cfg.Timeout.String(),
			"MAX_RUN_TIME":         cfg.Server.MaxRunTime.String(),
			"WEBHOOK_MAX_ATTEMPTS": cfg.Webhooks.MaxAttempts,
			"HAS_DATABASE_URL":     cfg.Server.DatabaseURL != "",
			"HAS_REDIS_URL":        cfg.Server.RedisURL != "",
		},
	}
	writeJSON(w, http.StatusOK, info)
}
