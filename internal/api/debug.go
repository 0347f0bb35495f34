package api

import (
	"net/http"
	"time"

	"cvrpplan/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	svc := s.Config.Service
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":               svc.Port,
			"authMode":           svc.AuthMode,
			"rateRps":            svc.RateRPS,
			"rateBurst":          svc.RateBurst,
			"maxPoints":          svc.MaxPoints,
			"webhookMaxAttempts": svc.WebhookMaxAttempts,
			"hasDatabaseUrl":     svc.DatabaseURL != "",
			"hasRedisUrl":        svc.RedisURL != "",
			"hasWebhookUrl":      svc.WebhookURL != "",
			"restarts":           s.Options.Restarts,
			"workers":            s.Options.Workers,
		},
	})
}
