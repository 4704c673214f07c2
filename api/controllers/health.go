package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/procurehub/webshop-backend/api/responses"
	"github.com/procurehub/webshop-backend/pkg/config"
	"github.com/procurehub/webshop-backend/pkg/db"
	"github.com/procurehub/webshop-backend/pkg/logger"
	"github.com/procurehub/webshop-backend/pkg/redis"
)

const healthCheckTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Webshop-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady probes the backing stores. A nil pinger is reported as
// skipped rather than failing readiness.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Webshop-Env", cfg.App.Env)

		checks := map[string]string{}
		healthy := true

		probe := func(name string, ping func() error) {
			if ping == nil {
				checks[name] = "skipped"
				return
			}
			if err := ping(); err != nil {
				checks[name] = "down"
				healthy = false
				if logg != nil {
					logg.Error(r.Context(), "readiness probe failed: "+name, err)
				}
				return
			}
			checks[name] = "up"
		}

		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if dbP != nil {
			probe("database", func() error { return dbP.Ping(ctx) })
		} else {
			probe("database", nil)
		}
		if redisP != nil {
			probe("redis", func() error { return redisP.Ping(ctx) })
		} else {
			probe("redis", nil)
		}

		status := http.StatusOK
		state := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"status": state,
			"checks": checks,
		})
	}
}
