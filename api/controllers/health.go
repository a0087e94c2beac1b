package controllers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/r2blaze/r2blaze-backend/api/responses"
	"github.com/r2blaze/r2blaze-backend/pkg/config"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
)

const (
	envHeader         = "X-R2blaze-Env"
	readinessDeadline = 2 * time.Second
)

// Pinger is satisfied by the database and redis clients.
type Pinger interface {
	Ping(context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every dependency concurrently and reports which failed.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessDeadline)
		defer cancel()

		checks := make(map[string]string, len(deps))
		results := make([]error, 0, len(deps))
		names := make([]string, 0, len(deps))
		for name := range deps {
			names = append(names, name)
			results = append(results, nil)
		}

		var g errgroup.Group
		for i, name := range names {
			pinger := deps[name]
			g.Go(func() error {
				if pinger == nil {
					return nil
				}
				results[i] = pinger.Ping(ctx)
				return nil
			})
		}
		_ = g.Wait()

		ready := true
		for i, name := range names {
			if results[i] != nil {
				ready = false
				checks[name] = "unavailable"
				if logg != nil {
					logg.Warn(logg.WithFields(r.Context(), map[string]any{"dependency": name, "error": results[i].Error()}), "health.dependency_down")
				}
				continue
			}
			checks[name] = "ok"
		}

		if !ready {
			responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeDependency, "not ready").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
