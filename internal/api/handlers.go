package api

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/kdimtricp/moviewarehouse/internal/warehouse"
)

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

// App holds what the ops handlers report on.
type App struct {
	Verify          func(ctx context.Context) (warehouse.VerifyReport, error)
	MigrationStatus func(ctx context.Context) ([]warehouse.MigrationStatus, error)
	Log             *zap.Logger
}

func (app *App) logger() *zap.Logger {
	if app.Log == nil {
		return zap.NewNop()
	}
	return app.Log
}

// VerifyHandler compares raw store and warehouse counts. A mismatch is still
// a 200; the body's ok field carries the verdict.
func (app *App) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	report, err := app.Verify(r.Context())
	if err != nil {
		app.logger().Error("verification failed", zap.Error(err))
		http.Error(w, "Error running verification", http.StatusInternalServerError)
		return
	}

	if !report.OK {
		app.logger().Warn("raw store and warehouse disagree", zap.Any("mismatches", report.Mismatches()))
	}
	writeJSON(w, http.StatusOK, report)
}

func (app *App) MigrationsHandler(w http.ResponseWriter, r *http.Request) {
	status, err := app.MigrationStatus(r.Context())
	if err != nil {
		app.logger().Error("reading migration status failed", zap.Error(err))
		http.Error(w, "Error reading migrations", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
