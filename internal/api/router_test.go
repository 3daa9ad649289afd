package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kdimtricp/moviewarehouse/internal/warehouse"
	"github.com/kdimtricp/moviewarehouse/pkg/metrics"
)

func TestRouter(t *testing.T) {
	report := warehouse.VerifyReport{
		OK: false,
		Tables: []warehouse.TableCount{
			{Table: "raw_genres", RawStore: 19, Warehouse: 19, Match: true},
			{Table: "raw_movies", RawStore: 1000, Warehouse: 998},
		},
	}
	app := &App{
		Verify: func(ctx context.Context) (warehouse.VerifyReport, error) {
			return report, nil
		},
		MigrationStatus: func(ctx context.Context) ([]warehouse.MigrationStatus, error) {
			return []warehouse.MigrationStatus{{Version: "001", Name: "001_create_raw_tables.sql", Applied: true}}, nil
		},
	}
	router := NewRouter(app)

	t.Run("Ping", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pong", rec.Body.String())
	})

	t.Run("Verify", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verify", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got warehouse.VerifyReport
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
		assert.False(t, got.OK)
		require.Len(t, got.Tables, 2)
		assert.Equal(t, int64(998), got.Tables[1].Warehouse)
	})

	t.Run("Migrations", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/migrations", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"applied":true`)
	})

	t.Run("Metrics", func(t *testing.T) {
		metrics.RecordAPIRequest("genres", true)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.Contains(rec.Body.String(), "moviewarehouse_tmdb_requests_total"))
	})
}

func TestVerifyHandler_Error(t *testing.T) {
	app := &App{
		Verify: func(ctx context.Context) (warehouse.VerifyReport, error) {
			return warehouse.VerifyReport{}, errors.New("warehouse unreachable")
		},
	}

	rec := httptest.NewRecorder()
	NewRouter(app).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verify", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouter_OptionalRoutes(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(&App{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/verify", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
