package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnlt/filemigrator/internal/config"
	"github.com/mnlt/filemigrator/internal/contentstore"
	"github.com/mnlt/filemigrator/internal/domain"
	"github.com/mnlt/filemigrator/internal/logger"
	"github.com/mnlt/filemigrator/internal/repository"
	"github.com/mnlt/filemigrator/internal/service"
)

func setupTestAPI(t *testing.T) (*gin.Engine, *repository.FileRepository, *service.Migrator, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := repository.InitDB(&config.DatabaseConfig{
		Driver:       "sqlite",
		Path:         filepath.Join(t.TempDir(), "test.db"),
		MaxIdleConns: 1,
		MaxOpenConns: 1,
		AutoMigrate:  true,
	})
	require.NoError(t, err)
	repo := repository.NewFileRepository(db)

	sourceDir := filepath.Join(t.TempDir(), "flat")
	store := contentstore.NewLocalStore(sourceDir, filepath.Join(t.TempDir(), "byday"))

	log := logger.New(&logger.Config{Level: "error", Output: io.Discard, ServiceName: "test"})
	migrator := service.NewMigrator(repo, store, nil, log, service.Config{})
	require.NoError(t, migrator.Initialize(context.Background()))

	r := gin.New()
	h := NewStatusHandler(migrator, repo)
	r.GET("/api/v1/status", h.Status)
	r.GET("/api/v1/stats", h.Stats)
	r.GET("/api/v1/files", h.ListFiles)

	return r, repo, migrator, sourceDir
}

func seedRecords(t *testing.T, repo *repository.FileRepository, sourceDir string, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("file-%02d", i)
		require.NoError(t, repo.Insert(context.Background(), &domain.FileRecord{
			ID:          id,
			CreatedDate: time.Date(2024, 2, i, 9, 0, 0, 0, time.Local),
			DisplayName: id + ".bin",
		}))
		require.NoError(t, os.WriteFile(filepath.Join(sourceDir, id), []byte("data-"+id), 0644))
	}
}

func doGet(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatusEndpoint(t *testing.T) {
	r, repo, migrator, sourceDir := setupTestAPI(t)
	seedRecords(t, repo, sourceDir, 4)

	_, err := migrator.MigrateAll(context.Background(), 2)
	require.NoError(t, err)

	w := doGet(t, r, "/api/v1/status")
	require.Equal(t, http.StatusOK, w.Code)

	var status domain.MigrationStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, int64(4), status.Records.Total)
	assert.Equal(t, int64(2), status.Records.Moved)
	assert.Equal(t, int64(2), status.Records.Unmoved)
	assert.Equal(t, int64(2), status.Storage.MovedCount)
	assert.Equal(t, int64(2), status.Storage.UnmovedCount)
}

func TestStatsEndpoint(t *testing.T) {
	r, repo, _, sourceDir := setupTestAPI(t)
	seedRecords(t, repo, sourceDir, 3)

	w := doGet(t, r, "/api/v1/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var stats domain.RecordStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(3), stats.Unmoved)
}

func TestListFilesEndpoint(t *testing.T) {
	r, repo, migrator, sourceDir := setupTestAPI(t)
	seedRecords(t, repo, sourceDir, 5)

	_, err := migrator.MigrateAll(context.Background(), 2)
	require.NoError(t, err)

	// Default state is unmoved.
	w := doGet(t, r, "/api/v1/files")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		State string              `json:"state"`
		Count int                 `json:"count"`
		Files []domain.FileRecord `json:"files"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unmoved", body.State)
	assert.Equal(t, 3, body.Count)

	w = doGet(t, r, "/api/v1/files?state=moved")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	for _, f := range body.Files {
		assert.True(t, f.Moved)
	}

	w = doGet(t, r, "/api/v1/files?state=unmoved&limit=2&offset=2")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
}

func TestListFilesRejectsBadState(t *testing.T) {
	r, _, _, _ := setupTestAPI(t)

	w := doGet(t, r, "/api/v1/files?state=deleted")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
