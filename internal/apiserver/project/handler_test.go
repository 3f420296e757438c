package project

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wordpilot/internal/shared/model"
	sqlitedriver "wordpilot/internal/shared/storage/driver/sqlite"
	"wordpilot/internal/shared/storage/repository"
)

func newTestMux(t *testing.T) (*http.ServeMux, *repository.Store) {
	t.Helper()
	db, err := sqlitedriver.Open(":memory:")
	require.NoError(t, err)
	dialect := sqlitedriver.NewDialect()
	require.NoError(t, dialect.AutoMigrate(db))
	store := repository.NewStore(db, dialect)
	t.Cleanup(func() { store.Close() })

	mux := http.NewServeMux()
	NewHandler(store, nil).RegisterRoutes(mux)
	return mux, store
}

func doRequest(mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateProject(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doRequest(mux, http.MethodPost, "/api/v1/projects",
		`{"user_id": "user-1", "title": "Gulf Coast History", "description": "Shipwrecks of the gulf"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.Project
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.True(t, strings.HasPrefix(created.ID, "proj-"))
	assert.Equal(t, "user-1", created.UserID)
	assert.Equal(t, "Gulf Coast History", created.Title)
}

func TestCreateProjectValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json}`},
		{"missing user", `{"title": "A Book"}`},
		{"missing title", `{"user_id": "user-1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(mux, http.MethodPost, "/api/v1/projects", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetProject(t *testing.T) {
	mux, store := newTestMux(t)
	seedProject(t, store, "proj-abc", "user-1")

	rec := doRequest(mux, http.MethodGet, "/api/v1/projects/proj-abc", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(mux, http.MethodGet, "/api/v1/projects/proj-missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListProjectsByUser(t *testing.T) {
	mux, store := newTestMux(t)
	seedProject(t, store, "proj-1", "user-1")
	seedProject(t, store, "proj-2", "user-1")
	seedProject(t, store, "proj-3", "user-2")

	rec := doRequest(mux, http.MethodGet, "/api/v1/projects?user_id=user-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)

	rec = doRequest(mux, http.MethodGet, "/api/v1/projects", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateProject(t *testing.T) {
	mux, store := newTestMux(t)
	seedProject(t, store, "proj-1", "user-1")

	rec := doRequest(mux, http.MethodPut, "/api/v1/projects/proj-1", `{"title": "New Title"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := store.GetProject(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Equal(t, "New Title", got.Title)
	// 未提供的字段保持不变
	assert.Equal(t, "draft description", got.Description)
}

func TestDeleteProject(t *testing.T) {
	mux, store := newTestMux(t)
	seedProject(t, store, "proj-1", "user-1")

	rec := doRequest(mux, http.MethodDelete, "/api/v1/projects/proj-1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	got, err := store.GetProject(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGenerateID(t *testing.T) {
	id := generateID("proj")
	assert.True(t, strings.HasPrefix(id, "proj-"))
	assert.Len(t, id, len("proj")+1+12)
	assert.NotEqual(t, id, generateID("proj"))
}

func seedProject(t *testing.T, store *repository.Store, id, userID string) {
	t.Helper()
	now := time.Now().Truncate(time.Second)
	require.NoError(t, store.CreateProject(context.Background(), &model.Project{
		ID: id, UserID: userID, Title: "Seed", Description: "draft description",
		CreatedAt: now, UpdatedAt: now,
	}))
}
