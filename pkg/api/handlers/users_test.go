package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avionyx/flightd/pkg/models"
)

func TestGetNames(t *testing.T) {
	env := newTestEnv()
	h := NewUserHandler(env.stores())
	require.NoError(t, env.users.Put(context.Background(),
		&models.User{ID: "u1", Name: "Ada", UniqueName: "ada"}))
	require.NoError(t, env.users.Put(context.Background(),
		&models.User{ID: "u2", Name: "Bob", UniqueName: "bob"}))

	w := httptest.NewRecorder()
	h.GetNames(w, newRequest(t, http.MethodPost, "/v1/users/names",
		jsonBody(t, []string{"u1", "u2", "ghost"}), operatorClaims("u1")))
	require.Equal(t, http.StatusOK, w.Code)

	var names map[string]string
	decodeResponse(t, w, &names)
	assert.Equal(t, map[string]string{"u1": "Ada", "u2": "Bob"}, names)
}

func TestGetNamesAllUnknown(t *testing.T) {
	env := newTestEnv()
	h := NewUserHandler(env.stores())

	w := httptest.NewRecorder()
	h.GetNames(w, newRequest(t, http.MethodPost, "/v1/users/names",
		jsonBody(t, []string{"ghost"}), operatorClaims("u1")))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func TestHealthProbes(t *testing.T) {
	h := NewHealthHandler(fakePinger{})

	w := httptest.NewRecorder()
	h.Liveness(w, newRequest(t, http.MethodGet, "/health", nil, nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.Readiness(w, newRequest(t, http.MethodGet, "/health/ready", nil, nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadinessReportsStorageOutage(t *testing.T) {
	h := NewHealthHandler(fakePinger{err: errors.New("connection refused")})

	w := httptest.NewRecorder()
	h.Readiness(w, newRequest(t, http.MethodGet, "/health/ready", nil, nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	var res map[string]string
	decodeResponse(t, w, &res)
	assert.Equal(t, "unavailable", res["status"])
}
