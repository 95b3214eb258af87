package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avionyx/flightd/pkg/auth"
	"github.com/avionyx/flightd/pkg/models"
)

func newTestTokens(t *testing.T) *auth.TokenService {
	t.Helper()
	priv, pub, err := auth.GenerateKeyPair(auth.DefaultKeyBits)
	require.NoError(t, err)
	svc, err := auth.NewFromPEM(priv, pub, "flightd-test", time.Hour)
	require.NoError(t, err)
	return svc
}

func newAuthHandler(t *testing.T) (*AuthHandler, *testEnv, *auth.TokenService) {
	t.Helper()
	env := newTestEnv()
	tokens := newTestTokens(t)
	return NewAuthHandler(env.stores(), tokens), env, tokens
}

func TestRegisterIssuesTokenPair(t *testing.T) {
	h, env, tokens := newAuthHandler(t)

	w := httptest.NewRecorder()
	h.Register(w, newRequest(t, http.MethodPost, "/auth/register",
		jsonBody(t, RegisterRequest{Name: "Ada", UniqueName: "ada", Password: "secret"}), nil))

	require.Equal(t, http.StatusOK, w.Code)
	var pair TokenPair
	decodeResponse(t, w, &pair)
	require.NotEmpty(t, pair.Token)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := tokens.Validate(pair.Token)
	require.NoError(t, err)
	assert.Equal(t, "ada", claims.UniqueName)
	assert.Empty(t, claims.Roles)

	user, err := env.users.GetByUniqueName(context.Background(), "ada")
	require.NoError(t, err)
	assert.True(t, models.CheckPassword(user, "secret"))

	code, err := env.codes.Get(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, code.UserID)
	assert.True(t, code.SingleUse)
}

func TestRegisterRejectsDuplicateUniqueName(t *testing.T) {
	h, _, _ := newAuthHandler(t)

	w := httptest.NewRecorder()
	h.Register(w, newRequest(t, http.MethodPost, "/auth/register",
		jsonBody(t, RegisterRequest{UniqueName: "ada", Password: "one"}), nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.Register(w, newRequest(t, http.MethodPost, "/auth/register",
		jsonBody(t, RegisterRequest{UniqueName: "ada", Password: "two"}), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogin(t *testing.T) {
	h, env, _ := newAuthHandler(t)

	user := &models.User{ID: "u1", Name: "Ada", UniqueName: "ada"}
	user.PasswordHash = models.HashPassword("secret", user.ID)
	require.NoError(t, env.users.Put(context.Background(), user))

	w := httptest.NewRecorder()
	h.Login(w, newRequest(t, http.MethodPost, "/auth/login",
		jsonBody(t, LoginRequest{UniqueName: "ada", Password: "secret"}), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var pair TokenPair
	decodeResponse(t, w, &pair)
	assert.NotEmpty(t, pair.Token)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	h, env, _ := newAuthHandler(t)

	user := &models.User{ID: "u1", UniqueName: "ada"}
	user.PasswordHash = models.HashPassword("secret", user.ID)
	require.NoError(t, env.users.Put(context.Background(), user))
	// Vessel accounts have no password and must not be loginable.
	require.NoError(t, env.users.Put(context.Background(), &models.User{
		ID: "vessel-1", UniqueName: "vessel-1", Roles: []string{auth.RoleVessel},
	}))

	cases := []LoginRequest{
		{UniqueName: "ada", Password: "wrong"},
		{UniqueName: "nobody", Password: "secret"},
		{UniqueName: "vessel-1", Password: ""},
	}
	for _, req := range cases {
		w := httptest.NewRecorder()
		h.Login(w, newRequest(t, http.MethodPost, "/auth/login", jsonBody(t, req), nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "login as %q", req.UniqueName)
	}
}

func TestRedeemRefreshCodeIsSingleUse(t *testing.T) {
	h, env, _ := newAuthHandler(t)

	user := &models.User{ID: "u1", UniqueName: "ada"}
	require.NoError(t, env.users.Put(context.Background(), user))
	require.NoError(t, env.codes.Put(context.Background(), &models.AuthorizationCode{
		ID: "refresh-1", UserID: "u1", SingleUse: true,
		ValidUntil: time.Now().Add(time.Hour),
	}))

	w := httptest.NewRecorder()
	h.Redeem(w, newRequest(t, http.MethodPost, "/auth/authorization_code_flow",
		jsonBody(t, RedeemRequest{Token: "refresh-1"}), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var pair TokenPair
	decodeResponse(t, w, &pair)
	assert.NotEmpty(t, pair.Token)
	// The redeemed code is gone; the pair carries its replacement.
	assert.NotEqual(t, "refresh-1", pair.RefreshToken)

	w = httptest.NewRecorder()
	h.Redeem(w, newRequest(t, http.MethodPost, "/auth/authorization_code_flow",
		jsonBody(t, RedeemRequest{Token: "refresh-1"}), nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRedeemStripsWhitespace(t *testing.T) {
	h, env, _ := newAuthHandler(t)

	require.NoError(t, env.users.Put(context.Background(), &models.User{ID: "u1", UniqueName: "ada"}))
	require.NoError(t, env.codes.Put(context.Background(), &models.AuthorizationCode{
		ID: "refresh-1", UserID: "u1", SingleUse: true,
		ValidUntil: time.Now().Add(time.Hour),
	}))

	w := httptest.NewRecorder()
	h.Redeem(w, newRequest(t, http.MethodPost, "/auth/authorization_code_flow",
		jsonBody(t, RedeemRequest{Token: " refresh\n-1\r\n"}), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRedeemExpiredCode(t *testing.T) {
	h, env, _ := newAuthHandler(t)

	require.NoError(t, env.users.Put(context.Background(), &models.User{ID: "u1", UniqueName: "ada"}))
	require.NoError(t, env.codes.Put(context.Background(), &models.AuthorizationCode{
		ID: "stale", UserID: "u1", SingleUse: true,
		ValidUntil: time.Now().Add(-time.Minute),
	}))

	w := httptest.NewRecorder()
	h.Redeem(w, newRequest(t, http.MethodPost, "/auth/authorization_code_flow",
		jsonBody(t, RedeemRequest{Token: "stale"}), nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Expired codes are purged on the failed redemption.
	_, err := env.codes.Get(context.Background(), "stale")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRedeemVesselCodeIsReusableAndCreatesAccount(t *testing.T) {
	h, env, tokens := newAuthHandler(t)

	require.NoError(t, env.codes.Put(context.Background(), &models.AuthorizationCode{
		ID: "boot-code", UserID: "vessel-1",
		ValidUntil: time.Now().Add(24 * time.Hour),
	}))

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.Redeem(w, newRequest(t, http.MethodPost, "/auth/authorization_code_flow",
			jsonBody(t, RedeemRequest{Token: "boot-code"}), nil))
		require.Equal(t, http.StatusOK, w.Code, "redemption %d", i+1)

		var pair TokenPair
		decodeResponse(t, w, &pair)
		claims, err := tokens.Validate(pair.Token)
		require.NoError(t, err)
		assert.True(t, claims.IsVessel())
		assert.Equal(t, "vessel-1", claims.UserID)
	}

	user, err := env.users.Get(context.Background(), "vessel-1")
	require.NoError(t, err)
	assert.Equal(t, []string{auth.RoleVessel}, user.Roles)
	assert.Empty(t, user.PasswordHash)
}

func TestRedeemScopedResources(t *testing.T) {
	h, env, tokens := newAuthHandler(t)

	require.NoError(t, env.users.Put(context.Background(), &models.User{ID: "u1", UniqueName: "ada"}))
	env.vessels.byID["vessel-1"] = &models.Vessel{
		ID: "vessel-1", Version: 1,
		Permissions: map[string]string{"u1": "write"},
	}
	env.flights.byID["flight-1"] = &models.Flight{
		ID: "flight-1", VesselID: "vessel-1", VesselVersion: 1,
		Permissions: map[string]string{},
	}
	require.NoError(t, env.codes.Put(context.Background(), &models.AuthorizationCode{
		ID: "code-1", UserID: "u1", SingleUse: true,
		ValidUntil: time.Now().Add(time.Hour),
	}))

	w := httptest.NewRecorder()
	h.Redeem(w, newRequest(t, http.MethodPost, "/auth/authorization_code_flow",
		jsonBody(t, RedeemRequest{Token: "code-1", Resources: []string{"flight-1"}}), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var pair TokenPair
	decodeResponse(t, w, &pair)
	claims, err := tokens.Validate(pair.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{"flight-1"}, claims.Resources)
	assert.True(t, claims.AllowsResource("flight-1"))
	assert.False(t, claims.AllowsResource("flight-2"))
}

func TestRedeemScopedResourcesRequireWrite(t *testing.T) {
	h, env, _ := newAuthHandler(t)

	require.NoError(t, env.users.Put(context.Background(), &models.User{ID: "u1", UniqueName: "ada"}))
	env.vessels.byID["vessel-1"] = &models.Vessel{
		ID: "vessel-1", Version: 1,
		Permissions: map[string]string{"u1": "read"},
	}
	env.flights.byID["flight-1"] = &models.Flight{
		ID: "flight-1", VesselID: "vessel-1", VesselVersion: 1,
		Permissions: map[string]string{},
	}
	require.NoError(t, env.codes.Put(context.Background(), &models.AuthorizationCode{
		ID: "code-1", UserID: "u1", SingleUse: true,
		ValidUntil: time.Now().Add(time.Hour),
	}))

	for _, resource := range []string{"flight-1", "no-such-flight"} {
		w := httptest.NewRecorder()
		h.Redeem(w, newRequest(t, http.MethodPost, "/auth/authorization_code_flow",
			jsonBody(t, RedeemRequest{Token: "code-1", Resources: []string{resource}}), nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "resource %q", resource)
	}
}

func TestRevoke(t *testing.T) {
	h, env, _ := newAuthHandler(t)

	require.NoError(t, env.codes.Put(context.Background(), &models.AuthorizationCode{
		ID: "code-1", UserID: "u1", ValidUntil: time.Now().Add(time.Hour),
	}))

	w := httptest.NewRecorder()
	h.Revoke(w, newRequest(t, http.MethodPost, "/auth/auth_code/rewoke",
		strings.NewReader("code-1\n"), nil))
	require.Equal(t, http.StatusOK, w.Code)

	var res map[string]bool
	decodeResponse(t, w, &res)
	assert.True(t, res["deleted"])

	_, err := env.codes.Get(context.Background(), "code-1")
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Revoking again reports nothing deleted but stays a 200.
	w = httptest.NewRecorder()
	h.Revoke(w, newRequest(t, http.MethodPost, "/auth/auth_code/rewoke",
		strings.NewReader("code-1"), nil))
	require.Equal(t, http.StatusOK, w.Code)
	decodeResponse(t, w, &res)
	assert.False(t, res["deleted"])
}

func TestPublicKeyServesPEM(t *testing.T) {
	h, _, tokens := newAuthHandler(t)

	w := httptest.NewRecorder()
	h.PublicKey(w, newRequest(t, http.MethodGet, "/auth/public_key", nil, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(tokens.PublicKeyPEM()), w.Body.String())
	assert.Contains(t, w.Body.String(), "PUBLIC KEY")
}

func TestVerifyEchoesClaims(t *testing.T) {
	h, _, _ := newAuthHandler(t)

	w := httptest.NewRecorder()
	h.Verify(w, newRequest(t, http.MethodGet, "/auth/verify_authenticated", nil,
		operatorClaims("u1")))
	require.Equal(t, http.StatusOK, w.Code)

	var res map[string]any
	decodeResponse(t, w, &res)
	assert.Equal(t, "u1", res["uid"])
}
