package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avionyx/flightd/pkg/models"
)

func newTestService(t *testing.T) *TokenService {
	t.Helper()
	privatePEM, publicPEM, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	svc, err := NewFromPEM(privatePEM, publicPEM, "flightd-test", 0)
	require.NoError(t, err)
	return svc
}

func testUser() *models.User {
	return &models.User{
		ID:         "user-1",
		Name:       "Alice",
		UniqueName: "alice",
		Roles:      []string{"operator"},
	}
}

func TestIssueAndValidate(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.IssueToken(testUser(), 0, nil)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice", claims.UniqueName)
	assert.Equal(t, "Alice", claims.Name)
	assert.Equal(t, []string{"operator"}, claims.Roles)
	assert.Equal(t, "flightd-test", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(DefaultTokenDuration), claims.ExpiresAt.Time, time.Minute)
}

func TestValidateRejectsForeignKey(t *testing.T) {
	svc := newTestService(t)
	other := newTestService(t)

	token, err := other.IssueToken(testUser(), 0, nil)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, models.ErrAuthInvalid)
}

func TestValidateRejectsExpired(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.IssueToken(testUser(), time.Nanosecond, nil)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, models.ErrTokenExpired)
}

func TestValidateRejectsWrongIssuer(t *testing.T) {
	privatePEM, publicPEM, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	minter, err := NewFromPEM(privatePEM, publicPEM, "someone-else", 0)
	require.NoError(t, err)
	verifier, err := NewFromPEM(privatePEM, publicPEM, "flightd-test", 0)
	require.NoError(t, err)

	token, err := minter.IssueToken(testUser(), 0, nil)
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, models.ErrAuthInvalid)
}

func TestValidateRejectsUnsignedAlg(t *testing.T) {
	svc := newTestService(t)

	// alg=none with otherwise plausible claims must never validate.
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "flightd-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "user-1",
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, models.ErrAuthInvalid)
}

func TestIssueTokenClampsDuration(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.IssueToken(testUser(), 10*365*24*time.Hour, nil)
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(MaxTokenDuration), claims.ExpiresAt.Time, time.Minute)
}

func TestResourceScoping(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.IssueToken(testUser(), 0, []string{"vessel-1", "flight-9"})
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.True(t, claims.AllowsResource("vessel-1"))
	assert.False(t, claims.AllowsResource("vessel-2"))

	unscoped := &Claims{}
	assert.True(t, unscoped.AllowsResource("anything"))
}

func TestServerToken(t *testing.T) {
	svc := newTestService(t)

	token, err := svc.ServerToken()
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.True(t, claims.HasRole(RoleServer))
	assert.False(t, claims.IsVessel())
}
