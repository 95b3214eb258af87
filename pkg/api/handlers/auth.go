package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/avionyx/flightd/internal/logger"
	"github.com/avionyx/flightd/pkg/api/middleware"
	"github.com/avionyx/flightd/pkg/auth"
	"github.com/avionyx/flightd/pkg/models"
)

// Validity bounds for authorization codes. Refresh codes rotate monthly;
// vessel codes are capped at one year from mint.
const (
	refreshCodeValidity = 30 * 24 * time.Hour
	maxCodeValidity     = 365 * 24 * time.Hour
)

// AuthHandler handles registration, login and token management.
type AuthHandler struct {
	stores Stores
	tokens *auth.TokenService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(stores Stores, tokens *auth.TokenService) *AuthHandler {
	return &AuthHandler{stores: stores, tokens: tokens}
}

// TokenPair carries an access token plus the refresh code that mints the
// next one.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// issuePair mints an access token scoped to resources together with a fresh
// single-use refresh code.
func (h *AuthHandler) issuePair(ctx context.Context, user *models.User, resources []string) (*TokenPair, error) {
	token, err := h.tokens.IssueToken(user, 0, resources)
	if err != nil {
		return nil, err
	}

	refresh, err := models.GenerateAuthCode()
	if err != nil {
		return nil, err
	}
	code := &models.AuthorizationCode{
		ID:         refresh,
		UserID:     user.ID,
		SingleUse:  true,
		ValidUntil: time.Now().Add(refreshCodeValidity),
	}
	if err := h.stores.AuthCodes.Put(ctx, code); err != nil {
		return nil, err
	}
	return &TokenPair{Token: token, RefreshToken: refresh}, nil
}

// RegisterRequest is the request body for POST /auth/register.
type RegisterRequest struct {
	Name       string `json:"name"`
	UniqueName string `json:"unique_name"`
	Password   string `json:"pw"`
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.UniqueName == "" || req.Password == "" {
		BadRequest(w, "unique_name and pw are required")
		return
	}

	user := &models.User{
		ID:         uuid.New().String(),
		Name:       req.Name,
		UniqueName: req.UniqueName,
	}
	user.PasswordHash = models.HashPassword(req.Password, user.ID)

	// The unique index on unique_name turns a duplicate handle into
	// ErrConflict.
	if err := h.stores.Users.Put(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}

	pair, err := h.issuePair(r.Context(), user, nil)
	if err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "user registered", logger.UserID(user.ID))
	WriteJSONOK(w, pair)
}

// LoginRequest is the request body for POST /auth/login.
type LoginRequest struct {
	UniqueName string `json:"unique_name"`
	Password   string `json:"pw"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	user, err := h.stores.Users.GetByUniqueName(r.Context(), req.UniqueName)
	if err != nil {
		// Do not reveal whether the account exists.
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, models.ErrAuthInvalid)
			return
		}
		writeError(w, err)
		return
	}
	if user.PasswordHash == "" || !models.CheckPassword(user, req.Password) {
		writeError(w, models.ErrAuthInvalid)
		return
	}

	pair, err := h.issuePair(r.Context(), user, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, pair)
}

// RedeemRequest is the request body for POST /auth/authorization_code_flow.
// Resources optionally narrow the minted token to specific flights.
type RedeemRequest struct {
	Token     string   `json:"token"`
	Resources []string `json:"resources,omitempty"`
}

// Redeem handles POST /auth/authorization_code_flow: exchanges an
// authorization code (or refresh token) for a fresh token pair. Vessel users
// are created implicitly on their first redemption.
func (h *AuthHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	// Codes get pasted around; strip stray whitespace.
	value := strings.NewReplacer("\n", "", "\r", "", " ", "").Replace(req.Token)

	code, err := h.stores.AuthCodes.Get(r.Context(), value)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(w, models.ErrAuthInvalid)
			return
		}
		writeError(w, err)
		return
	}
	if code.Expired(time.Now()) {
		_, _ = h.stores.AuthCodes.Delete(r.Context(), code.ID)
		writeError(w, models.ErrTokenExpired)
		return
	}

	user, err := h.userForCode(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	resources := req.Resources
	if len(resources) == 0 {
		resources = code.Resources
	}
	for _, flightID := range resources {
		if err := h.checkResourceGrant(r.Context(), user, flightID); err != nil {
			writeError(w, err)
			return
		}
	}

	if code.SingleUse {
		deleted, err := h.stores.AuthCodes.Delete(r.Context(), code.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		// Losing the race means someone else already redeemed.
		if !deleted {
			writeError(w, models.ErrAuthInvalid)
			return
		}
	}

	pair, err := h.issuePair(r.Context(), user, resources)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, pair)
}

// userForCode resolves the code's principal, creating the vessel account on
// first redemption.
func (h *AuthHandler) userForCode(ctx context.Context, code *models.AuthorizationCode) (*models.User, error) {
	user, err := h.stores.Users.Get(ctx, code.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	user = &models.User{
		ID:         code.UserID,
		UniqueName: code.UserID,
		Roles:      []string{auth.RoleVessel},
	}
	if err := h.stores.Users.Put(ctx, user); err != nil {
		return nil, err
	}
	logger.InfoCtx(ctx, "vessel user created on redemption", logger.UserID(user.ID))
	return user, nil
}

// checkResourceGrant verifies the principal holds write on the flight a
// token scope names. Failures surface as auth errors, not permission ones;
// the caller is still mid-handshake.
func (h *AuthHandler) checkResourceGrant(ctx context.Context, user *models.User, flightID string) error {
	flight, err := h.stores.Flights.Get(ctx, flightID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrAuthInvalid
		}
		return err
	}
	vessel, err := h.stores.Vessels.Get(ctx, flight.VesselID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrAuthInvalid
		}
		return err
	}
	if models.FlightLevel(flight, vessel, user.ID) < models.LevelWrite {
		return models.ErrAuthInvalid
	}
	return nil
}

// Revoke handles POST /auth/auth_code/rewoke. The body is the raw code;
// holding the code is authorization enough.
func (h *AuthHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		BadRequest(w, "Invalid request body")
		return
	}
	value := strings.TrimSpace(string(body))
	if value == "" {
		BadRequest(w, "Code is required")
		return
	}

	deleted, err := h.stores.AuthCodes.Delete(r.Context(), value)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, map[string]bool{"deleted": deleted})
}

// PublicKey handles GET /auth/public_key, serving the PEM key external
// services verify tokens with.
func (h *AuthHandler) PublicKey(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write(h.tokens.PublicKeyPEM())
}

// Verify handles GET /auth/verify_authenticated, echoing the validated
// claims.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, models.ErrAuthMissing)
		return
	}
	WriteJSONOK(w, map[string]any{
		"uid":         claims.UserID,
		"unique_name": claims.UniqueName,
		"name":        claims.Name,
		"roles":       claims.Roles,
		"resources":   claims.Resources,
		"expires_at":  claims.ExpiresAt,
	})
}
