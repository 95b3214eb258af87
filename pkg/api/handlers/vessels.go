package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avionyx/flightd/internal/logger"
	"github.com/avionyx/flightd/pkg/api/middleware"
	"github.com/avionyx/flightd/pkg/auth"
	"github.com/avionyx/flightd/pkg/models"
)

// VesselHandler handles vessel registration, lookup and administration.
type VesselHandler struct {
	stores Stores
}

// NewVesselHandler creates a new VesselHandler.
func NewVesselHandler(stores Stores) *VesselHandler {
	return &VesselHandler{stores: stores}
}

// CreateVesselRequest is the request body for POST /v1/vessels/.
type CreateVesselRequest struct {
	Name string `json:"name"`
}

// Create handles POST /v1/vessels/. An operator creates an empty named
// vessel and becomes its owner; the paired machine account the vessel later
// authenticates with is created alongside.
func (h *VesselHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, models.ErrAuthMissing)
		return
	}

	var req CreateVesselRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	vessel := &models.Vessel{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Parts:       []models.VesselPart{},
		Permissions: map[string]string{claims.UserID: models.LevelOwner.String()},
	}
	stored, err := h.stores.Vessels.Upsert(r.Context(), vessel)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.ensureVesselAccount(r, stored); err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "vessel created",
		logger.VesselID(stored.ID),
		logger.UserID(claims.UserID))
	WriteJSONCreated(w, stored)
}

// RegisterVesselRequest is the request body for POST /v1/vessels/register.
type RegisterVesselRequest struct {
	ID    string              `json:"_id"`
	Name  string              `json:"name"`
	Parts []models.VesselPart `json:"parts"`
}

// Register handles POST /v1/vessels/register. A vessel transmits its part
// structure so clients know what telemetry it provides; structural changes
// bump the version and snapshot the previous state. The caller must be the
// vessel itself or one of its owners.
func (h *VesselHandler) Register(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, models.ErrAuthMissing)
		return
	}

	var req RegisterVesselRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.ID == "" {
		BadRequest(w, "_id is required")
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	if claims.UserID != req.ID {
		_, level, err := h.stores.vesselWithLevel(r.Context(), claims, req.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := requireLevel(level, models.LevelOwner); err != nil {
			writeError(w, err)
			return
		}
	} else if !claims.IsVessel() {
		writeError(w, models.ErrPermissionDenied)
		return
	}

	parts := make([]models.VesselPart, len(req.Parts))
	seen := make(map[string]bool, len(req.Parts))
	for i, part := range req.Parts {
		if part.ID == "" {
			part.ID = uuid.New().String()
		}
		if seen[part.ID] {
			BadRequest(w, "duplicate part id "+part.ID)
			return
		}
		seen[part.ID] = true
		parts[i] = part
	}

	vessel := &models.Vessel{
		ID:    req.ID,
		Name:  req.Name,
		Parts: parts,
	}
	stored, err := h.stores.Vessels.Upsert(r.Context(), vessel)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.ensureVesselAccount(r, stored); err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "vessel registered",
		logger.VesselID(stored.ID),
		logger.VesselVersion(stored.Version))
	WriteJSONOK(w, stored)
}

// List handles GET /v1/vessels/. Only vessels the caller may at least view
// are returned; an optional name query narrows the result.
func (h *VesselHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	var (
		vessels []*models.Vessel
		err     error
	)
	if name := r.URL.Query().Get("name"); name != "" {
		vessels, err = h.stores.Vessels.ListByName(r.Context(), name)
	} else {
		vessels, err = h.stores.Vessels.List(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}

	visible := make([]*models.Vessel, 0, len(vessels))
	for _, vessel := range vessels {
		if claims != nil && !claims.AllowsResource(vessel.ID) {
			continue
		}
		if models.VesselLevel(vessel, userID(claims)) >= models.LevelView {
			visible = append(visible, vessel)
		}
	}
	WriteJSONOK(w, visible)
}

// Get handles GET /v1/vessels/{vesselId}.
func (h *VesselHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	vessel, level, err := h.stores.vesselWithLevel(r.Context(), claims, chi.URLParam(r, "vesselId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelView); err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, vessel)
}

// GetVersion handles GET /v1/vessels/{vesselId}/versions/{version}.
// Permissions are resolved against the current vessel; historic snapshots
// keep the structure, not the grants.
func (h *VesselHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	vesselID := chi.URLParam(r, "vesselId")

	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		BadRequest(w, "Invalid version")
		return
	}

	_, level, err := h.stores.vesselWithLevel(r.Context(), claims, vesselID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelView); err != nil {
		writeError(w, err)
		return
	}

	vessel, err := h.stores.Vessels.GetVersion(r.Context(), vesselID, version)
	if err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, vessel)
}

// RenameVesselRequest is the request body for PUT /v1/vessels/{vesselId}.
type RenameVesselRequest struct {
	Name string `json:"name"`
}

// Rename handles PUT /v1/vessels/{vesselId}. Renaming is administrative and
// does not bump the version.
func (h *VesselHandler) Rename(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())

	var req RenameVesselRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	vessel, level, err := h.stores.vesselWithLevel(r.Context(), claims, chi.URLParam(r, "vesselId"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelOwner); err != nil {
		writeError(w, err)
		return
	}

	vessel.Name = req.Name
	if err := h.stores.Vessels.Replace(r.Context(), vessel); err != nil {
		writeError(w, err)
		return
	}
	WriteJSONOK(w, vessel)
}

// Delete handles DELETE /v1/vessels/{vesselId}, cascading over the vessel's
// flights, telemetry and commands.
func (h *VesselHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	vesselID := chi.URLParam(r, "vesselId")

	_, level, err := h.stores.vesselWithLevel(r.Context(), claims, vesselID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelOwner); err != nil {
		writeError(w, err)
		return
	}

	deleted, err := h.stores.Cascade.DeleteVesselCascade(r.Context(), vesselID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		InternalServerError(w, "Failed to delete vessel")
		return
	}
	WriteNoContent(w)
}

// SetPermissionRequest is the request body for permission grants. Users are
// addressed by their unique handle, not their id.
type SetPermissionRequest struct {
	UniqueUserName string `json:"unique_user_name"`
	Permission     string `json:"permission"`
}

// SetPermission handles POST /v1/vessels/{vesselId}/permissions. Granting
// "none" revokes; a vessel can never lose its last owner.
func (h *VesselHandler) SetPermission(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	vesselID := chi.URLParam(r, "vesselId")

	var req SetPermissionRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if !models.ValidLevelName(req.Permission) {
		BadRequest(w, "Invalid permission "+req.Permission)
		return
	}

	vessel, have, err := h.stores.vesselWithLevel(r.Context(), claims, vesselID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(have, models.LevelOwner); err != nil {
		writeError(w, err)
		return
	}

	target, err := h.stores.Users.GetByUniqueName(r.Context(), req.UniqueUserName)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			BadRequest(w, "User you are trying to give permission to does not exist")
			return
		}
		writeError(w, err)
		return
	}

	models.SetVesselPermission(vessel, target.ID, models.ParseLevel(req.Permission))
	if err := h.stores.Vessels.Replace(r.Context(), vessel); err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "vessel permission set",
		logger.VesselID(vesselID),
		logger.UserID(target.ID))
	WriteJSONOK(w, vessel)
}

// CreateAuthCodeRequest is the request body for vessel auth-code minting.
type CreateAuthCodeRequest struct {
	ValidUntil time.Time `json:"valid_until"`
}

// CreateAuthCode handles POST /v1/vessels/{vesselId}/auth_codes. Owners
// mint the reusable code a vessel boots with; redeeming it yields a
// vessel-role token.
func (h *VesselHandler) CreateAuthCode(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	vesselID := chi.URLParam(r, "vesselId")

	vessel, level, err := h.stores.vesselWithLevel(r.Context(), claims, vesselID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelOwner); err != nil {
		writeError(w, err)
		return
	}

	var req CreateAuthCodeRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	now := time.Now()
	if req.ValidUntil.IsZero() || req.ValidUntil.Before(now) {
		BadRequest(w, "valid_until must be in the future")
		return
	}
	if req.ValidUntil.After(now.Add(maxCodeValidity)) {
		BadRequest(w, "Maximum allowed date the code is valid until is one year")
		return
	}

	if err := h.ensureVesselAccount(r, vessel); err != nil {
		writeError(w, err)
		return
	}

	id, err := models.GenerateAuthCode()
	if err != nil {
		writeError(w, err)
		return
	}
	code := &models.AuthorizationCode{
		ID:         id,
		UserID:     vesselID,
		SingleUse:  false,
		ValidUntil: req.ValidUntil,
	}
	if err := h.stores.AuthCodes.Put(r.Context(), code); err != nil {
		writeError(w, err)
		return
	}

	logger.InfoCtx(r.Context(), "vessel auth code minted", logger.VesselID(vesselID))
	WriteJSONCreated(w, code)
}

// ListAuthCodes handles GET /v1/vessels/{vesselId}/auth_codes.
func (h *VesselHandler) ListAuthCodes(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	vesselID := chi.URLParam(r, "vesselId")

	_, level, err := h.stores.vesselWithLevel(r.Context(), claims, vesselID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := requireLevel(level, models.LevelOwner); err != nil {
		writeError(w, err)
		return
	}

	codes, err := h.stores.AuthCodes.ListForUser(r.Context(), vesselID)
	if err != nil {
		writeError(w, err)
		return
	}
	if codes == nil {
		codes = []*models.AuthorizationCode{}
	}
	WriteJSONOK(w, codes)
}

// ensureVesselAccount creates the vessel's machine principal on first use
// and guarantees it can write telemetry on its own vessel. The account has
// no password; it only ever authenticates through redeemed codes.
func (h *VesselHandler) ensureVesselAccount(r *http.Request, vessel *models.Vessel) error {
	_, err := h.stores.Users.Get(r.Context(), vessel.ID)
	if errors.Is(err, models.ErrNotFound) {
		err = h.stores.Users.Put(r.Context(), &models.User{
			ID:         vessel.ID,
			Name:       vessel.Name,
			UniqueName: vessel.ID,
			Roles:      []string{auth.RoleVessel},
		})
	}
	if err != nil {
		return err
	}

	if models.VesselLevel(vessel, vessel.ID) < models.LevelWrite {
		models.SetVesselPermission(vessel, vessel.ID, models.LevelWrite)
		return h.stores.Vessels.Replace(r.Context(), vessel)
	}
	return nil
}
