package handlers

import (
	"errors"
	"net/http"

	"github.com/avionyx/flightd/pkg/models"
)

// UserHandler serves user lookups for permission displays.
type UserHandler struct {
	stores Stores
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(stores Stores) *UserHandler {
	return &UserHandler{stores: stores}
}

// GetNames handles POST /v1/users/names: resolves user ids to display
// names, so clients can render permission maps. Unknown ids are skipped.
func (h *UserHandler) GetNames(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if !decodeJSONBody(w, r, &ids) {
		return
	}

	names := make(map[string]string, len(ids))
	for _, id := range ids {
		user, err := h.stores.Users.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			writeError(w, err)
			return
		}
		names[user.ID] = user.Name
	}
	if len(names) == 0 {
		writeError(w, models.ErrNotFound)
		return
	}
	WriteJSONOK(w, names)
}
