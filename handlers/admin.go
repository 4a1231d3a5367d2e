// Package handlers: AdminHandler, is_admin kullanıcıların hesap yönetimi.
//
// AdminMiddleware tarafından korunur. Thin handler pattern:
// parse request → call service → return response.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/custodian/models"
	"github.com/akinalp/custodian/pkg"
	"github.com/akinalp/custodian/services"
)

// AdminHandler, lifecycle ve bulk endpoint'lerini yönetir.
type AdminHandler struct {
	lifecycleService services.LifecycleService
	bulkService      services.BulkService
}

// NewAdminHandler, constructor.
func NewAdminHandler(lifecycleService services.LifecycleService, bulkService services.BulkService) *AdminHandler {
	return &AdminHandler{
		lifecycleService: lifecycleService,
		bulkService:      bulkService,
	}
}

// Lifecycle: POST /api/admin/users/{id}/lifecycle
// Body: { "event": "deactivate" | "reactivate" | "soft_delete" | "restore" | "anonymize" }
//
// Tablo dışı geçiş → 409, bilinmeyen kullanıcı → 404.
func (h *AdminHandler) Lifecycle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "user id is required")
		return
	}

	var req models.LifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.lifecycleService.Transition(r.Context(), id, req.Event)
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, models.LifecycleResponse{UserID: id, State: state})
}

// Bulk: POST /api/admin/users/bulk
// Body: { "kind": "create" | "update" | "delete", "items": [...] }
//
// Kısmi başarı normaldir: response her zaman 200 + succeeded/failed listeleri.
func (h *AdminHandler) Bulk(w http.ResponseWriter, r *http.Request) {
	var req models.BulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := req.Validate(); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.bulkService.Apply(r.Context(), req.Kind, req.Items)
	pkg.JSON(w, http.StatusOK, result)
}
