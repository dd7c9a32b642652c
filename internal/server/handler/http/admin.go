package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/atinyakov/CertTrack/internal/models"
	"go.uber.org/zap"
)

// FolderService defines the folder routing operations used by the admin
// endpoints.
type FolderService interface {
	Get(ctx context.Context) (models.FolderRouting, error)
	Update(ctx context.Context, upd models.FolderRoutingUpdate) (models.FolderRouting, error)
	FileInfo(ctx context.Context, id string) (*models.FileInfo, error)
}

// AdminHandler serves the Drive folder routing endpoints.
type AdminHandler struct {
	FolderService FolderService
	Log           *zap.Logger
}

// GetFolders handles GET /api/admin/drive-folders.
func (h *AdminHandler) GetFolders(w http.ResponseWriter, r *http.Request) {
	routing, err := h.FolderService.Get(r.Context())
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, routing)
}

// UpdateFolders handles PUT /api/admin/drive-folders. Omitted categories
// keep their current folder.
func (h *AdminHandler) UpdateFolders(w http.ResponseWriter, r *http.Request) {
	var upd models.FolderRoutingUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request")
		return
	}

	routing, err := h.FolderService.Update(r.Context(), upd)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, routing)
}

// FileInfo handles GET /api/drive/fileinfo?id=.
func (h *AdminHandler) FileInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.FolderService.FileInfo(r.Context(), r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}
