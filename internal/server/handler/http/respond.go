package http

import (
	"encoding/json"
	"net/http"

	"github.com/atinyakov/CertTrack/internal/apperr"
	"go.uber.org/zap"
)

type messageResponse struct {
	Message string `json:"message"`
}

type okResponse struct {
	OK      bool   `json:"ok"`
	Deleted *int64 `json:"deleted,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeError maps err onto a status and a client-safe message. Server-side
// failures are logged with their cause.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := apperr.StatusCode(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeMessage(w, status, apperr.PublicMessage(err))
}
