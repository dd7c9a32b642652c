package http

import (
	"net/http"

	"github.com/atinyakov/CertTrack/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter constructs and returns an HTTP handler that serves
// the CertTrack API under /api.
//
// Routes:
//
//	GET    /api/certificates                      → certs.List
//	POST   /api/certificates                      → certs.Create
//	PUT    /api/certificates/{id}                 → certs.Update (admin)
//	DELETE /api/certificates/bulk                 → certs.DeleteBulk
//	GET    /api/auth/users                        → auth.Users
//	POST   /api/auth/login                        → auth.Login
//	PUT    /api/admin/users/{username}/password   → auth.ChangePassword (admin)
//	PUT    /api/admin/users/password              → auth.ResetPassword (admin)
//	GET    /api/admin/drive-folders               → admin.GetFolders (admin)
//	PUT    /api/admin/drive-folders               → admin.UpdateFolders (admin)
//	GET    /api/drive/fileinfo                    → admin.FileInfo (admin)
//	GET    /healthz
func NewRouter(
	certs *CertificateHandler,
	auth *AuthHandler,
	admin *AdminHandler,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  func(*http.Request, string) bool { return true },
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RoleHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	// Bodies must be JSON, multipart or url-encoded forms.
	r.Use(chiMiddleware.AllowContentType("application/json", "multipart/form-data", "application/x-www-form-urlencoded"))
	r.Use(middleware.WithRequestLogging(logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, okResponse{OK: true})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/certificates", certs.List)
		r.Post("/certificates", certs.Create)
		r.Delete("/certificates/bulk", certs.DeleteBulk)

		r.Get("/auth/users", auth.Users)
		r.Post("/auth/login", auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin)

			r.Put("/certificates/{id}", certs.Update)
			r.Put("/admin/users/{username}/password", auth.ChangePassword)
			r.Put("/admin/users/password", auth.ResetPassword)
			r.Get("/admin/drive-folders", admin.GetFolders)
			r.Put("/admin/drive-folders", admin.UpdateFolders)
			r.Get("/drive/fileinfo", admin.FileInfo)
		})
	})

	return r
}
