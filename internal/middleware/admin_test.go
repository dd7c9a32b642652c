package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/atinyakov/CertTrack/internal/models"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

func TestRequireAdmin_Allows(t *testing.T) {
	for _, role := range []string{"ADMIN", "admin", " Admin "} {
		dummy := &dummyHandler{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/admin/drive-folders", nil)
		req.Header.Set(RoleHeader, role)

		RequireAdmin(dummy).ServeHTTP(rec, req)

		if !dummy.called {
			t.Errorf("role %q: expected next handler to be called", role)
			continue
		}
		if rec.Code != http.StatusOK {
			t.Errorf("role %q: expected 200 OK, got %d", role, rec.Code)
		}
		if got := GetRoleFromContext(dummy.ctx); got != models.RoleAdmin {
			t.Errorf("role %q: expected ADMIN in context, got %q", role, got)
		}
	}
}

func TestRequireAdmin_Rejects(t *testing.T) {
	for _, role := range []string{"", "USER", "administrator"} {
		dummy := &dummyHandler{}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/api/certificates/abc", nil)
		if role != "" {
			req.Header.Set(RoleHeader, role)
		}

		RequireAdmin(dummy).ServeHTTP(rec, req)

		if dummy.called {
			t.Errorf("role %q: did not expect next handler to be called", role)
		}
		if rec.Code != http.StatusForbidden {
			t.Errorf("role %q: expected 403, got %d", role, rec.Code)
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil || body["message"] == "" {
			t.Errorf("role %q: expected JSON message, got %q (%v)", role, rec.Body.String(), err)
		}
	}
}

func TestGetRoleFromContext_Empty(t *testing.T) {
	if got := GetRoleFromContext(context.Background()); got != "" {
		t.Errorf("expected empty role, got %q", got)
	}
}
