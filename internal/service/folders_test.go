package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atinyakov/CertTrack/internal/apperr"
	"github.com/atinyakov/CertTrack/internal/models"
	"github.com/atinyakov/CertTrack/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInspector struct {
	files map[string]models.FileInfo
	calls []string
}

func (f *fakeInspector) Describe(_ context.Context, id string) (*models.FileInfo, error) {
	f.calls = append(f.calls, id)
	info, ok := f.files[id]
	if !ok {
		return nil, errors.New("googleapi: Error 404: File not found")
	}
	return &info, nil
}

func newFolderFixture() (*FolderService, *repository.MemoryStore, *fakeInspector) {
	store := repository.NewMemoryStore()
	insp := &fakeInspector{files: map[string]models.FileInfo{
		"f-report": {ID: "f-report", Name: "Reports", MimeType: models.FolderMimeType},
		"f-format": {ID: "f-format", Name: "Formats", MimeType: models.FolderMimeType},
		"doc":      {ID: "doc", Name: "scan.pdf", MimeType: "application/pdf"},
	}}
	defaults := models.FolderRouting{Report: "env-report"}
	return NewFolderService(store, insp, defaults, nil), store, insp
}

func TestFolderGet_FallsBackToDefaults(t *testing.T) {
	svc, store, _ := newFolderFixture()

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.FolderRouting{Report: "env-report"}, got)

	require.NoError(t, store.SaveFolderRouting(context.Background(), models.FolderRouting{Format: "x"}, time.Now()))
	got, err = svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.FolderRouting{Format: "x"}, got)
}

func TestFolderUpdate_MergesAndValidates(t *testing.T) {
	svc, store, insp := newFolderFixture()
	insp.files["env-report"] = models.FileInfo{ID: "env-report", MimeType: models.FolderMimeType}

	got, err := svc.Update(context.Background(), models.FolderRoutingUpdate{Format: strPtr("f-format")})
	require.NoError(t, err)
	assert.Equal(t, models.FolderRouting{Report: "env-report", Format: "f-format"}, got)
	assert.ElementsMatch(t, []string{"env-report", "f-format"}, insp.calls)

	stored, err := store.GetFolderRouting(context.Background())
	require.NoError(t, err)
	assert.Equal(t, got, stored.Value)

	// Clearing a category is allowed and skips the lookup.
	got, err = svc.Update(context.Background(), models.FolderRoutingUpdate{Report: strPtr("")})
	require.NoError(t, err)
	assert.Equal(t, models.FolderRouting{Format: "f-format"}, got)
}

func TestFolderUpdate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		upd  models.FolderRoutingUpdate
		msg  string
	}{
		{"unknown id", models.FolderRoutingUpdate{Report: strPtr(""), Certificate: strPtr("missing")}, "invalid id for certificate"},
		{"not a folder", models.FolderRoutingUpdate{Report: strPtr("doc")}, "report is not a folder"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _ := newFolderFixture()

			_, err := svc.Update(context.Background(), tt.upd)
			require.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)
			assert.Equal(t, tt.msg, apperr.PublicMessage(err))

			_, err = store.GetFolderRouting(context.Background())
			assert.ErrorIs(t, err, models.ErrRecordNotFound, "nothing may be stored")
		})
	}
}

func TestFileInfo(t *testing.T) {
	svc, _, _ := newFolderFixture()

	_, err := svc.FileInfo(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.KindValidation), "got %v", err)

	_, err = svc.FileInfo(context.Background(), "nope")
	assert.True(t, apperr.Is(err, apperr.KindNotFound), "got %v", err)

	info, err := svc.FileInfo(context.Background(), "f-report")
	require.NoError(t, err)
	assert.True(t, info.IsFolder())
	assert.Equal(t, "Reports", info.Name)
}
