package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Environment(t *testing.T) {
	t.Setenv("CONFIG", "")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PORT", "5050")
	t.Setenv("GOOGLE_OAUTH_REFRESH_TOKEN", "rt-1")
	t.Setenv("DRIVE_FOLDER_INF", "inf-folder")
	t.Setenv("DRIVE_SHARE_TYPE", "domain")
	t.Setenv("DRIVE_DOMAIN", "example.com")

	o := Default()
	o.Config = ""
	require.NoError(t, Load(o))

	assert.Equal(t, StoreMemory, o.StoreDriver)
	assert.Equal(t, ":5050", o.Addr)
	assert.Equal(t, "rt-1", o.Google.RefreshToken)
	assert.Equal(t, "inf-folder", o.Drive.ReportFolderID)
	assert.Equal(t, "domain", o.Drive.ShareType)
	assert.Equal(t, "reader", o.Drive.ShareRole)
	assert.Equal(t, "example.com", o.Drive.ShareDomain)
}

func TestLoad_ServerAddressWinsOverPort(t *testing.T) {
	t.Setenv("CONFIG", "")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("PORT", "5050")
	t.Setenv("SERVER_ADDRESS", "127.0.0.1:9000")

	o := Default()
	o.Config = ""
	require.NoError(t, Load(o))
	assert.Equal(t, "127.0.0.1:9000", o.Addr)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{"store_driver":"postgres","database_dsn":"postgres://x","drive":{"parent_folder_id":"root-folder"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("CONFIG", path)

	o := Default()
	require.NoError(t, Load(o))
	assert.Equal(t, StorePostgres, o.StoreDriver)
	assert.Equal(t, "postgres://x", o.DatabaseDSN)
	assert.Equal(t, "root-folder", o.Drive.ParentFolderID)
	assert.Equal(t, "anyone", o.Drive.ShareType)
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		driver  string
		wantErr string
	}{
		{"mongo without uri", StoreMongo, "MONGODB_URI"},
		{"postgres without dsn", StorePostgres, "DATABASE_DSN"},
		{"unknown driver", "redis", "unknown store driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG", "")
			t.Setenv("STORE_DRIVER", tt.driver)
			t.Setenv("MONGODB_URI", "")
			t.Setenv("DATABASE_DSN", "")

			o := Default()
			o.Config = ""
			err := Load(o)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
