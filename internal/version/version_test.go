package version_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nulzo/polychat/internal/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func releaseServer(tag string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name":"` + tag + `"}`))
	}))
}

func TestCheckForUpdates(t *testing.T) {
	tests := []struct {
		current  string
		latest   string
		outdated bool
	}{
		{"v0.1.0", "v0.2.0", true},
		{"v0.2.0", "v0.2.0", false},
		{"1.10.0", "v1.9.3", false},
	}

	for _, tt := range tests {
		t.Run(tt.current+"->"+tt.latest, func(t *testing.T) {
			srv := releaseServer(tt.latest)
			defer srv.Close()

			upd, err := version.CheckForUpdates(context.Background(), srv.Client(), srv.URL, tt.current)
			require.NoError(t, err)
			assert.Equal(t, tt.outdated, upd.Outdated)
			assert.Equal(t, tt.latest, upd.Latest)
		})
	}
}

func TestCheckForUpdates_BadTag(t *testing.T) {
	srv := releaseServer("nightly")
	defer srv.Close()

	_, err := version.CheckForUpdates(context.Background(), srv.Client(), srv.URL, "v0.1.0")
	assert.Error(t, err)
}
