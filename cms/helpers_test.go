package cms_test

import (
	"archive/zip"
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/cms-auditor/archive"
	"github.com/aquasecurity/cms-auditor/cms"
	"github.com/aquasecurity/cms-auditor/console"
	"github.com/aquasecurity/cms-auditor/vulnerability"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// serve answers each path with its body, a redirect for "->target" bodies,
// and a 404 otherwise.
func serve(t *testing.T, routes map[string][]byte) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if bytes.HasPrefix(body, []byte("->")) {
			http.Redirect(w, r, string(body[2:]), http.StatusFound)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newEnv(t *testing.T) cms.Env {
	t.Helper()
	log := console.Nop()
	registry := archive.NewRegistryIn(t.TempDir())
	return cms.Env{
		Fs:      afero.NewOsFs(),
		Log:     log,
		Fetcher: archive.NewFetcher(registry, log),
		Matcher: vulnerability.NewMatcher(log),
	}
}
