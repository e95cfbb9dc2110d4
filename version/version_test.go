package version_test

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/console"
	"github.com/aquasecurity/cms-auditor/types"
	"github.com/aquasecurity/cms-auditor/version"
)

var (
	drupal7Candidate = version.Candidate{
		Path:    "includes/bootstrap.inc",
		Pattern: regexp.MustCompile(`define\('VERSION', '(.*)'\);`),
	}
	drupal8Candidate = version.Candidate{
		Path:    "core/lib/Drupal.php",
		Pattern: regexp.MustCompile(`const VERSION = '(.*)';`),
	}
)

func TestResolver_Installed(t *testing.T) {
	tests := []struct {
		name          string
		files         map[string]string
		want          string
		wantErr       error
		wantAmbiguous []string
	}{
		{
			name: "drupal 7 marker",
			files: map[string]string{
				"/site/includes/bootstrap.inc": "<?php\n/**\n * The current system version.\n */\ndefine('VERSION', '7.59');\n",
			},
			want: "7.59",
		},
		{
			name: "drupal 8 marker",
			files: map[string]string{
				"/site/core/lib/Drupal.php": "<?php\nclass Drupal {\n  const VERSION = '8.5.3';\n}\n",
			},
			want: "8.5.3",
		},
		{
			name: "same version in both files",
			files: map[string]string{
				"/site/includes/bootstrap.inc": "define('VERSION', '8.5.3');",
				"/site/core/lib/Drupal.php":    "const VERSION = '8.5.3';",
			},
			want: "8.5.3",
		},
		{
			name: "two distinct markers",
			files: map[string]string{
				"/site/includes/bootstrap.inc": "define('VERSION', '7.59');",
				"/site/core/lib/Drupal.php":    "const VERSION = '8.5.3';",
			},
			wantErr:       types.ErrAmbiguous,
			wantAmbiguous: []string{"7.59", "8.5.3"},
		},
		{
			name:    "no marker file",
			files:   map[string]string{"/site/index.php": "<?php"},
			wantErr: types.ErrNotFound,
		},
		{
			name:    "marker file without marker",
			files:   map[string]string{"/site/includes/bootstrap.inc": "<?php // nothing"},
			wantErr: types.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			for p, content := range tt.files {
				require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0644))
			}

			r := version.NewResolver(fs, console.Nop())
			got, err := r.Installed("/site", []version.Candidate{drupal7Candidate, drupal8Candidate})
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				if tt.wantAmbiguous != nil {
					var ambiguous *version.AmbiguousError
					require.True(t, xerrors.As(err, &ambiguous))
					assert.Equal(t, tt.wantAmbiguous, ambiguous.Versions)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			// resolving again over the unchanged marker yields the same version
			again, err := r.Installed("/site", []version.Candidate{drupal7Candidate, drupal8Candidate})
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestResolver_ScanFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/w3-total-cache/w3-total-cache.php",
		[]byte("<?php\n/*\nPlugin Name: W3 Total Cache\nVersion: 0.9.4.1\n*/\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/views/views.info",
		[]byte("name = Views\nversion = \"7.x-3.20\"\ncore = 7.x\n"), 0644))

	r := version.NewResolver(fs, console.Nop())

	got, err := r.ScanFile("/w3-total-cache/w3-total-cache.php", regexp.MustCompile(`(?i)Version: (.*)`), "")
	require.NoError(t, err)
	assert.Equal(t, "0.9.4.1", got)

	got, err = r.ScanFile("/views/views.info", regexp.MustCompile(`version = (.*)`), `"`)
	require.NoError(t, err)
	assert.Equal(t, "7.x-3.20", got)

	got, err = r.ScanFile("/views/views.info", regexp.MustCompile(`nothing = (.*)`), "")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = r.ScanFile("/missing.php", regexp.MustCompile(`(.*)`), "")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestLatest(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/feed" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("0.9.5.4"))
	}))
	defer ts.Close()

	extract := func(b []byte) (string, error) { return string(b), nil }

	got, err := version.Latest(ts.URL+"/feed", extract)
	require.NoError(t, err)
	assert.Equal(t, "0.9.5.4", got)

	_, err = version.Latest(ts.URL+"/missing", extract)
	assert.ErrorIs(t, err, types.ErrUpstreamUnavailable)
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b    string
		want    int
		wantErr bool
	}{
		{a: "0.9.4.1", b: "0.9.5.4", want: -1},
		{a: "4.5.1", b: "4.5", want: 1},
		{a: "4.5", b: "4.5.0", want: 0},
		{a: "1.10", b: "1.9", want: 1},
		{a: "v2.0", b: "2.0", want: 0},
		{a: "1.0-beta1", b: "1.0", want: -1},
		{a: "trunk", b: "1.0", wantErr: true},
		{a: "1.0", b: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			got, err := version.Compare(tt.a, tt.b)
			if tt.wantErr {
				assert.ErrorIs(t, err, types.ErrUnparseable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMajor(t *testing.T) {
	assert.Equal(t, "7", version.Major("7.59"))
	assert.Equal(t, "8", version.Major("8.5.3"))
}
