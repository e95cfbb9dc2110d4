package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/cms-auditor/config"
)

func load(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	cmd := &cobra.Command{Use: "cms-auditor"}
	config.AddFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return config.Load(cmd)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    config.Config
		wantErr string
	}{
		{
			name: "defaults",
			args: []string{"--dir", "/var/www", "--cms", "WordPress"},
			want: config.Config{
				Dir:    "/var/www",
				CMS:    "wordpress",
				Output: "output.xlsx",
				Type:   "XLSX",
				Tmp:    config.TmpAsk,
			},
		},
		{
			name: "every flag",
			args: []string{
				"-d", "/var/www", "-c", "drupal", "-t", "csv", "-o", "/tmp/report.csv",
				"--skip-core", "--skip-themes", "--no-check", "--no-color",
				"--major-version", "7", "-v", "7.59", "--themes-dir", "/var/www/themes",
				"--debug", "--progress", "--tmp", "KEEP",
			},
			want: config.Config{
				Dir:          "/var/www",
				CMS:          "drupal",
				Output:       "/tmp/report.csv",
				Type:         "CSV",
				SkipCore:     true,
				SkipThemes:   true,
				NoCheck:      true,
				NoColor:      true,
				MajorVersion: "7",
				Version:      "7.59",
				ThemesDir:    "/var/www/themes",
				Debug:        true,
				Progress:     true,
				Tmp:          config.TmpKeep,
			},
		},
		{
			name: "stdout has no output file",
			args: []string{"--dir", "/var/www", "--cms", "wordpress", "--type", "STDOUT"},
			want: config.Config{
				Dir:  "/var/www",
				CMS:  "wordpress",
				Type: "STDOUT",
				Tmp:  config.TmpAsk,
			},
		},
		{
			name:    "missing dir",
			args:    []string{"--cms", "wordpress"},
			wantErr: "--dir is required",
		},
		{
			name:    "missing cms",
			args:    []string{"--dir", "/var/www"},
			wantErr: "--cms is required",
		},
		{
			name:    "unknown cms",
			args:    []string{"--dir", "/var/www", "--cms", "joomla"},
			wantErr: `unsupported CMS "joomla"`,
		},
		{
			name:    "unknown type",
			args:    []string{"--dir", "/var/www", "--cms", "drupal", "--type", "PDF"},
			wantErr: `unsupported output type "PDF"`,
		},
		{
			name:    "unknown tmp mode",
			args:    []string{"--dir", "/var/www", "--cms", "drupal", "--tmp", "later"},
			wantErr: `unsupported --tmp "later"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := load(t, tt.args...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, config.ErrInvalid)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_INIFile(t *testing.T) {
	conf := writeFile(t, "example.conf", `[Configuration]
dir = /srv/site
cms = drupal
skip_plugins = true
version_major = 7
logfile = /tmp/audit.log
type = JSON
`)

	got, err := load(t, "--file", conf, "--type", "CSV")
	require.NoError(t, err)
	assert.Equal(t, "/srv/site", got.Dir)
	assert.Equal(t, "drupal", got.CMS)
	assert.True(t, got.SkipPlugins)
	assert.Equal(t, "7", got.MajorVersion)
	assert.Equal(t, "/tmp/audit.log", got.Log)
	// flags set on the command line win
	assert.Equal(t, "CSV", got.Type)
	assert.Equal(t, "output.csv", got.Output)
}

func TestLoad_YAMLFile(t *testing.T) {
	conf := writeFile(t, "audit.yaml", "dir: /srv/blog\ncms: wordpress\nwp-content: content\nskip-themes: true\n")

	got, err := load(t, "-f", conf)
	require.NoError(t, err)
	assert.Equal(t, "/srv/blog", got.Dir)
	assert.Equal(t, "wordpress", got.CMS)
	assert.Equal(t, "content", got.WPContent)
	assert.True(t, got.SkipThemes)
}

func TestLoad_INIWithoutSection(t *testing.T) {
	conf := writeFile(t, "broken.ini", "dir = /srv/site\n")

	_, err := load(t, "--file", conf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no [Configuration] section")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(t, "--file", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to read the config file")
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("CMS_AUDITOR_WPVULNDB_TOKEN", "s3cr3t")

	got, err := load(t, "--dir", "/var/www", "--cms", "wordpress")
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", got.Token)

	got, err = load(t, "--dir", "/var/www", "--cms", "wordpress", "--wpvulndb-token", "flag")
	require.NoError(t, err)
	assert.Equal(t, "flag", got.Token)
}
