package cms_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/cms-auditor/cms"
	"github.com/aquasecurity/cms-auditor/types"
	"github.com/aquasecurity/cms-auditor/wordpressorg"
	"github.com/aquasecurity/cms-auditor/wpscan"
)

const (
	w3Main   = "<?php\n/*\nPlugin Name: W3 Total Cache\nVersion: 0.9.4.1\n*/\n"
	w3Readme = "=== W3 Total Cache ===\nStable tag: 0.9.4.1\n"
	themeCSS = "/*\nTheme Name: Twenty Ten\nVersion: 2.9\n*/\n"
)

var wpInstallation = map[string]string{
	"index.php":                       "<?php // front",
	"wp-admin/index.php":              "<?php // admin",
	"wp-includes/version.php":         "<?php\n$wp_version = '4.9.8';\n",
	"wp-content/index.php":            "<?php // Silence is golden.",
	"wp-content/uploads/2018/cat.jpg": "jpeg",

	"wp-content/plugins/w3-total-cache/w3-total-cache.php": w3Main,
	"wp-content/plugins/w3-total-cache/readme.txt":         w3Readme + "hacked\n",
	"wp-content/plugins/w3-total-cache/css/custom.css":     "body {}",
	"wp-content/plugins/akismet/akismet.php":               "<?php\n/*\nVersion: 4.1\n*/\n",
	"wp-content/plugins/private-fork/private-fork.php":     "<?php\n/*\nVersion: 1.0\n*/\n",
	"wp-content/plugins/nofile-plugin/other.php":           "<?php\n/*\nVersion: 2.0\n*/\n",
	"wp-content/mu-plugins/loader.php":                     "<?php\n/*\nVersion: 1.0\n*/\n",

	"wp-content/themes/twentyten/style.css": themeCSS,
	"wp-content/themes/twentyten/index.php": "<?php get_header();",
}

func newWordPressServer(t *testing.T) string {
	t.Helper()
	routes := map[string][]byte{
		"/core/version-check/1.7/": []byte(`{"offers":[{"response":"upgrade","version":"5.0"}]}`),
		"/core/wordpress-4.9.8.zip": zipBytes(t, map[string]string{
			"wordpress/index.php":                 "<?php // front",
			"wordpress/license.txt":               "GPL",
			"wordpress/wp-admin/index.php":        "<?php // admin",
			"wordpress/wp-includes/version.php":   "<?php\n$wp_version = '4.9.8';\n",
			"wordpress/wp-content/index.php":      "<?php // Silence is golden.",
			"wordpress/wp-content/plugins/hi.php": "<?php // Hello Dolly",
		}),
		"/api/wordpresses/498": []byte(`{"4.9.8": {"vulnerabilities": [
			{"id": "9169", "title": "WordPress <= 5.0 - Authenticated File Delete", "vuln_type": "UNKNOWN", "fixed_in": "4.9.9"},
			{"id": "9100", "title": "WordPress <= 4.9.7 - Old issue", "vuln_type": "XSS", "fixed_in": "4.9.8"}
		]}}`),

		"/plugins/w3-total-cache/": []byte(`<html><head><script type="application/ld+json">
			{"@type":"SoftwareApplication","softwareVersion":"0.9.5.4","dateModified":"2017-04-26T15:04:00+00:00"}
			</script></head></html>`),
		"/api/plugins/w3-total-cache": []byte(`{"w3-total-cache": {"vulnerabilities": [
			{"id": "8d2b", "title": "W3 Total Cache <= 0.9.4.1 - Authenticated RCE", "vuln_type": "RCE", "fixed_in": "0.9.5"}
		]}}`),
		"/downloads/plugin/w3-total-cache.0.9.4.1.zip": zipBytes(t, map[string]string{
			"w3-total-cache/w3-total-cache.php": w3Main,
			"w3-total-cache/readme.txt":         w3Readme,
		}),

		"/plugins/akismet/": []byte(`<html><head><script type="application/ld+json">
			[{"softwareVersion":"4.1","dateModified":"2018-11-19T10:00:00+00:00"}]
			</script></head></html>`),
		"/plugins/private-fork/": []byte("->/plugins/search/private-fork/"),

		"/themes/twentyten/": []byte(`<html><body><ul><li>Version: <strong>2.9</strong></li>
			<li>Last updated: <strong>November 8, 2023</strong></li></ul></body></html>`),
		"/downloads/theme/twentyten.2.9.zip": zipBytes(t, map[string]string{
			"twentyten/style.css": themeCSS,
			"twentyten/index.php": "<?php get_header();",
		}),
	}
	return serve(t, routes).URL
}

func newWordPress(t *testing.T, dir, url string) *cms.WordPress {
	t.Helper()
	return cms.NewWordPress(cms.Options{Dir: dir}, newEnv(t),
		cms.WithWordPressOrg(wordpressorg.NewClient(
			wordpressorg.WithReleaseURL(url+"/core/version-check/1.7/"),
			wordpressorg.WithSiteURL(url+"/"),
			wordpressorg.WithCoreDownloadURL(url+"/core/"),
			wordpressorg.WithAddonDownloadURL(url+"/downloads/"),
		)),
		cms.WithWPScan(wpscan.NewClient(
			wpscan.WithAPIURL(url+"/api/"),
			wpscan.WithVulnURL("https://wpscan.com/vulnerability/"),
			wpscan.WithToken("XYZ"),
		)),
	)
}

func TestWordPress_CoreAnalysis(t *testing.T) {
	url := newWordPressServer(t)
	dir := t.TempDir()
	writeTree(t, dir, wpInstallation)

	wp := newWordPress(t, dir, url)
	require.NoError(t, wp.Check())
	assert.Equal(t, "wp-content", wp.ContentDir())

	core := wp.CoreAnalysis(context.Background())
	assert.Equal(t, "4.9.8", core.Version)
	assert.Equal(t, "4", core.VersionMajor)
	assert.Equal(t, "5.0", core.LastVersion)
	assert.Empty(t, core.Notes)
	assert.Equal(t, []types.Vulnerability{
		{
			Name:    "WordPress <= 5.0 - Authenticated File Delete",
			Link:    "https://wpscan.com/vulnerability/9169",
			Type:    "UNKNOWN",
			FixedIn: "4.9.9",
			PoC:     types.PoCCheck,
		},
	}, core.Vulns)
	assert.Equal(t, []types.Alteration{
		{Status: types.StatusTodo, Target: filepath.Join(dir, "wp-content"), File: "mu-plugins", Type: types.Added},
	}, core.Alterations)
}

func TestWordPress_AddonAnalysis(t *testing.T) {
	url := newWordPressServer(t)
	dir := t.TempDir()
	writeTree(t, dir, wpInstallation)

	wp := newWordPress(t, dir, url)
	wp.CoreAnalysis(context.Background())

	plugins := wp.AddonAnalysis(context.Background(), types.Plugins)
	require.Len(t, plugins, 5)
	assert.Equal(t, []string{"akismet", "nofile-plugin", "private-fork", "w3-total-cache", "loader"},
		lo.Map(plugins, func(a types.Addon, _ int) string { return a.Name }))
	byName := lo.KeyBy(plugins, func(a types.Addon) string { return a.Name })

	t.Run("outdated and altered", func(t *testing.T) {
		w3 := byName["w3-total-cache"]
		assert.Equal(t, "0.9.4.1", w3.Version)
		assert.Equal(t, "0.9.5.4", w3.LastVersion)
		assert.Equal(t, "2017-04-26", w3.LastReleaseDate)
		assert.Equal(t, url+"/plugins/w3-total-cache/", w3.Link)
		assert.Equal(t, "w3-total-cache.php", w3.Filename)
		assert.Equal(t, types.StatusTodo, w3.Status)
		assert.Equal(t, "YES", w3.CVE())
		require.Len(t, w3.Vulns, 1)
		assert.Equal(t, "0.9.5", w3.Vulns[0].FixedIn)
		assert.Equal(t, types.StateAltered, w3.Altered)
		assert.Equal(t, []types.Alteration{
			{Status: types.StatusTodo, Target: filepath.Join(dir, "wp-content/plugins/w3-total-cache"), File: "readme.txt", Type: types.Altered},
		}, w3.Alterations)
		assert.Empty(t, w3.Notes)
	})

	t.Run("missing reference archive", func(t *testing.T) {
		akismet := byName["akismet"]
		assert.Equal(t, "4.1", akismet.Version)
		assert.Equal(t, "4.1", akismet.LastVersion)
		assert.Equal(t, "The download link is not standard. Search manually !", akismet.Notes)
		assert.Empty(t, akismet.Alterations)
		assert.Equal(t, types.StateUnknown, akismet.Altered)
		assert.Empty(t, akismet.Vulns)
	})

	t.Run("not published", func(t *testing.T) {
		fork := byName["private-fork"]
		assert.Equal(t, "1.0", fork.Version)
		assert.Equal(t, types.NotFound, fork.LastVersion)
		assert.Equal(t, "Addon not on official site. Search manually !", fork.Notes)
		assert.Equal(t, types.StateUnknown, fork.Altered)
	})

	t.Run("no main file", func(t *testing.T) {
		nofile := byName["nofile-plugin"]
		assert.Equal(t, types.NoFile, nofile.Filename)
		assert.Empty(t, nofile.Version)
		assert.Equal(t, "No standard addon file found. Search manually !", nofile.Notes)
	})

	t.Run("must-use plugin", func(t *testing.T) {
		loader := byName["loader"]
		assert.Equal(t, types.AddonSubtypeMU, loader.Subtype)
		assert.Equal(t, filepath.Join(dir, "wp-content/mu-plugins"), loader.Path)
		assert.Equal(t, "loader.php", loader.Filename)
		assert.Equal(t, "1.0", loader.Version)
		assert.Equal(t, "Addon not on official site. Search manually !", loader.Notes)
	})

	themes := wp.AddonAnalysis(context.Background(), types.Themes)
	require.Len(t, themes, 1)
	assert.Equal(t, "twentyten", themes[0].Name)
	assert.Equal(t, "style.css", themes[0].Filename)
	assert.Equal(t, "2.9", themes[0].Version)
	assert.Equal(t, "2.9", themes[0].LastVersion)
	assert.Equal(t, "2023-11-08", themes[0].LastReleaseDate)
	assert.Equal(t, types.StateUnaltered, themes[0].Altered)
	assert.Empty(t, themes[0].Alterations)
	assert.Empty(t, themes[0].Notes)
}

func TestWordPress_ContentDir(t *testing.T) {
	tests := []struct {
		name      string
		files     map[string]string
		wpContent string
		want      string
	}{
		{
			name: "custom content directory",
			files: map[string]string{
				"app/plugins/a/a.php":     "",
				"app/themes/t/style.css":  "",
				"wp-includes/version.php": "",
			},
			want: "app",
		},
		{
			name:  "nothing qualifies",
			files: map[string]string{"wp-includes/version.php": ""},
			want:  "wp-content",
		},
		{
			name: "several candidates keep the first one",
			files: map[string]string{
				"a/plugins/x/x.php":    "",
				"a/themes/t/style.css": "",
				"b/plugins/x/x.php":    "",
				"b/themes/t/style.css": "",
			},
			want: "a",
		},
		{
			name: "forced",
			files: map[string]string{
				"a/plugins/x/x.php":    "",
				"a/themes/t/style.css": "",
			},
			wpContent: "b",
			want:      "b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeTree(t, dir, tt.files)
			wp := cms.NewWordPress(cms.Options{Dir: dir, WPContent: tt.wpContent}, newEnv(t))
			assert.Equal(t, tt.want, wp.ContentDir())
		})
	}
}

func TestWordPress_AbsoluteContentDir(t *testing.T) {
	dir := t.TempDir()
	content := t.TempDir()
	writeTree(t, dir, map[string]string{"wp-includes/version.php": "", "wp-admin/index.php": ""})
	writeTree(t, content, map[string]string{
		"plugins/akismet/akismet.php": "<?php",
		"mu-plugins/loader.php":       "<?php",
		"themes/twentyten/style.css":  "",
	})

	wp := cms.NewWordPress(cms.Options{Dir: dir, WPContent: content}, newEnv(t))
	require.NoError(t, wp.Check())
	assert.Equal(t, content, wp.ContentDir())

	plugins, err := wp.Addons(types.Plugins)
	require.NoError(t, err)
	require.Len(t, plugins, 2)
	assert.Equal(t, "akismet", plugins[0].Name)
	assert.Equal(t, filepath.Join(content, "plugins", "akismet"), plugins[0].Path)
	assert.Equal(t, "loader", plugins[1].Name)
	assert.Equal(t, filepath.Join(content, "mu-plugins"), plugins[1].Path)

	themes, err := wp.Addons(types.Themes)
	require.NoError(t, err)
	require.Len(t, themes, 1)
	assert.Equal(t, filepath.Join(content, "themes", "twentyten"), themes[0].Path)
}

func TestWordPress_Check(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"wp-includes/version.php": "", "wp-content/index.php": ""})

	wp := cms.NewWordPress(cms.Options{Dir: dir}, newEnv(t))
	err := wp.Check()
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.Contains(t, err.Error(), "wp-admin")
}

func TestWordPress_VersionNotFound(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"wp-includes/version.php": "<?php // nothing"})

	wp := cms.NewWordPress(cms.Options{Dir: dir}, newEnv(t))
	core := wp.CoreAnalysis(context.Background())
	assert.Empty(t, core.Version)
	assert.Equal(t, "WordPress version not found. Search manually !", core.Notes)
	assert.Empty(t, core.Alterations)
}

func TestWordPress_MainFileFallback(t *testing.T) {
	url := newWordPressServer(t)
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"wp-content/plugins/generic/plugin.php": "<?php\n/*\nVersion: 3.1\n*/\n",
		"wp-content/themes/.keep":               "",
	})

	wp := newWordPress(t, dir, url)
	addons, err := wp.Addons(types.Plugins)
	require.NoError(t, err)
	require.Len(t, addons, 1)

	v, err := wp.AddonVersion(addons[0])
	require.NoError(t, err)
	assert.Equal(t, "3.1", v)
	assert.Equal(t, "plugin.php", addons[0].Filename)
}

func TestWordPress_Seed(t *testing.T) {
	dir := t.TempDir()
	wp := cms.NewWordPress(cms.Options{Dir: dir}, newEnv(t))
	wp.Seed("5.2.1", "")
	assert.Equal(t, "5.2.1", wp.Core().Version)
	assert.Equal(t, "5", wp.Core().VersionMajor)
}
