package cms

import (
	"context"
	"path/filepath"
	"regexp"

	"github.com/samber/lo"
	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/types"
	"github.com/aquasecurity/cms-auditor/utils"
	"github.com/aquasecurity/cms-auditor/version"
	"github.com/aquasecurity/cms-auditor/wordpressorg"
	"github.com/aquasecurity/cms-auditor/wpscan"
)

const (
	defaultWPContent = "wp-content"
	muPluginsDir     = "mu-plugins"
	themeMainFile    = "style.css"

	noteNoMainFile   = "No standard addon file found. Search manually !"
	noteNotPublished = "Addon not on official site. Search manually !"
	noteMustUse      = "Must-use plugins are not published as archives. Compare manually !"
)

var (
	wpCoreIgnored = []string{
		".git",
		"cache",
		"plugins",
		"themes",
		"images",
		"uploads",
		"license.txt",
		"readme.html",
		"version.php",
		"wp-config.php",
	}
	wpAddonIgnored = []string{"css", "img", "js", "fonts", "images"}

	wpCoreCandidates = []version.Candidate{
		{Path: "wp-includes/version.php", Pattern: regexp.MustCompile(`\$wp_version = '(.*)';`)},
	}
	wpAddonVersion = regexp.MustCompile(`(?i)Version: (.*)`)
)

type WordPress struct {
	*base
	org        wordpressorg.Client
	scan       wpscan.Client
	contentDir string
	// contentPath is contentDir resolved against the root
	contentPath string
	pluginsDir  string
	themesDir   string
}

type WordPressOption func(*WordPress)

func WithWordPressOrg(c wordpressorg.Client) WordPressOption {
	return func(w *WordPress) { w.org = c }
}

func WithWPScan(c wpscan.Client) WordPressOption {
	return func(w *WordPress) { w.scan = c }
}

func NewWordPress(opts Options, env Env, wpOpts ...WordPressOption) *WordPress {
	w := &WordPress{
		base: newBase(opts.Dir, "WordPress", "wpscan", env, wpCoreIgnored),
		org:  wordpressorg.NewClient(),
		scan: wpscan.NewClient(wpscan.WithToken(opts.Token)),
	}
	for _, opt := range wpOpts {
		opt(w)
	}

	w.contentDir = opts.WPContent
	if w.contentDir == "" {
		// the first suspect wins, --wp-content forces another one
		w.contentDir = w.findContentDirs()[0]
	}
	w.contentPath = w.contentDir
	if !filepath.IsAbs(w.contentPath) {
		w.contentPath = filepath.Join(w.dir, w.contentDir)
	}

	w.pluginsDir = opts.PluginsDir
	if w.pluginsDir == "" {
		w.pluginsDir = filepath.Join(w.contentPath, "plugins")
	}
	w.themesDir = opts.ThemesDir
	if w.themesDir == "" {
		w.themesDir = filepath.Join(w.contentPath, "themes")
	}
	return w
}

func (w *WordPress) Name() string {
	return WordPressName
}

// findContentDirs returns the directories of the root that hold both a
// plugins and a themes directory, or the default content directory.
func (w *WordPress) findContentDirs() []string {
	fs := utils.NewFs(w.fs)
	dirs, err := fs.SubDirs(w.dir)
	if err != nil {
		w.log.Debugw("Unable to list the installation root", "err", err)
		return []string{defaultWPContent}
	}

	slices.Sort(dirs)
	suspects := lo.Filter(dirs, func(d string, _ int) bool {
		sub, err := fs.SubDirs(filepath.Join(w.dir, d))
		return err == nil && slices.Contains(sub, "plugins") && slices.Contains(sub, "themes")
	})

	switch {
	case len(suspects) == 0:
		return []string{defaultWPContent}
	case len(suspects) > 1:
		w.log.Warning(0, "[+] Several directories are suspected to be wp-contents. "+
			"Please check and if needed force one with --wp-content.")
		for _, s := range suspects {
			w.log.Info(1, "[+] %s", s)
		}
	}
	return suspects
}

func (w *WordPress) ContentDir() string {
	return w.contentDir
}

func (w *WordPress) Check() error {
	return w.requireDirs(w.contentPath, "wp-includes", "wp-admin")
}

func (w *WordPress) CoreVersion() (string, error) {
	return w.resolver.Installed(w.dir, wpCoreCandidates)
}

func (w *WordPress) CoreLastVersion() (string, error) {
	return w.org.CoreLatest()
}

func (w *WordPress) CoreVulns(ctx context.Context) ([]types.Vulnerability, error) {
	advisories, err := w.scan.Core(ctx, w.core.Version)
	if err != nil {
		return nil, err
	}
	w.log.Info(1, "[+] CVE list")
	return w.matcher.Match(w.core.Version, advisories), nil
}

func (w *WordPress) CoreAlteration(ctx context.Context) ([]types.Alteration, error) {
	url := w.org.CoreArchiveURL(w.core.Version)
	return w.alteration(ctx, url, wordpressorg.CoreArchiveRoot, w.dir, w.core.IgnoredFiles)
}

func (w *WordPress) Addons(addonType types.AddonType) ([]*types.Addon, error) {
	switch addonType {
	case types.Plugins:
		standard, err := w.listAddons(w.pluginsDir, addonType, false)
		if err != nil {
			return nil, err
		}
		mu, err := w.listAddons(filepath.Join(w.contentPath, muPluginsDir), addonType, true)
		if err != nil {
			return nil, err
		}
		return append(standard, mu...), nil
	case types.Themes:
		return w.listAddons(w.themesDir, addonType, false)
	default:
		return nil, xerrors.Errorf("unknown addon type %q", addonType)
	}
}

// mainFile picks the file that carries the addon header. Themes use
// style.css; plugins prefer <name>.php over plugin.php.
func (w *WordPress) mainFile(addon *types.Addon) string {
	if addon.Type == types.Themes {
		return themeMainFile
	}

	names := []string{addon.Name + ".php"}
	if addon.Subtype != types.AddonSubtypeMU {
		names = append(names, "plugin.php")
	}
	for _, name := range names {
		if ok, _ := utils.Exists(w.fs, filepath.Join(addon.Path, name)); ok {
			return name
		}
	}
	return types.NoFile
}

func (w *WordPress) AddonVersion(addon *types.Addon) (string, error) {
	addon.Filename = w.mainFile(addon)

	v, err := w.resolver.ScanFile(filepath.Join(addon.Path, addon.Filename), wpAddonVersion, " ")
	if xerrors.Is(err, types.ErrNotFound) {
		return "", withNote(noteNoMainFile, err)
	} else if err != nil {
		return "", err
	}
	if v == "" {
		return "", xerrors.Errorf("no version header in %s: %w", addon.Filename, types.ErrNotFound)
	}
	return v, nil
}

func (w *WordPress) AddonLastVersion(addon *types.Addon) error {
	release, err := w.org.AddonLatest(addon.Type, addon.Name)
	if err != nil {
		return withNote(noteNotPublished, err)
	}
	if release.Version == "" {
		return nil
	}
	addon.LastVersion = release.Version
	addon.LastReleaseDate = release.Date
	addon.Link = release.Link
	return nil
}

func (w *WordPress) AddonVulns(ctx context.Context, addon *types.Addon) ([]types.Vulnerability, error) {
	advisories, err := w.scan.Addon(ctx, addon.Type, addon.Name)
	if err != nil {
		return nil, err
	}
	w.log.Info(1, "[+] CVE list")
	return w.matcher.Match(addon.Version, advisories), nil
}

func (w *WordPress) AddonAlteration(ctx context.Context, addon *types.Addon) ([]types.Alteration, error) {
	if addon.Subtype == types.AddonSubtypeMU {
		return nil, withNote(noteMustUse, xerrors.Errorf("%s is a must-use plugin", addon.Name))
	}

	url := w.org.AddonArchiveURL(addon.Type, addon.Name, addon.Version)
	w.log.Default(1, "To download the addon : %s", url)
	return w.alteration(ctx, url, addon.Name, addon.Path, wpAddonIgnored)
}

func (w *WordPress) CoreAnalysis(ctx context.Context) types.Core {
	return analyzeCore(ctx, w, w.base)
}

func (w *WordPress) AddonAnalysis(ctx context.Context, addonType types.AddonType) []types.Addon {
	return analyzeAddons(ctx, w, w.base, addonType)
}
