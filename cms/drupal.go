package cms

import (
	"context"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"

	"github.com/aquasecurity/cms-auditor/drupalorg"
	"github.com/aquasecurity/cms-auditor/types"
	"github.com/aquasecurity/cms-auditor/utils"
	"github.com/aquasecurity/cms-auditor/version"
)

const (
	// defaultAddonVersion is the version string of the modules shipped with core.
	defaultAddonVersion = "VERSION"

	noteNoInfoFile      = "No standard extension file. Search manually !"
	noteNotOnDrupalOrg  = "Addon not in drupal official site. Search manually !"
	noteDefaultAddon    = "This is a default addon. Analysis is not yet implemented !"
	noteUnknownMajor    = "Unknown Drupal major version. Set it with --major-version !"
	drupalAddonsIgnored = "tests"
)

var (
	drupalCoreIgnored = []string{
		"modules",
		"files",
		"settings.php",
		"CHANGELOG.txt",
		"COPYRIGHT.txt",
		"LICENSE.txt",
		"MAINTAINERS.txt",
		"INSTALL.txt",
		"README.txt",
		"INSTALL.mysql.txt",
		"INSTALL.pgsql.txt",
		"INSTALL.sqlite.txt",
		"UPGRADE.txt",
	}

	// the major version is unknown until a marker matches, so both layouts are probed
	drupalCoreCandidates = []version.Candidate{
		{Path: "includes/bootstrap.inc", Pattern: regexp.MustCompile(`define\('VERSION', '(.*)'\);`)},
		{Path: "core/lib/Drupal.php", Pattern: regexp.MustCompile(`const VERSION = '(.*)';`)},
	}

	drupal7Layout = drupalLayout{
		addonsRoot: "sites/all",
		extension:  ".info",
		pattern:    regexp.MustCompile(`version = (.*)`),
	}
	drupal8Layout = drupalLayout{
		addonsRoot: "",
		extension:  ".info.yml",
	}
)

// drupalLayout is where a Drupal major version keeps its addons and how it
// declares their version. A nil pattern means the info file is YAML.
type drupalLayout struct {
	addonsRoot string
	extension  string
	pattern    *regexp.Regexp
}

type infoYAML struct {
	Version string `yaml:"version"`
}

type Drupal struct {
	*base
	org        drupalorg.Client
	pluginsDir string
	themesDir  string
}

type DrupalOption func(*Drupal)

func WithDrupalOrg(c drupalorg.Client) DrupalOption {
	return func(d *Drupal) { d.org = c }
}

func NewDrupal(opts Options, env Env, dOpts ...DrupalOption) *Drupal {
	d := &Drupal{
		base:       newBase(opts.Dir, "DRUPAL", "drupal.org", env, drupalCoreIgnored),
		org:        drupalorg.NewClient(),
		pluginsDir: opts.PluginsDir,
		themesDir:  opts.ThemesDir,
	}
	for _, opt := range dOpts {
		opt(d)
	}
	return d
}

func (d *Drupal) Name() string {
	return DrupalName
}

// Check accepts both the Drupal 7 and the Drupal 8+ layouts.
func (d *Drupal) Check() error {
	if err := d.requireDirs("modules"); err != nil {
		return err
	}
	if d.requireDirs("includes") == nil {
		return nil
	}
	return d.requireDirs("core")
}

func (d *Drupal) layout() (drupalLayout, error) {
	switch d.core.VersionMajor {
	case "":
		return drupalLayout{}, xerrors.Errorf("Drupal major version: %w", types.ErrNotFound)
	case "5", "6", "7":
		return drupal7Layout, nil
	default:
		return drupal8Layout, nil
	}
}

func (d *Drupal) CoreVersion() (string, error) {
	return d.resolver.Installed(d.dir, drupalCoreCandidates)
}

func (d *Drupal) CoreLastVersion() (string, error) {
	return d.org.CoreLatest(d.core.VersionMajor)
}

func (d *Drupal) CoreVulns(_ context.Context) ([]types.Vulnerability, error) {
	advisories, err := d.org.SecurityAdvisories("drupal", d.core.VersionMajor)
	if err != nil {
		return nil, err
	}
	d.log.Info(1, "[+] CVE list")
	return d.matcher.Match(d.core.Version, advisories), nil
}

func (d *Drupal) CoreAlteration(ctx context.Context) ([]types.Alteration, error) {
	url := d.org.CoreArchiveURL(d.core.Version)
	return d.alteration(ctx, url, drupalorg.CoreArchiveRoot(d.core.Version), d.dir, d.core.IgnoredFiles)
}

func (d *Drupal) addonsDir(addonType types.AddonType) (string, error) {
	switch {
	case addonType == types.Plugins && d.pluginsDir != "":
		return d.pluginsDir, nil
	case addonType == types.Themes && d.themesDir != "":
		return d.themesDir, nil
	}

	l, err := d.layout()
	if err != nil {
		return "", err
	}
	sub := "modules"
	if addonType == types.Themes {
		sub = "themes"
	}
	return filepath.Join(d.dir, l.addonsRoot, sub), nil
}

func (d *Drupal) Addons(addonType types.AddonType) ([]*types.Addon, error) {
	dir, err := d.addonsDir(addonType)
	if err != nil {
		d.log.Alert(0, "[-] %s", noteUnknownMajor)
		return nil, err
	}
	return d.listAddons(dir, addonType, false)
}

func (d *Drupal) AddonVersion(addon *types.Addon) (string, error) {
	l, err := d.layout()
	if err != nil {
		return "", withNote(noteUnknownMajor, err)
	}
	addon.Filename = addon.Name + l.extension
	p := filepath.Join(addon.Path, addon.Filename)

	var v string
	if l.pattern != nil {
		v, err = d.resolver.ScanFile(p, l.pattern, `"`)
	} else {
		v, err = d.yamlVersion(p)
	}
	if xerrors.Is(err, types.ErrNotFound) {
		return "", withNote(noteNoInfoFile, err)
	} else if err != nil {
		return "", err
	}
	if v == "" {
		return "", xerrors.Errorf("no version in %s: %w", addon.Filename, types.ErrNotFound)
	}
	return v, nil
}

func (d *Drupal) yamlVersion(path string) (string, error) {
	ok, err := utils.Exists(d.fs, path)
	if err != nil {
		return "", xerrors.Errorf("unable to stat %s: %w", path, err)
	} else if !ok {
		return "", xerrors.Errorf("%s: %w", path, types.ErrNotFound)
	}

	b, err := afero.ReadFile(d.fs, path)
	if err != nil {
		return "", xerrors.Errorf("unable to read %s: %w", path, err)
	}
	var info infoYAML
	if err = yaml.Unmarshal(b, &info); err != nil {
		return "", xerrors.Errorf("invalid info file %s: %w", path, err)
	}
	return strings.TrimSpace(info.Version), nil
}

func (d *Drupal) AddonLastVersion(addon *types.Addon) error {
	if addon.Version == defaultAddonVersion {
		return withNote(noteDefaultAddon, xerrors.Errorf("%s is shipped with core", addon.Name))
	}

	page, err := d.org.ProjectLatest(addon.Name)
	if err != nil {
		return withNote(noteNotOnDrupalOrg, err)
	}
	if page.Version == "" {
		return nil
	}
	addon.LastVersion = page.Version
	addon.LastReleaseDate = page.Date
	addon.Link = page.Link
	return nil
}

func (d *Drupal) AddonVulns(_ context.Context, addon *types.Addon) ([]types.Vulnerability, error) {
	advisories, err := d.org.SecurityAdvisories(addon.Name, d.core.VersionMajor)
	if err != nil {
		return nil, err
	}
	d.log.Info(1, "[+] CVE list")
	return d.matcher.Match(drupalorg.StripBranch(addon.Version), advisories), nil
}

func (d *Drupal) AddonAlteration(ctx context.Context, addon *types.Addon) ([]types.Alteration, error) {
	url := d.org.ProjectArchiveURL(addon.Name, addon.Version)
	d.log.Default(1, "To download the addon : %s", url)
	return d.alteration(ctx, url, addon.Name, addon.Path, []string{drupalAddonsIgnored})
}

func (d *Drupal) CoreAnalysis(ctx context.Context) types.Core {
	return analyzeCore(ctx, d, d.base)
}

func (d *Drupal) AddonAnalysis(ctx context.Context, addonType types.AddonType) []types.Addon {
	return analyzeAddons(ctx, d, d.base, addonType)
}
