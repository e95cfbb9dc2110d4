// Package cms holds the product adapters that drive an audit: they know
// where a product keeps its version markers and addons, which upstream
// feeds describe it, and how its reference archives are laid out.
package cms

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/archive"
	"github.com/aquasecurity/cms-auditor/console"
	"github.com/aquasecurity/cms-auditor/differ"
	"github.com/aquasecurity/cms-auditor/types"
	"github.com/aquasecurity/cms-auditor/utils"
	"github.com/aquasecurity/cms-auditor/version"
	"github.com/aquasecurity/cms-auditor/vulnerability"
)

const (
	WordPressName = "wordpress"
	DrupalName    = "drupal"
)

var ErrUnknownCMS = xerrors.New("unknown CMS")

// Adapter is implemented once per product. The step methods fill one field
// each; CoreAnalysis and AddonAnalysis chain them.
type Adapter interface {
	Name() string

	// Check fails when the installation does not look like the product.
	Check() error

	// Seed presets the core version, for runs that skip core discovery.
	Seed(version, major string)
	Core() types.Core

	CoreVersion() (string, error)
	CoreLastVersion() (string, error)
	CoreVulns(ctx context.Context) ([]types.Vulnerability, error)
	CoreAlteration(ctx context.Context) ([]types.Alteration, error)

	Addons(addonType types.AddonType) ([]*types.Addon, error)
	AddonVersion(addon *types.Addon) (string, error)
	AddonLastVersion(addon *types.Addon) error
	AddonVulns(ctx context.Context, addon *types.Addon) ([]types.Vulnerability, error)
	AddonAlteration(ctx context.Context, addon *types.Addon) ([]types.Alteration, error)

	CoreAnalysis(ctx context.Context) types.Core
	AddonAnalysis(ctx context.Context, addonType types.AddonType) []types.Addon
}

// Options are the user-facing settings of an adapter.
type Options struct {
	Dir        string
	WPContent  string
	PluginsDir string
	ThemesDir  string
	Token      string
}

// Env is what every adapter shares with the rest of the run.
type Env struct {
	Fs      afero.Fs
	Log     *console.Logger
	Fetcher *archive.Fetcher
	Matcher vulnerability.Matcher
}

// New returns the adapter of the named product.
func New(name string, opts Options, env Env) (Adapter, error) {
	switch strings.ToLower(name) {
	case WordPressName:
		return NewWordPress(opts, env), nil
	case DrupalName:
		return NewDrupal(opts, env), nil
	default:
		return nil, xerrors.Errorf("%q: %w", name, ErrUnknownCMS)
	}
}

// noteError carries the text recorded in the notes of the entity it failed.
type noteError struct {
	note string
	err  error
}

func (e *noteError) Error() string {
	return e.note + ": " + e.err.Error()
}

func (e *noteError) Unwrap() error {
	return e.err
}

func withNote(note string, err error) error {
	return &noteError{note: note, err: err}
}

// base is the part of an adapter that does not depend on the product.
type base struct {
	dir      string
	fs       afero.Fs
	log      *console.Logger
	fetcher  *archive.Fetcher
	differ   *differ.Differ
	resolver version.Resolver
	matcher  vulnerability.Matcher
	core     types.Core
	title    string
	feed     string
}

func newBase(dir, title, feed string, env Env, ignored []string) *base {
	return &base{
		dir:      dir,
		fs:       env.Fs,
		log:      env.Log,
		fetcher:  env.Fetcher,
		differ:   differ.New(env.Fs, env.Log),
		resolver: version.NewResolver(env.Fs, env.Log),
		matcher:  env.Matcher,
		core:     types.NewCore(ignored),
		title:    title,
		feed:     feed,
	}
}

func (b *base) Seed(ver, major string) {
	if ver != "" {
		b.core.Version = ver
		b.core.VersionMajor = version.Major(ver)
	}
	if major != "" {
		b.core.VersionMajor = major
	}
}

func (b *base) Core() types.Core {
	return b.core
}

// requireDirs fails with the first of dirs missing under the root.
func (b *base) requireDirs(dirs ...string) error {
	for _, d := range dirs {
		p := d
		if !filepath.IsAbs(p) {
			p = filepath.Join(b.dir, d)
		}
		ok, err := utils.Exists(b.fs, p)
		if err != nil {
			return xerrors.Errorf("unable to stat %s: %w", p, err)
		}
		if !ok {
			return xerrors.Errorf("%s is not a %s installation, %s is missing: %w", b.dir, b.title, p, types.ErrNotFound)
		}
	}
	return nil
}

// listAddons returns one addon per directory under dir, or per PHP file when
// mu is set.
func (b *base) listAddons(dir string, addonType types.AddonType, mu bool) ([]*types.Addon, error) {
	ok, err := utils.Exists(b.fs, dir)
	if err != nil {
		return nil, xerrors.Errorf("unable to stat %s: %w", dir, err)
	}
	if !ok {
		b.log.Alert(0, "[+] Addons path %s does not exist ! (it may be normal)", dir)
		return nil, nil
	}

	fs := utils.NewFs(b.fs)
	var addons []*types.Addon
	if !mu {
		names, err := fs.SubDirs(dir)
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			addon := types.NewAddon(name, addonType)
			addon.Path = filepath.Join(dir, name)
			addons = append(addons, addon)
		}
		return addons, nil
	}

	names, err := fs.Files(dir)
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		if filepath.Ext(name) != ".php" {
			continue
		}
		addon := types.NewAddon(strings.TrimSuffix(name, ".php"), addonType)
		addon.Subtype = types.AddonSubtypeMU
		addon.Path = dir
		addons = append(addons, addon)
	}
	return addons, nil
}

// alteration downloads a reference archive and diffs its root directory
// against the installed tree.
func (b *base) alteration(ctx context.Context, url, root, installed string, ignored []string) ([]types.Alteration, error) {
	dir, err := b.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	reference := filepath.Join(dir, root)
	alterations, err := b.differ.Compare(reference, installed, ignored)
	if err != nil {
		return nil, xerrors.Errorf("failed to compare %s with %s: %w", installed, reference, err)
	}
	return alterations, nil
}
