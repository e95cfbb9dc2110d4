// Package differ compares a pristine reference tree against an installed
// tree and classifies every file as altered, added or deleted.
package differ

import (
	"bytes"
	"crypto/sha256"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"golang.org/x/exp/slices"
	"golang.org/x/mod/sumdb/dirhash"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/console"
	"github.com/aquasecurity/cms-auditor/types"
)

type Differ struct {
	fs  afero.Fs
	log *console.Logger
}

func New(fs afero.Fs, log *console.Logger) *Differ {
	return &Differ{fs: fs, log: log}
}

// errIrregular stops the hash walk on entries that are neither regular
// files nor directories.
var errIrregular = xerrors.New("irregular entry")

// Compare returns no alteration when both trees hash to the same value and
// falls back to Diff otherwise. Trees holding symlinks or other irregular
// entries outside the ignore list always get the full Diff.
func (d *Differ) Compare(reference, installed string, ignored []string) ([]types.Alteration, error) {
	refHash, err := d.HashDir(reference, ignored)
	if err != nil && !xerrors.Is(err, errIrregular) {
		return nil, xerrors.Errorf("unable to hash the reference tree: %w", err)
	}
	if err == nil {
		installedHash, err := d.HashDir(installed, ignored)
		switch {
		case err == nil && refHash == installedHash:
			d.log.Debugw("Directory hashes match", "hash", refHash)
			return []types.Alteration{}, nil
		case err != nil && !xerrors.Is(err, errIrregular):
			return nil, xerrors.Errorf("unable to hash the installed tree: %w", err)
		}
	}
	return d.Diff(reference, installed, ignored)
}

// HashDir returns the aggregate hash of the regular files and directories
// under dir, skipping ignored entries the way Diff does. Directories are
// hashed as empty entries with a trailing slash, so an empty directory
// changes the hash.
func (d *Differ) HashDir(dir string, ignored []string) (string, error) {
	var entries []string
	err := afero.Walk(d.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if rel == "." {
			if !info.IsDir() {
				return xerrors.Errorf("%s: %w", p, errIrregular)
			}
			return nil
		}
		rel = filepath.ToSlash(rel)
		if isIgnored(rel, info.Name(), ignored) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		switch {
		case info.IsDir():
			entries = append(entries, rel+"/")
		case info.Mode().IsRegular():
			entries = append(entries, rel)
		default:
			return xerrors.Errorf("%s: %w", p, errIrregular)
		}
		return nil
	})
	if err != nil {
		return "", xerrors.Errorf("walk error %s: %w", dir, err)
	}

	return dirhash.Hash1(entries, func(name string) (io.ReadCloser, error) {
		if strings.HasSuffix(name, "/") {
			return io.NopCloser(strings.NewReader("")), nil
		}
		return d.fs.Open(filepath.Join(dir, filepath.FromSlash(name)))
	})
}

// Diff walks both trees and returns one Alteration per differing, added or
// deleted entry. An ignored name is skipped at every depth; an ignored
// slash-separated relative path only where it matches.
func (d *Differ) Diff(reference, installed string, ignored []string) ([]types.Alteration, error) {
	alterations := []types.Alteration{}
	if err := d.diffDir(reference, installed, "", ignored, &alterations); err != nil {
		return nil, err
	}
	return alterations, nil
}

func (d *Differ) diffDir(reference, installed, rel string, ignored []string, alterations *[]types.Alteration) error {
	refEntries, err := d.readDir(filepath.Join(reference, rel), rel, ignored)
	if err != nil {
		return err
	}
	installedEntries, err := d.readDir(filepath.Join(installed, rel), rel, ignored)
	if err != nil {
		return err
	}

	target := filepath.Join(installed, rel)
	var diffFiles, installedOnly, refOnly, subdirs []string

	for _, name := range sortedKeys(refEntries) {
		refInfo := refEntries[name]
		installedInfo, ok := installedEntries[name]
		switch {
		case !ok:
			refOnly = append(refOnly, name)
		case refInfo.IsDir() && installedInfo.IsDir():
			subdirs = append(subdirs, name)
		case refInfo.IsDir() != installedInfo.IsDir():
			diffFiles = append(diffFiles, name)
		default:
			same, err := d.sameContent(filepath.Join(reference, rel, name), filepath.Join(installed, rel, name), refInfo, installedInfo)
			if err != nil {
				return err
			}
			if !same {
				diffFiles = append(diffFiles, name)
			}
		}
	}
	for _, name := range sortedKeys(installedEntries) {
		if _, ok := refEntries[name]; !ok {
			installedOnly = append(installedOnly, name)
		}
	}

	for _, name := range diffFiles {
		d.log.Print(console.Alert, 1, filepath.Join(target, name), " was altered !")
		*alterations = append(*alterations, newAlteration(target, name, types.Altered))
	}
	for _, name := range installedOnly {
		d.log.Print(console.Warning, 1, filepath.Join(target, name), " has been added !")
		*alterations = append(*alterations, newAlteration(target, name, types.Added))
	}
	for _, name := range refOnly {
		d.log.Print(console.Warning, 1, filepath.Join(target, name), " deleted !")
		*alterations = append(*alterations, newAlteration(target, name, types.Deleted))
	}

	for _, name := range subdirs {
		if err = d.diffDir(reference, installed, filepath.Join(rel, name), ignored, alterations); err != nil {
			return err
		}
	}
	return nil
}

func (d *Differ) readDir(dir, rel string, ignored []string) (map[string]os.FileInfo, error) {
	infos, err := afero.ReadDir(d.fs, dir)
	if err != nil {
		return nil, xerrors.Errorf("unable to read %s: %w", dir, err)
	}

	entries := make(map[string]os.FileInfo, len(infos))
	for _, info := range infos {
		if isIgnored(path.Join(filepath.ToSlash(rel), info.Name()), info.Name(), ignored) {
			continue
		}
		entries[info.Name()] = info
	}
	return entries, nil
}

func isIgnored(relPath, name string, ignored []string) bool {
	return slices.Contains(ignored, name) || slices.Contains(ignored, relPath)
}

func (d *Differ) sameContent(refPath, installedPath string, refInfo, installedInfo os.FileInfo) (bool, error) {
	if refInfo.Size() != installedInfo.Size() {
		return false, nil
	}
	refSum, err := d.fileHash(refPath)
	if err != nil {
		return false, err
	}
	installedSum, err := d.fileHash(installedPath)
	if err != nil {
		return false, err
	}
	return bytes.Equal(refSum, installedSum), nil
}

func (d *Differ) fileHash(p string) ([]byte, error) {
	f, err := d.fs.Open(p)
	if err != nil {
		return nil, xerrors.Errorf("unable to open %s: %w", p, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err = io.Copy(h, f); err != nil {
		return nil, xerrors.Errorf("unable to read %s: %w", p, err)
	}
	return h.Sum(nil), nil
}

func newAlteration(target, name string, classification types.Classification) types.Alteration {
	return types.Alteration{
		Status: types.StatusTodo,
		Target: target,
		File:   name,
		Type:   classification,
	}
}

func sortedKeys(m map[string]os.FileInfo) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
