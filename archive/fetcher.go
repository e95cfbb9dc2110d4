package archive

import (
	"context"
	"path/filepath"

	getter "github.com/hashicorp/go-getter"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/console"
	"github.com/aquasecurity/cms-auditor/types"
	"github.com/aquasecurity/cms-auditor/utils"
)

type Fetcher struct {
	registry *Registry
	log      *console.Logger
	progress bool
}

type option func(*Fetcher)

// WithProgress shows a progress bar while downloading.
func WithProgress(progress bool) option {
	return func(f *Fetcher) { f.progress = progress }
}

func NewFetcher(registry *Registry, log *console.Logger, opts ...option) *Fetcher {
	f := &Fetcher{
		registry: registry,
		log:      log,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the zip archive at url and extracts it into a fresh
// temporary directory, whose path is returned. Any download failure,
// including a 404 for a version that was never published, wraps
// types.ErrUpstreamUnavailable.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	tmpDir, err := f.registry.Create()
	if err != nil {
		return "", err
	}

	f.log.Debugw("Downloading archive", "url", url, "dir", tmpDir)

	var tracker getter.ProgressTracker
	if f.progress {
		tracker = progressTracker{}
	}

	// go-getter creates the destination itself
	dst := filepath.Join(tmpDir, "archive")
	if err = utils.DownloadToDir(ctx, url, dst, tracker); err != nil {
		return "", xerrors.Errorf("reference archive %s: %v: %w", url, err, types.ErrUpstreamUnavailable)
	}
	return dst, nil
}
