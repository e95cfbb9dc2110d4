package utils

import (
	"context"
	"os"

	getter "github.com/hashicorp/go-getter"
	"golang.org/x/xerrors"
)

// DownloadToDir downloads src into dst and decompresses it when src names an
// archive (e.g. *.zip). dst must not exist yet.
func DownloadToDir(ctx context.Context, src, dst string, progress getter.ProgressTracker) error {
	// go-getter doesn't allow destination to exist.It needs to be removed once.
	// https://github.com/hashicorp/go-getter/blob/7b99c311a18a8bb679bc7ff3a830a65029afef9b/module_test.go#L18-L28
	if err := os.RemoveAll(dst); err != nil {
		return xerrors.Errorf("failed to remove %s: %w", dst, err)
	}

	pwd, err := os.Getwd()
	if err != nil {
		return xerrors.Errorf("unable to get the current dir: %w", err)
	}

	// Build the client
	client := &getter.Client{
		Ctx:              ctx,
		Src:              src,
		Dst:              dst,
		Pwd:              pwd,
		Getters:          getter.Getters,
		Mode:             getter.ClientModeDir,
		ProgressListener: progress,
	}

	if err = client.Get(); err != nil {
		return xerrors.Errorf("failed to download: %w", err)
	}

	return nil
}
