package types

import "golang.org/x/xerrors"

var (
	// ErrNotFound is returned when a local marker file or install path is missing.
	ErrNotFound = xerrors.New("not found")

	// ErrAmbiguous is returned when several conflicting version markers are found.
	ErrAmbiguous = xerrors.New("ambiguous")

	// ErrUpstreamUnavailable covers network failures and non-2xx answers from any upstream.
	ErrUpstreamUnavailable = xerrors.New("upstream unavailable")

	// ErrUnparseable is returned when a version string cannot be ordered.
	ErrUnparseable = xerrors.New("unparseable version")
)
