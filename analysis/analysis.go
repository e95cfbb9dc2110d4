// Package analysis runs the phases of an audit against one adapter.
package analysis

import (
	"context"

	"github.com/aquasecurity/cms-auditor/cms"
	"github.com/aquasecurity/cms-auditor/console"
	"github.com/aquasecurity/cms-auditor/types"
)

// Result is what the report emitters consume.
type Result struct {
	Core    types.Core    `json:"core"`
	Plugins []types.Addon `json:"plugins"`
	Themes  []types.Addon `json:"themes"`
}

type Options struct {
	SkipCore    bool
	SkipPlugins bool
	SkipThemes  bool

	// Version and MajorVersion preset the core. A manual version wins over
	// the one found on disk.
	Version      string
	MajorVersion string
}

type Orchestrator struct {
	adapter cms.Adapter
	log     *console.Logger
	opts    Options
}

func New(adapter cms.Adapter, log *console.Logger, opts Options) Orchestrator {
	return Orchestrator{
		adapter: adapter,
		log:     log,
		opts:    opts,
	}
}

// Run analyzes the core, then the plugins, then the themes. The core always
// goes first since the addon steps depend on its version.
func (o Orchestrator) Run(ctx context.Context) Result {
	if o.opts.Version != "" || o.opts.MajorVersion != "" {
		o.adapter.Seed(o.opts.Version, o.opts.MajorVersion)
	}

	result := Result{
		Plugins: []types.Addon{},
		Themes:  []types.Addon{},
	}

	if o.opts.SkipCore {
		o.log.Info(0, "[+] Core analysis skipped")
		result.Core = o.adapter.Core()
	} else {
		result.Core = o.adapter.CoreAnalysis(ctx)
	}

	if !o.opts.SkipPlugins {
		result.Plugins = o.adapter.AddonAnalysis(ctx, types.Plugins)
	}
	if !o.opts.SkipThemes {
		result.Themes = o.adapter.AddonAnalysis(ctx, types.Themes)
	}
	return result
}
