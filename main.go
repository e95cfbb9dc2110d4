package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/analysis"
	"github.com/aquasecurity/cms-auditor/archive"
	"github.com/aquasecurity/cms-auditor/cms"
	"github.com/aquasecurity/cms-auditor/config"
	"github.com/aquasecurity/cms-auditor/console"
	"github.com/aquasecurity/cms-auditor/report"
	"github.com/aquasecurity/cms-auditor/vulnerability"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "cms-auditor",
		Short:         "Analyse a CMS installation and the addons it uses",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.Load(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), c)
		},
	}
	config.AddFlags(cmd)
	return cmd
}

func newLogger(c config.Config) (*console.Logger, error) {
	opts := []console.Option{console.WithNoColor(c.NoColor)}
	if c.Log != "" {
		f, err := console.OpenLogFile(c.Log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, console.WithLogFile(f))
	}

	debug, err := console.NewDebugLogger(c.Debug)
	if err != nil {
		return nil, err
	}
	opts = append(opts, console.WithDebugLogger(debug))
	return console.New(opts...), nil
}

func run(ctx context.Context, c config.Config) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Close()

	fs := afero.NewOsFs()
	registry := archive.NewRegistry()
	prober := vulnerability.NewPageProber(vulnerability.DefaultPoCSelector, logger)
	env := cms.Env{
		Fs:      fs,
		Log:     logger,
		Fetcher: archive.NewFetcher(registry, logger, archive.WithProgress(c.Progress)),
		Matcher: vulnerability.NewMatcher(logger, vulnerability.WithPoCProber(prober)),
	}

	adapter, err := cms.New(c.CMS, cms.Options{
		Dir:        c.Dir,
		WPContent:  c.WPContent,
		PluginsDir: c.PluginsDir,
		ThemesDir:  c.ThemesDir,
		Token:      c.Token,
	}, env)
	if err != nil {
		return err
	}
	logger.Debugw("Configuration loaded", "cms", c.CMS, "dir", c.Dir, "type", c.Type, "output", c.Output)

	if !c.NoCheck {
		if err = adapter.Check(); err != nil {
			logger.Alert(0, "[-] The path provided does not seem to be a CMS directory. Please check the path !")
			return xerrors.Errorf("sanity check: %w", err)
		}
	}

	result := analysis.New(adapter, logger, analysis.Options{
		SkipCore:     c.SkipCore,
		SkipPlugins:  c.SkipPlugins,
		SkipThemes:   c.SkipThemes,
		Version:      c.Version,
		MajorVersion: c.MajorVersion,
	}).Run(ctx)

	w, err := report.New(c.Type, c.Output, fs, os.Stdout)
	if err != nil {
		return err
	}
	if err = w.Write(result); err != nil {
		return xerrors.Errorf("report error: %w", err)
	}
	if c.Type != report.STDOUT {
		logger.Good(0, "[+] %s report written to %s", c.Type, c.Output)
	}

	return cleanup(registry, logger, c.Tmp)
}

// cleanup applies the --tmp policy to the downloaded archives.
func cleanup(registry *archive.Registry, logger *console.Logger, mode string) error {
	if len(registry.Dirs()) == 0 {
		return nil
	}

	switch mode {
	case config.TmpKeep:
		registry.Keep(logger)
		return nil
	case config.TmpDelete:
		logger.Alert(0, "Deleting tmp directories !")
		return registry.RemoveAll()
	default:
		return registry.Ask(os.Stdin, logger)
	}
}
