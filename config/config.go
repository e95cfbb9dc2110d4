// Package config merges the command line flags with an optional config file
// and the CMS_AUDITOR_* environment.
package config

import (
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/exp/slices"
	"golang.org/x/xerrors"
	"gopkg.in/ini.v1"

	"github.com/aquasecurity/cms-auditor/cms"
	"github.com/aquasecurity/cms-auditor/report"
)

const (
	EnvPrefix = "CMS_AUDITOR"

	// iniSection is the section of INI config files holding the settings.
	iniSection = "configuration"

	TmpAsk    = "ask"
	TmpKeep   = "keep"
	TmpDelete = "delete"
)

var (
	CMSs     = []string{cms.WordPressName, cms.DrupalName}
	TmpModes = []string{TmpAsk, TmpKeep, TmpDelete}

	ErrInvalid = xerrors.New("invalid configuration")

	iniExtensions = []string{".ini", ".conf", ".cfg"}

	// iniAliases maps the keys of older config files to the flag names.
	iniAliases = map[string]string{
		"version-major": "major-version",
		"logfile":       "log",
		"conf":          "file",
	}
)

type Config struct {
	Dir    string `mapstructure:"dir"`
	CMS    string `mapstructure:"cms"`
	Output string `mapstructure:"output"`
	Type   string `mapstructure:"type"`

	SkipCore    bool `mapstructure:"skip-core"`
	SkipPlugins bool `mapstructure:"skip-plugins"`
	SkipThemes  bool `mapstructure:"skip-themes"`
	NoCheck     bool `mapstructure:"no-check"`
	NoColor     bool `mapstructure:"no-color"`

	File string `mapstructure:"file"`
	Log  string `mapstructure:"log"`

	WPContent  string `mapstructure:"wp-content"`
	PluginsDir string `mapstructure:"plugins-dir"`
	ThemesDir  string `mapstructure:"themes-dir"`

	MajorVersion string `mapstructure:"major-version"`
	Version      string `mapstructure:"version"`
	Token        string `mapstructure:"wpvulndb-token"`

	Debug    bool   `mapstructure:"debug"`
	Progress bool   `mapstructure:"progress"`
	Tmp      string `mapstructure:"tmp"`
}

// AddFlags registers every setting as a flag of cmd.
func AddFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("dir", "d", "", "CMS root directory")
	f.StringP("cms", "c", "", "CMS type (wordpress, drupal)")
	f.StringP("output", "o", "", "Path to output file (default output.<type>)")
	f.StringP("type", "t", report.XLSX, "Type of output (CSV, XLSX, JSON, STDOUT)")

	f.Bool("skip-core", false, "Set this to skip core analysis")
	f.Bool("skip-plugins", false, "Set this to skip plugins analysis")
	f.Bool("skip-themes", false, "Set this to skip themes analysis")
	f.Bool("no-check", false, "Do not check that the directory looks like the CMS")
	f.Bool("no-color", false, "Do not use colors in the output")

	f.StringP("file", "f", "", "Configuration file (YAML, TOML, JSON or INI with a [Configuration] section)")
	f.String("log", "", "Log output in given file")

	f.String("wp-content", "", "Set this to force the wp-content directory location")
	f.String("plugins-dir", "", "Set this to force the plugins directory location")
	f.String("themes-dir", "", "Set this to force the themes directory location")

	f.String("major-version", "", "Specify the core major version (eg. 7, 8) when using --skip-core")
	f.StringP("version", "v", "", "Specify the core full version (eg. 5.5)")
	f.String("wpvulndb-token", "", "Token of the WPScan vulnerability API")

	f.Bool("debug", false, "Print debug logs")
	f.Bool("progress", false, "Show download progress bars")
	f.String("tmp", TmpAsk, "What to do with the temporary directories at the end (ask, keep, delete)")
}

// Load reads the settings of cmd. Flags set on the command line win over
// the environment, which wins over the config file.
func Load(cmd *cobra.Command) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return Config{}, xerrors.Errorf("failed to bind flags: %w", err)
	}

	if file := v.GetString("file"); file != "" {
		if err := readFile(v, file); err != nil {
			return Config{}, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, xerrors.Errorf("failed to decode the configuration: %w", err)
	}
	if err := c.normalize(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func readFile(v *viper.Viper, path string) error {
	if slices.Contains(iniExtensions, strings.ToLower(filepath.Ext(path))) {
		return readINI(v, path)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return xerrors.Errorf("unable to read the config file %s: %w", path, err)
	}
	return nil
}

// readINI merges the [Configuration] section of an INI file. Keys may use
// underscores in place of dashes.
func readINI(v *viper.Viper, path string) error {
	f, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, path)
	if err != nil {
		return xerrors.Errorf("unable to read the config file %s: %w", path, err)
	}
	section, err := f.GetSection(iniSection)
	if err != nil {
		return xerrors.Errorf("no [Configuration] section in %s: %w", path, err)
	}

	values := map[string]interface{}{}
	for _, key := range section.Keys() {
		name := strings.ReplaceAll(key.Name(), "_", "-")
		if alias, ok := iniAliases[name]; ok {
			name = alias
		}
		values[name] = key.Value()
	}
	if err = v.MergeConfigMap(values); err != nil {
		return xerrors.Errorf("failed to merge %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() error {
	if c.Dir == "" {
		return xerrors.Errorf("--dir is required: %w", ErrInvalid)
	}

	c.CMS = strings.ToLower(c.CMS)
	switch {
	case c.CMS == "":
		return xerrors.Errorf("--cms is required: %w", ErrInvalid)
	case !slices.Contains(CMSs, c.CMS):
		return xerrors.Errorf("unsupported CMS %q, expected one of %s: %w", c.CMS, strings.Join(CMSs, ", "), ErrInvalid)
	}

	c.Type = strings.ToUpper(c.Type)
	if !slices.Contains(report.Types, c.Type) {
		return xerrors.Errorf("unsupported output type %q, expected one of %s: %w", c.Type, strings.Join(report.Types, ", "), ErrInvalid)
	}
	if c.Output == "" && c.Type != report.STDOUT {
		c.Output = "output." + strings.ToLower(c.Type)
	}

	c.Tmp = strings.ToLower(lo.Ternary(c.Tmp == "", TmpAsk, c.Tmp))
	if !slices.Contains(TmpModes, c.Tmp) {
		return xerrors.Errorf("unsupported --tmp %q, expected one of %s: %w", c.Tmp, strings.Join(TmpModes, ", "), ErrInvalid)
	}
	return nil
}
