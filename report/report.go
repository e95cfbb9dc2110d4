// Package report renders an analysis result as XLSX, CSV, JSON or console
// tables.
package report

import (
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/analysis"
	"github.com/aquasecurity/cms-auditor/types"
)

const (
	CSV    = "CSV"
	XLSX   = "XLSX"
	JSON   = "JSON"
	STDOUT = "STDOUT"
)

var (
	Types = []string{CSV, XLSX, JSON, STDOUT}

	ErrUnknownType = xerrors.New("unknown report type")
)

type Writer interface {
	Write(result analysis.Result) error
}

// New returns the writer of a report type. File based writers create their
// files under output on fs; STDOUT writes to out.
func New(reportType, output string, fs afero.Fs, out io.Writer) (Writer, error) {
	switch strings.ToUpper(reportType) {
	case CSV:
		return NewCSVWriter(fs, output), nil
	case XLSX:
		return NewXLSXWriter(fs, output), nil
	case JSON:
		return NewJSONWriter(fs, output), nil
	case STDOUT:
		return NewTableWriter(out), nil
	default:
		return nil, xerrors.Errorf("%q: %w", reportType, ErrUnknownType)
	}
}

// section is one part of a report: a worksheet, a CSV file or a console
// table.
type section struct {
	title    string
	suffix   string
	headings []string
	rows     [][]string
}

func coreTable(core types.Core) section {
	return section{
		title:    "Core",
		suffix:   "core",
		headings: []string{"Version", "Last version"},
		rows:     [][]string{{core.Version, core.LastVersion}},
	}
}

func coreVulnsTable(core types.Core) section {
	return section{
		title:    "Core Vulns",
		suffix:   "core_vulns",
		headings: []string{"Vulnerabilities", "Link", "Type", "PoC", "Fixed In", "Notes"},
		rows: lo.Map(core.Vulns, func(v types.Vulnerability, _ int) []string {
			return []string{v.Name, v.Link, v.Type, string(v.PoC), v.FixedIn, ""}
		}),
	}
}

func coreAlterationsTable(core types.Core) section {
	return section{
		title:    "Core Alteration",
		suffix:   "core_alterations",
		headings: []string{"Status", "File", "Path", "Alteration", "Notes"},
		rows: lo.Map(core.Alterations, func(a types.Alteration, _ int) []string {
			return []string{a.Status, a.File, a.Target, string(a.Type), ""}
		}),
	}
}

// addonLabel is the singular column title of an addon type.
func addonLabel(addonType types.AddonType) string {
	if addonType == types.Themes {
		return "Theme"
	}
	return "Plugin"
}

// addonTitle is the plural section title of an addon type.
func addonTitle(addonType types.AddonType) string {
	if addonType == types.Themes {
		return "Themes"
	}
	return "Plugins"
}

// addonsTable has an MU column for plugins only.
func addonsTable(addonType types.AddonType, addons []types.Addon) section {
	mu := addonType == types.Plugins

	headings := []string{"Status", addonLabel(addonType), "Version", "Last version", "Last release date", "Link"}
	if mu {
		headings = append(headings, "MU")
	}
	headings = append(headings, "Code altered", "CVE", "Notes")

	return section{
		title:    addonTitle(addonType),
		suffix:   string(addonType),
		headings: headings,
		rows: lo.Map(addons, func(a types.Addon, _ int) []string {
			row := []string{a.Status, a.Name, a.Version, a.LastVersion, a.LastReleaseDate, a.Link}
			if mu {
				row = append(row, a.Subtype)
			}
			return append(row, string(a.Altered), a.CVE(), a.Notes)
		}),
	}
}

func addonVulnsTable(addonType types.AddonType, addons []types.Addon) section {
	var rows [][]string
	for _, a := range addons {
		for _, v := range a.Vulns {
			rows = append(rows, []string{a.Name, v.Name, v.Link, v.Type, string(v.PoC), v.FixedIn, ""})
		}
	}
	return section{
		title:    addonTitle(addonType) + " Vulns",
		suffix:   string(addonType) + "_vulns",
		headings: []string{addonLabel(addonType), "Vulnerabilities", "Link", "Type", "PoC", "Fixed In", "Notes"},
		rows:     rows,
	}
}

func addonAlterationsTable(addonType types.AddonType, addons []types.Addon) section {
	var rows [][]string
	for _, a := range addons {
		for _, alt := range a.Alterations {
			rows = append(rows, []string{a.Status, a.Name, alt.File, alt.Target, string(alt.Type), ""})
		}
	}
	return section{
		title:    addonTitle(addonType) + " Alteration",
		suffix:   string(addonType) + "_alterations",
		headings: []string{"Status", addonLabel(addonType), "File", "Path", "Alteration", "Notes"},
		rows:     rows,
	}
}

// tables lists every section of a result in report order.
func tables(result analysis.Result) []section {
	return []section{
		coreTable(result.Core),
		coreVulnsTable(result.Core),
		coreAlterationsTable(result.Core),
		addonsTable(types.Plugins, result.Plugins),
		addonVulnsTable(types.Plugins, result.Plugins),
		addonAlterationsTable(types.Plugins, result.Plugins),
		addonsTable(types.Themes, result.Themes),
		addonVulnsTable(types.Themes, result.Themes),
		addonAlterationsTable(types.Themes, result.Themes),
	}
}
