package report

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/xuri/excelize/v2"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/analysis"
	"github.com/aquasecurity/cms-auditor/types"
)

const (
	defaultSheet = "Sheet1"
	headingColor = "44546A"
)

type highlight int

const (
	bad highlight = iota
	good
	unknown
)

var highlightStyles = map[highlight]excelize.Style{
	bad:     {Font: &excelize.Font{Color: "9C0006"}, Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FFC7CE"}}},
	good:    {Font: &excelize.Font{Color: "006100"}, Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"C6EFCE"}}},
	unknown: {Font: &excelize.Font{Color: "974706"}, Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"FCD5B4"}}},
}

type rule struct {
	kind      string
	criteria  string
	value     string
	highlight highlight
}

// columnRules color the cells of a column by their heading.
var columnRules = map[string][]rule{
	"Status": {
		{kind: "text", criteria: "containing", value: types.StatusTodo, highlight: bad},
		{kind: "text", criteria: "containing", value: "done", highlight: good},
	},
	"Version": {
		{kind: "cell", criteria: "==", value: `"trunk"`, highlight: bad},
	},
	"Code altered": {
		{kind: "cell", criteria: "==", value: `"YES"`, highlight: bad},
		{kind: "cell", criteria: "==", value: `"NO"`, highlight: good},
	},
	"CVE": {
		{kind: "cell", criteria: "==", value: `"YES"`, highlight: bad},
		{kind: "cell", criteria: "==", value: `"NO"`, highlight: good},
	},
	"PoC": {
		{kind: "cell", criteria: "==", value: `"CHECK"`, highlight: unknown},
		{kind: "cell", criteria: "==", value: `"YES"`, highlight: bad},
	},
	"Alteration": {
		{kind: "cell", criteria: "==", value: `"altered"`, highlight: bad},
		{kind: "cell", criteria: "==", value: `"added"`, highlight: bad},
		{kind: "cell", criteria: "==", value: `"deleted"`, highlight: unknown},
	},
	"Notes": {
		{kind: "text", criteria: "containing", value: "Search", highlight: bad},
	},
}

var columnWidths = map[string]float64{
	"":                  3,
	"Status":            7,
	"Plugin":            25,
	"Theme":             25,
	"Version":           10,
	"Last version":      10,
	"Last release date": 13,
	"Link":              50,
	"MU":                5,
	"Code altered":      10,
	"CVE":               5,
	"Vulnerabilities":   80,
	"Type":              10,
	"PoC":               7,
	"Fixed In":          10,
	"File/Folder":       40,
	"Path":              80,
	"Alteration":        12,
	"Notes":             60,
}

// XLSXWriter writes a workbook with one worksheet per table. The core
// vulnerabilities share the Core worksheet.
type XLSXWriter struct {
	fs     afero.Fs
	output string
}

func NewXLSXWriter(fs afero.Fs, output string) XLSXWriter {
	return XLSXWriter{
		fs:     fs,
		output: output,
	}
}

// worksheets lists the worksheets of a result in workbook order.
func worksheets(result analysis.Result) []section {
	sheets := []section{
		coreSheet(result.Core),
		withFolderHeading(coreAlterationsTable(result.Core)),
	}
	for _, addonType := range []types.AddonType{types.Plugins, types.Themes} {
		addons := result.Plugins
		if addonType == types.Themes {
			addons = result.Themes
		}
		sheets = append(sheets,
			addonsTable(addonType, addons),
			addonVulnsTable(addonType, addons),
			withFolderHeading(addonAlterationsTable(addonType, addons)),
		)
	}
	return sheets
}

// coreSheet puts the core versions in A:B and its vulnerabilities from D on.
func coreSheet(core types.Core) section {
	info := coreTable(core)
	vulns := coreVulnsTable(core)

	s := section{
		title:    info.title,
		headings: append(append(info.headings, ""), vulns.headings...),
	}
	n := max(len(info.rows), len(vulns.rows))
	for i := 0; i < n; i++ {
		row := []string{"", "", ""}
		if i < len(info.rows) {
			copy(row, info.rows[i])
		}
		if i < len(vulns.rows) {
			row = append(row, vulns.rows[i]...)
		}
		s.rows = append(s.rows, row)
	}
	return s
}

func withFolderHeading(s section) section {
	for i, h := range s.headings {
		if h == "File" {
			s.headings[i] = "File/Folder"
		}
	}
	return s
}

func (w XLSXWriter) Write(result analysis.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	headingStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 13, Color: headingColor},
		Border:    []excelize.Border{{Type: "bottom", Color: headingColor, Style: 2}},
		Alignment: &excelize.Alignment{WrapText: true},
	})
	if err != nil {
		return xerrors.Errorf("failed to create the heading style: %w", err)
	}
	highlights := map[highlight]int{}
	for h, style := range highlightStyles {
		style := style
		id, err := f.NewConditionalStyle(&style)
		if err != nil {
			return xerrors.Errorf("failed to create a conditional style: %w", err)
		}
		highlights[h] = id
	}

	for i, s := range worksheets(result) {
		if i == 0 {
			err = f.SetSheetName(defaultSheet, s.title)
		} else {
			_, err = f.NewSheet(s.title)
		}
		if err != nil {
			return xerrors.Errorf("failed to create the %s worksheet: %w", s.title, err)
		}
		if err = writeSheet(f, s, headingStyle, highlights); err != nil {
			return xerrors.Errorf("failed to fill the %s worksheet: %w", s.title, err)
		}
	}

	out, err := w.fs.Create(w.output)
	if err != nil {
		return xerrors.Errorf("unable to create %s: %w", w.output, err)
	}
	defer out.Close()

	if err = f.Write(out); err != nil {
		return xerrors.Errorf("failed to write %s: %w", w.output, err)
	}
	return nil
}

func writeSheet(f *excelize.File, s section, headingStyle int, highlights map[highlight]int) error {
	if err := f.SetSheetRow(s.title, "A1", &s.headings); err != nil {
		return err
	}
	if err := f.SetRowStyle(s.title, 1, 1, headingStyle); err != nil {
		return err
	}
	for i, row := range s.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err = f.SetSheetRow(s.title, cell, &row); err != nil {
			return err
		}
	}

	for i, heading := range s.headings {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if width, ok := columnWidths[heading]; ok {
			if err = f.SetColWidth(s.title, col, col, width); err != nil {
				return err
			}
		}

		rules := columnRules[heading]
		if len(rules) == 0 || len(s.rows) == 0 {
			continue
		}
		opts := make([]excelize.ConditionalFormatOptions, 0, len(rules))
		for _, r := range rules {
			id := highlights[r.highlight]
			opts = append(opts, excelize.ConditionalFormatOptions{
				Type:     r.kind,
				Criteria: r.criteria,
				Value:    r.value,
				Format:   &id,
			})
		}
		ref := fmt.Sprintf("%s2:%s%d", col, col, len(s.rows)+1)
		if err = f.SetConditionalFormat(s.title, ref, opts); err != nil {
			return err
		}
	}
	return nil
}
