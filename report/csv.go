package report

import (
	"encoding/csv"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/analysis"
)

const csvSeparator = ';'

// CSVWriter writes one ';' separated file per table, next to output:
// out/report.csv gives out/report.core.csv, out/report.plugins.csv...
type CSVWriter struct {
	fs     afero.Fs
	output string
}

func NewCSVWriter(fs afero.Fs, output string) CSVWriter {
	return CSVWriter{
		fs:     fs,
		output: output,
	}
}

// Filenames returns the files written for output, in table order.
func (w CSVWriter) Filenames() []string {
	var names []string
	for _, t := range tables(analysis.Result{}) {
		names = append(names, w.filename(t.suffix))
	}
	return names
}

func (w CSVWriter) filename(suffix string) string {
	dir, file := filepath.Split(w.output)
	base, _, _ := strings.Cut(file, ".")
	return filepath.Join(dir, base+"."+suffix+".csv")
}

func (w CSVWriter) Write(result analysis.Result) error {
	for _, t := range tables(result) {
		if err := w.writeTable(t); err != nil {
			return err
		}
	}
	return nil
}

func (w CSVWriter) writeTable(t section) error {
	name := w.filename(t.suffix)
	f, err := w.fs.Create(name)
	if err != nil {
		return xerrors.Errorf("unable to create %s: %w", name, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	cw.Comma = csvSeparator
	if err = cw.Write(t.headings); err != nil {
		return xerrors.Errorf("failed to write %s: %w", name, err)
	}
	if err = cw.WriteAll(t.rows); err != nil {
		return xerrors.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}
