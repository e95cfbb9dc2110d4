package report

import (
	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/analysis"
	"github.com/aquasecurity/cms-auditor/utils"
)

type JSONWriter struct {
	fs     utils.Fs
	output string
}

func NewJSONWriter(fs afero.Fs, output string) JSONWriter {
	return JSONWriter{
		fs:     utils.NewFs(fs),
		output: output,
	}
}

func (w JSONWriter) Write(result analysis.Result) error {
	if err := w.fs.WriteJSON(w.output, result); err != nil {
		return xerrors.Errorf("failed to write the JSON report: %w", err)
	}
	return nil
}
