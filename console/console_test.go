package console_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquasecurity/cms-auditor/console"
)

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }

func TestLogger_Print(t *testing.T) {
	tests := []struct {
		name     string
		noColor  bool
		kind     console.Kind
		level    int
		msg      string
		suffix   string
		wantOut  string
		wantFile string
	}{
		{
			name:     "no color",
			noColor:  true,
			kind:     console.Alert,
			level:    1,
			msg:      "readme.txt",
			suffix:   " was altered !",
			wantOut:  "\treadme.txt was altered !\n",
			wantFile: "\treadme.txt was altered !\n",
		},
		{
			name:     "colored console, plain log file",
			kind:     console.Alert,
			msg:      "[-] Outdated",
			wantOut:  "\x1b[91m[-] Outdated\x1b[0m\n",
			wantFile: "[-] Outdated\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			file := nopCloser{&bytes.Buffer{}}
			l := console.New(console.WithWriter(out), console.WithNoColor(tt.noColor), console.WithLogFile(file))

			l.Print(tt.kind, tt.level, tt.msg, tt.suffix)

			assert.Equal(t, tt.wantOut, out.String())
			assert.Equal(t, tt.wantFile, file.String())
		})
	}
}

func TestLogger_Helpers(t *testing.T) {
	out := &bytes.Buffer{}
	l := console.New(console.WithWriter(out), console.WithNoColor(true))

	l.Info(0, "[+] WordPress version used : %s", "4.5.1")
	l.Good(1, "Up to date !")

	assert.Equal(t, "[+] WordPress version used : 4.5.1\n\tUp to date !\n", out.String())
}

func TestOpenLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(path, []byte("previous\n"), 0644))

	f, err := console.OpenLogFile(path)
	require.NoError(t, err)

	l := console.New(console.WithWriter(&bytes.Buffer{}), console.WithLogFile(f))
	l.Warning(0, "appended")
	require.NoError(t, l.Close())

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous\nappended\n", string(got))
}
