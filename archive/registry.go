package archive

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/console"
)

const tmpPrefix = "cms-auditor-"

// Registry tracks the temporary directories created during one run. It is
// not safe for concurrent use.
type Registry struct {
	root string
	dirs []string
}

func NewRegistry() *Registry {
	return &Registry{root: os.TempDir()}
}

// NewRegistryIn creates temporary directories under root instead of the system temp dir.
func NewRegistryIn(root string) *Registry {
	return &Registry{root: root}
}

// Create makes a new uniquely-named directory and records it.
func (r *Registry) Create() (string, error) {
	dir, err := os.MkdirTemp(r.root, tmpPrefix)
	if err != nil {
		return "", xerrors.Errorf("failed to create a temp dir: %w", err)
	}
	r.dirs = append(r.dirs, dir)
	return dir, nil
}

func (r *Registry) Dirs() []string {
	return append([]string(nil), r.dirs...)
}

// RemoveAll deletes every recorded directory and clears the registry.
func (r *Registry) RemoveAll() error {
	var errs error
	for _, dir := range r.dirs {
		if err := os.RemoveAll(dir); err != nil {
			errs = multierror.Append(errs, xerrors.Errorf("failed to remove %s: %w", dir, err))
		}
	}
	r.dirs = nil
	return errs
}

// Keep prints the recorded directories and leaves them on disk.
func (r *Registry) Keep(log *console.Logger) {
	log.Info(0, "Keeping tmp directories ! Here they are :\n%s", strings.Join(r.dirs, "\n"))
}

// Ask asks whether the directories should be kept, until the answer is yes or no.
func (r *Registry) Ask(in io.Reader, log *console.Logger) error {
	if len(r.dirs) == 0 {
		return nil
	}

	scanner := bufio.NewScanner(in)
	for {
		log.Print(console.Default, 0, "Do you want to keep temp directories containing downloaded core and "+
			"plugins for further analysis ? (yes/no) ", "")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return xerrors.Errorf("unable to read the answer: %w", err)
			}
			// no more input, keep everything rather than deleting silently
			r.Keep(log)
			return nil
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "no":
			log.Alert(0, "Deleting tmp directories !")
			return r.RemoveAll()
		case "yes":
			r.Keep(log)
			return nil
		}
	}
}
