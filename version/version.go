package version

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	goversion "github.com/hashicorp/go-version"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/console"
	"github.com/aquasecurity/cms-auditor/types"
	"github.com/aquasecurity/cms-auditor/utils"
)

// Candidate is a file that may hold a version marker. The first capture
// group of Pattern is the version.
type Candidate struct {
	Path    string
	Pattern *regexp.Regexp
}

// AmbiguousError lists every distinct version found when candidates disagree.
type AmbiguousError struct {
	Versions []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("multiple versions found: %s", strings.Join(e.Versions, ", "))
}

func (e *AmbiguousError) Is(target error) bool {
	return target == types.ErrAmbiguous
}

type Resolver struct {
	fs  afero.Fs
	log *console.Logger
}

func NewResolver(fs afero.Fs, log *console.Logger) Resolver {
	return Resolver{fs: fs, log: log}
}

// Installed scans the candidates that exist under root and returns the
// version only when exactly one distinct value was found. It never picks
// one of several conflicting markers.
func (r Resolver) Installed(root string, candidates []Candidate) (string, error) {
	var found []string
	for _, c := range candidates {
		p := filepath.Join(root, c.Path)
		v, err := r.ScanFile(p, c.Pattern, "")
		if xerrors.Is(err, types.ErrNotFound) {
			r.log.Debugw("Version marker file absent", "path", p)
			continue
		} else if err != nil {
			return "", err
		}
		if v != "" {
			found = append(found, v)
		}
	}

	found = lo.Uniq(found)
	switch len(found) {
	case 0:
		return "", xerrors.Errorf("no version marker under %s: %w", root, types.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return "", &AmbiguousError{Versions: found}
	}
}

// ScanFile returns the first capture of pattern in the file, with spaces
// and the characters in cutset trimmed. A file without any match yields an
// empty version and no error.
func (r Resolver) ScanFile(path string, pattern *regexp.Regexp, cutset string) (string, error) {
	f, err := r.fs.Open(path)
	if os.IsNotExist(err) {
		return "", xerrors.Errorf("%s: %w", path, types.ErrNotFound)
	} else if err != nil {
		return "", xerrors.Errorf("unable to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := pattern.FindStringSubmatch(scanner.Text())
		if len(m) < 2 {
			continue
		}
		v := strings.TrimSpace(m[1])
		if cutset != "" {
			v = strings.Trim(v, cutset)
		}
		return v, nil
	}
	if err = scanner.Err(); err != nil {
		return "", xerrors.Errorf("unable to read %s: %w", path, err)
	}
	return "", nil
}

// Extractor pulls the latest version out of a release feed body.
type Extractor func(body []byte) (string, error)

// Latest fetches a release feed and extracts the latest published version.
func Latest(url string, extract Extractor, opts ...utils.FetchOption) (string, error) {
	body, err := utils.FetchURL(url, opts...)
	if err != nil {
		return "", xerrors.Errorf("failed to fetch the release feed: %w", err)
	}
	v, err := extract(body)
	if err != nil {
		return "", xerrors.Errorf("failed to extract the latest version from %s: %w", url, err)
	}
	return v, nil
}

// Major returns the numeric prefix before the first dot.
func Major(v string) string {
	return utils.Major(v)
}

// Compare orders two dotted versions leniently: any number of numeric
// segments, an optional "v" prefix and pre-release suffixes are accepted.
func Compare(a, b string) (int, error) {
	va, err := parse(a)
	if err != nil {
		return 0, err
	}
	vb, err := parse(b)
	if err != nil {
		return 0, err
	}
	return va.Compare(vb), nil
}

// LessThan reports whether a < b.
func LessThan(a, b string) (bool, error) {
	c, err := Compare(a, b)
	if err != nil {
		return false, err
	}
	return c < 0, nil
}

func parse(s string) (*goversion.Version, error) {
	v, err := goversion.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return nil, xerrors.Errorf("%q: %v: %w", s, err, types.ErrUnparseable)
	}
	return v, nil
}
