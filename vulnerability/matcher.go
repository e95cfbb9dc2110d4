package vulnerability

import (
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/console"
	"github.com/aquasecurity/cms-auditor/types"
	"github.com/aquasecurity/cms-auditor/version"
)

const toCheckPrefix = "To check : "

// Advisory is one feed entry before it is matched against an installed version.
type Advisory struct {
	Title   string
	Link    string
	Type    string
	FixedIn string
}

type PoCProber interface {
	HasPoC(link string) bool
}

type Matcher struct {
	log    *console.Logger
	prober PoCProber
}

type option func(*Matcher)

func WithPoCProber(p PoCProber) option {
	return func(m *Matcher) { m.prober = p }
}

func NewMatcher(log *console.Logger, opts ...option) Matcher {
	m := Matcher{log: log}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Match keeps the advisories fixed after installed. An advisory whose
// versions cannot be ordered is kept too, with its name flagged for a
// manual check.
func (m Matcher) Match(installed string, advisories []Advisory) []types.Vulnerability {
	vulns := []types.Vulnerability{}
	for _, adv := range advisories {
		name := adv.Title
		affected, err := version.LessThan(installed, adv.FixedIn)
		switch {
		case xerrors.Is(err, types.ErrUnparseable):
			m.log.Alert(1, "Unable to compare version. Please check this vulnerability : %s", adv.Title)
			m.log.Debugw("Version comparison failed", "installed", installed, "fixed_in", adv.FixedIn, "err", err)
			name = toCheckPrefix + adv.Title
		case !affected:
			continue
		default:
			m.log.Alert(1, "%s", adv.Title)
			m.log.Info(1, "[+] Fixed in version %s", adv.FixedIn)
		}

		vulns = append(vulns, types.Vulnerability{
			Name:    name,
			Link:    adv.Link,
			Type:    adv.Type,
			FixedIn: adv.FixedIn,
			PoC:     m.poc(adv.Link),
		})
	}
	return vulns
}

func (m Matcher) poc(link string) types.PoC {
	if m.prober != nil && link != "" && m.prober.HasPoC(link) {
		return types.PoCYes
	}
	return types.PoCCheck
}
