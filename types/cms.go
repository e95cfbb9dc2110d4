package types

const (
	// StatusTodo is the report workflow marker every entity starts with.
	StatusTodo = "todo"

	// NotFound is the latest-version sentinel used until a release feed answers.
	NotFound = "Not found"

	// NoFile is the main-file sentinel used when no standard addon file exists.
	NoFile = "nofile"
)

type AddonType string

const (
	Plugins AddonType = "plugins"
	Themes  AddonType = "themes"
)

// AddonSubtypeMU marks WordPress must-use plugins.
const AddonSubtypeMU = "mu"

type Classification string

const (
	Altered Classification = "altered"
	Added   Classification = "added"
	Deleted Classification = "deleted"
)

type AlterationState string

const (
	StateUnknown   AlterationState = ""
	StateAltered   AlterationState = "YES"
	StateUnaltered AlterationState = "NO"
)

type PoC string

const (
	PoCUnset PoC = ""
	PoCYes   PoC = "YES"
	PoCCheck PoC = "CHECK"
)

type Alteration struct {
	Status string         `json:"status"`
	Target string         `json:"target"`
	File   string         `json:"file"`
	Type   Classification `json:"type"`
}

type Vulnerability struct {
	Name    string `json:"name"`
	Link    string `json:"link"`
	Type    string `json:"type"`
	FixedIn string `json:"fixed_in"`
	PoC     PoC    `json:"poc"`
}

type Addon struct {
	Name            string          `json:"name"`
	Type            AddonType       `json:"type"`
	Subtype         string          `json:"subtype,omitempty"`
	Status          string          `json:"status"`
	Path            string          `json:"path"`
	Filename        string          `json:"filename"`
	Version         string          `json:"version"`
	LastVersion     string          `json:"last_version"`
	LastReleaseDate string          `json:"last_release_date"`
	Link            string          `json:"link"`
	Altered         AlterationState `json:"altered"`
	Alterations     []Alteration    `json:"alterations"`
	Vulns           []Vulnerability `json:"vulns"`
	Notes           string          `json:"notes"`
}

func NewAddon(name string, addonType AddonType) *Addon {
	return &Addon{
		Name:        name,
		Type:        addonType,
		Status:      StatusTodo,
		LastVersion: NotFound,
		Alterations: []Alteration{},
		Vulns:       []Vulnerability{},
	}
}

// CVE is the YES/NO column of the addon reports.
func (a Addon) CVE() string {
	if len(a.Vulns) > 0 {
		return "YES"
	}
	return "NO"
}

// SetAlterations records a completed diff and keeps Altered consistent with it.
func (a *Addon) SetAlterations(alterations []Alteration) {
	if alterations == nil {
		alterations = []Alteration{}
	}
	a.Alterations = alterations
	a.Altered = StateUnaltered
	if len(alterations) > 0 {
		a.Altered = StateAltered
	}
}

type Core struct {
	Version      string          `json:"version"`
	VersionMajor string          `json:"version_major"`
	LastVersion  string          `json:"last_version"`
	Alterations  []Alteration    `json:"alterations"`
	Vulns        []Vulnerability `json:"vulns"`
	IgnoredFiles []string        `json:"-"`
	Notes        string          `json:"notes"`
}

func NewCore(ignored []string) Core {
	return Core{
		Alterations:  []Alteration{},
		Vulns:        []Vulnerability{},
		IgnoredFiles: ignored,
	}
}

// AddNote appends a note, keeping previous ones.
func (c *Core) AddNote(note string) {
	if c.Notes == "" {
		c.Notes = note
		return
	}
	c.Notes += " " + note
}
