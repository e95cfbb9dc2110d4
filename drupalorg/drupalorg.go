// Package drupalorg reads release information published on drupal.org.
package drupalorg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/types"
	"github.com/aquasecurity/cms-auditor/utils"
	"github.com/aquasecurity/cms-auditor/version"
	"github.com/aquasecurity/cms-auditor/vulnerability"
)

const (
	historyURL  = "https://updates.drupal.org/release-history/"
	siteURL     = "https://www.drupal.org"
	downloadURL = "https://ftp.drupal.org/files/projects/"

	securityUpdate = "Security update"
)

var branchPrefix = regexp.MustCompile(`^\d+\.x-`)

type Project struct {
	Title     string    `xml:"title"`
	ShortName string    `xml:"short_name"`
	Releases  []Release `xml:"releases>release"`
}

type Release struct {
	Name        string `xml:"name"`
	Version     string `xml:"version"`
	Tag         string `xml:"tag"`
	Status      string `xml:"status"`
	ReleaseLink string `xml:"release_link"`
	Date        string `xml:"date"`
	Terms       []Term `xml:"terms>term"`
}

type Term struct {
	Name  string `xml:"name"`
	Value string `xml:"value"`
}

// IsSecurityUpdate reports whether the release is flagged as a security update.
func (r Release) IsSecurityUpdate() bool {
	return lo.ContainsBy(r.Terms, func(t Term) bool {
		return t.Name == "Release type" && t.Value == securityUpdate
	})
}

// Page is what the releases page of a project tells about its latest release.
type Page struct {
	Version string
	Date    string
	Link    string
}

type Client struct {
	*options
}

type option func(*options)

type options struct {
	historyURL  string
	siteURL     string
	downloadURL string
}

func WithHistoryURL(url string) option {
	return func(opts *options) { opts.historyURL = url }
}

func WithSiteURL(url string) option {
	return func(opts *options) { opts.siteURL = url }
}

func WithDownloadURL(url string) option {
	return func(opts *options) { opts.downloadURL = url }
}

func NewClient(opts ...option) Client {
	o := &options{
		historyURL:  historyURL,
		siteURL:     siteURL,
		downloadURL: downloadURL,
	}
	for _, opt := range opts {
		opt(o)
	}
	return Client{
		options: o,
	}
}

// History fetches the release history of a project on the branch of major.
// Contributed projects of Drupal 8 and later publish a single "current" branch.
func (c Client) History(project, major string) (Project, error) {
	channel := major + ".x"
	if project != "drupal" && major != "7" {
		channel = "current"
	}

	url := c.historyURL + project + "/" + channel
	body, err := utils.FetchURL(url)
	if err != nil {
		return Project{}, xerrors.Errorf("failed to fetch the release history: %w", err)
	}

	var p Project
	if err = xml.Unmarshal(body, &p); err != nil {
		return Project{}, xerrors.Errorf("failed to decode %s: %v: %w", url, err, types.ErrUpstreamUnavailable)
	}
	return p, nil
}

// CoreLatest returns the tag of the first release of the core branch.
func (c Client) CoreLatest(major string) (string, error) {
	return version.Latest(c.historyURL+"drupal/"+major+".x", extractLatestTag)
}

func extractLatestTag(body []byte) (string, error) {
	var p Project
	if err := xml.Unmarshal(body, &p); err != nil {
		return "", xerrors.Errorf("failed to decode the release history: %v: %w", err, types.ErrUpstreamUnavailable)
	}
	// drupal.org answers unknown branches with an error document
	if len(p.Releases) == 0 || p.Releases[0].Tag == "" {
		return "", xerrors.Errorf("no release in the history: %w", types.ErrNotFound)
	}
	return p.Releases[0].Tag, nil
}

// SecurityAdvisories turns the security releases of a project into
// advisories, each one fixed in the release that carries it.
func (c Client) SecurityAdvisories(project, major string) ([]vulnerability.Advisory, error) {
	p, err := c.History(project, major)
	if err != nil {
		return nil, err
	}

	var advisories []vulnerability.Advisory
	for _, r := range p.Releases {
		if !r.IsSecurityUpdate() {
			continue
		}
		advisories = append(advisories, vulnerability.Advisory{
			Title:   fmt.Sprintf("%s %s - %s", p.Title, r.Version, securityUpdate),
			Link:    r.ReleaseLink,
			Type:    securityUpdate,
			FixedIn: StripBranch(r.Version),
		})
	}
	return advisories, nil
}

// ProjectLatest scrapes the releases page of a contributed project.
// Unpublished projects redirect elsewhere, which counts as a failure.
func (c Client) ProjectLatest(project string) (Page, error) {
	link := fmt.Sprintf("%s/project/%s/releases", c.siteURL, project)
	body, err := utils.FetchURL(link, utils.WithoutRedirect())
	if err != nil {
		return Page{}, xerrors.Errorf("failed to fetch the releases page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Page{}, xerrors.Errorf("failed to parse %s: %v: %w", link, err, types.ErrUpstreamUnavailable)
	}

	// release titles read "<project> <version>"
	title := strings.TrimSpace(doc.Find("h2 a").First().Text())
	date, _ := doc.Find("time[pubdate]").First().Attr("datetime")
	i := strings.LastIndex(title, " ")
	if i < 0 || date == "" {
		return Page{}, nil
	}

	return Page{
		Version: title[i+1:],
		Date:    utils.NormalizeDate(date),
		Link:    link,
	}, nil
}

func (c Client) CoreArchiveURL(ver string) string {
	return fmt.Sprintf("%sdrupal-%s.zip", c.downloadURL, ver)
}

func (c Client) ProjectArchiveURL(project, ver string) string {
	return fmt.Sprintf("%s%s-%s.zip", c.downloadURL, project, ver)
}

// CoreArchiveRoot is the top directory of a core archive.
func CoreArchiveRoot(ver string) string {
	return "drupal-" + ver
}

// StripBranch drops the core branch prefix of contributed versions, so that
// "7.x-3.20" orders as "3.20".
func StripBranch(v string) string {
	return branchPrefix.ReplaceAllString(v, "")
}
