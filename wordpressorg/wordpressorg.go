// Package wordpressorg reads release information published on wordpress.org.
package wordpressorg

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/types"
	"github.com/aquasecurity/cms-auditor/utils"
	"github.com/aquasecurity/cms-auditor/version"
)

const (
	releaseURL       = "https://api.wordpress.org/core/version-check/1.7/"
	siteURL          = "https://wordpress.org/"
	coreDownloadURL  = "https://wordpress.org/"
	addonDownloadURL = "https://downloads.wordpress.org/"

	// CoreArchiveRoot is the top directory of every core archive.
	CoreArchiveRoot = "wordpress"

	trunk = "trunk"
)

// Release is the latest published release of an addon.
type Release struct {
	Version string
	Date    string
	Link    string
}

type Client struct {
	*options
}

type option func(*options)

type options struct {
	releaseURL       string
	siteURL          string
	coreDownloadURL  string
	addonDownloadURL string
}

func WithReleaseURL(url string) option {
	return func(opts *options) { opts.releaseURL = url }
}

func WithSiteURL(url string) option {
	return func(opts *options) { opts.siteURL = url }
}

func WithCoreDownloadURL(url string) option {
	return func(opts *options) { opts.coreDownloadURL = url }
}

func WithAddonDownloadURL(url string) option {
	return func(opts *options) { opts.addonDownloadURL = url }
}

func NewClient(opts ...option) Client {
	o := &options{
		releaseURL:       releaseURL,
		siteURL:          siteURL,
		coreDownloadURL:  coreDownloadURL,
		addonDownloadURL: addonDownloadURL,
	}
	for _, opt := range opts {
		opt(o)
	}
	return Client{
		options: o,
	}
}

// CoreLatest returns the version of the first offer of the version-check API.
func (c Client) CoreLatest() (string, error) {
	return version.Latest(c.releaseURL, extractCoreLatest)
}

func extractCoreLatest(body []byte) (string, error) {
	v := gjson.GetBytes(body, "offers.0.version")
	if !v.Exists() || v.String() == "" {
		return "", xerrors.Errorf("no offer in the version-check answer: %w", types.ErrNotFound)
	}
	return v.String(), nil
}

func (c Client) CoreArchiveURL(ver string) string {
	return fmt.Sprintf("%swordpress-%s.zip", c.coreDownloadURL, ver)
}

// AddonArchiveURL returns the download link of an addon release. A trunk
// version points to the development snapshot.
func (c Client) AddonArchiveURL(addonType types.AddonType, name, ver string) string {
	kind := "plugin"
	if addonType == types.Themes {
		kind = "theme"
	}
	if ver == trunk {
		return fmt.Sprintf("%s%s/%s.zip", c.addonDownloadURL, kind, name)
	}
	return fmt.Sprintf("%s%s/%s.%s.zip", c.addonDownloadURL, kind, name, ver)
}

// AddonPage returns the info page of an addon.
func (c Client) AddonPage(addonType types.AddonType, name string) string {
	return fmt.Sprintf("%s%s/%s/", c.siteURL, addonType, name)
}

// AddonLatest scrapes the info page of an addon. Addons that are not
// published on wordpress.org redirect to a search page, which counts as a
// failure. A page without release details yields an empty Release.
func (c Client) AddonLatest(addonType types.AddonType, name string) (Release, error) {
	link := c.AddonPage(addonType, name)
	body, err := utils.FetchURL(link, utils.WithoutRedirect())
	if err != nil {
		return Release{}, xerrors.Errorf("failed to fetch the addon page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Release{}, xerrors.Errorf("failed to parse %s: %v: %w", link, err, types.ErrUpstreamUnavailable)
	}

	var ver, date string
	switch addonType {
	case types.Themes:
		ver = labelled(doc, "Version:")
		date = labelled(doc, "Last updated:")
	default:
		ver = ldField(doc, "softwareVersion")
		date = ldField(doc, "dateModified")
	}
	if ver == "" || date == "" {
		return Release{}, nil
	}

	return Release{
		Version: ver,
		Date:    utils.NormalizeDate(date),
		Link:    link,
	}, nil
}

// ldField returns the first value of field in the ld+json blocks of the page.
func ldField(doc *goquery.Document, field string) string {
	var value string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		r := gjson.Parse(s.Text())
		if !r.IsArray() {
			value = r.Get(field).String()
			return value == ""
		}
		r.ForEach(func(_, e gjson.Result) bool {
			value = e.Get(field).String()
			return value == ""
		})
		return value == ""
	})
	return value
}

// labelled returns the text of the <strong> element following label, as in
// "Version: <strong>1.2</strong>".
func labelled(doc *goquery.Document, label string) string {
	var value string
	doc.Find("strong").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.HasPrefix(strings.TrimSpace(s.Parent().Text()), label) {
			value = strings.TrimSpace(s.Text())
			return false
		}
		return true
	})
	return value
}
