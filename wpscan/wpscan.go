// Package wpscan queries the WPScan v3 vulnerability database.
package wpscan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/types"
	"github.com/aquasecurity/cms-auditor/utils"
	"github.com/aquasecurity/cms-auditor/vulnerability"
)

const (
	apiURL  = "https://wpscan.com/api/v3/"
	vulnURL = "https://wpscan.com/vulnerability/"

	// WPScan expects "Authorization: Token token=<token>".
	tokenType = "Token"
)

type Client struct {
	*options
}

type option func(*options)

type options struct {
	apiURL     string
	vulnURL    string
	token      string
	httpClient *http.Client
}

func WithAPIURL(url string) option {
	return func(opts *options) { opts.apiURL = url }
}

func WithVulnURL(url string) option {
	return func(opts *options) { opts.vulnURL = url }
}

func WithToken(token string) option {
	return func(opts *options) { opts.token = token }
}

func NewClient(opts ...option) Client {
	o := &options{
		apiURL:  apiURL,
		vulnURL: vulnURL,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.httpClient = http.DefaultClient
	if o.token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: "token=" + o.token,
			TokenType:   tokenType,
		})
		o.httpClient = oauth2.NewClient(context.Background(), src)
	}

	return Client{
		options: o,
	}
}

// Core returns the advisories of a WordPress release.
func (c Client) Core(ctx context.Context, version string) ([]vulnerability.Advisory, error) {
	path := "wordpresses/" + strings.ReplaceAll(version, ".", "")
	return c.advisories(ctx, path, version)
}

// Addon returns the advisories of a plugin or a theme.
func (c Client) Addon(ctx context.Context, addonType types.AddonType, slug string) ([]vulnerability.Advisory, error) {
	return c.advisories(ctx, fmt.Sprintf("%s/%s", addonType, slug), slug)
}

func (c Client) advisories(ctx context.Context, path, key string) ([]vulnerability.Advisory, error) {
	body, err := c.get(ctx, c.apiURL+path)
	if err != nil {
		return nil, xerrors.Errorf("failed to query WPScan: %w", err)
	}
	if !gjson.ValidBytes(body) {
		return nil, xerrors.Errorf("invalid JSON from %s: %w", path, types.ErrUpstreamUnavailable)
	}

	var entry gjson.Result
	gjson.ParseBytes(body).ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			entry = v
			return false
		}
		return true
	})
	if !entry.Exists() {
		return nil, xerrors.Errorf("no entry for %s: %w", key, types.ErrNotFound)
	}

	var advisories []vulnerability.Advisory
	for _, v := range entry.Get("vulnerabilities").Array() {
		advisories = append(advisories, vulnerability.Advisory{
			Title:   v.Get("title").String(),
			Link:    c.vulnURL + v.Get("id").String(),
			Type:    v.Get("vuln_type").String(),
			FixedIn: v.Get("fixed_in").String(),
		})
	}
	return advisories, nil
}

// get goes through the oauth2 client rather than utils.FetchURL, which builds
// its own transport and would drop the token.
func (c Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, xerrors.Errorf("unable to build a request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("HTTP error. url: %s, err: %v: %w", url, err, types.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if err = utils.CheckStatus(url, resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.Errorf("failed to read the response: %v: %w", err, types.ErrUpstreamUnavailable)
	}
	return body, nil
}
