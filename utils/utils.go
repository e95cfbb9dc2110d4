package utils

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/parnurzeal/gorequest"
	"github.com/spf13/afero"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/types"
)

// HTTPError is returned by FetchURL for any non-2xx answer.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error. status code: %d, url: %s", e.StatusCode, e.URL)
}

func (e *HTTPError) Is(target error) bool {
	return target == types.ErrUpstreamUnavailable
}

// CheckStatus returns an HTTPError unless statusCode is 2xx.
func CheckStatus(url string, statusCode int) error {
	if statusCode < 200 || statusCode > 299 {
		return &HTTPError{URL: url, StatusCode: statusCode}
	}
	return nil
}

type fetchOptions struct {
	noRedirect bool
}

type FetchOption func(*fetchOptions)

// WithoutRedirect makes a redirect answer count as a failure, the release
// pages of unpublished addons redirect to a search page.
func WithoutRedirect() FetchOption {
	return func(o *fetchOptions) {
		o.noRedirect = true
	}
}

// FetchURL returns HTTP response body
func FetchURL(url string, opts ...FetchOption) ([]byte, error) {
	o := &fetchOptions{}
	for _, opt := range opts {
		opt(o)
	}

	req := gorequest.New().Get(url)
	if o.noRedirect {
		req.RedirectPolicy(func(gorequest.Request, []gorequest.Request) error {
			return http.ErrUseLastResponse
		})
	}

	resp, body, errs := req.EndBytes()
	if len(errs) > 0 {
		return nil, xerrors.Errorf("HTTP error. url: %s, err: %v: %w", url, errs[0], types.ErrUpstreamUnavailable)
	}
	if err := CheckStatus(url, resp.StatusCode); err != nil {
		return nil, err
	}
	return body, nil
}

// Major returns major version
func Major(version string) (majorVersion string) {
	return strings.Split(version, ".")[0]
}

func Exists(fs afero.Fs, path string) (bool, error) {
	_, err := fs.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return true, err
}
