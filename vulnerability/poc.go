package vulnerability

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"

	"github.com/aquasecurity/cms-auditor/console"
	"github.com/aquasecurity/cms-auditor/utils"
)

// DefaultPoCSelector matches the proof-of-concept blocks of WPScan advisory pages.
const DefaultPoCSelector = "pre.poc"

// PageProber looks for a proof-of-concept block in an advisory page.
type PageProber struct {
	selector string
	log      *console.Logger
}

func NewPageProber(selector string, log *console.Logger) PageProber {
	return PageProber{selector: selector, log: log}
}

// HasPoC never fails: an unreachable page only means nothing was found.
func (p PageProber) HasPoC(link string) bool {
	b, err := utils.FetchURL(link)
	if err != nil {
		p.log.Debugw("Unable to fetch the advisory page", "url", link, "err", err)
		return false
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(b))
	if err != nil {
		p.log.Debugw("Unable to parse the advisory page", "url", link, "err", err)
		return false
	}
	return doc.Find(p.selector).Length() > 0
}
