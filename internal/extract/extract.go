// Package extract parses lookup service responses into status results.
//
// The service returns a small, positionally stable HTML fragment. Fields are
// located by position inside the voter container rather than by stable
// identifiers, so this package is the only place that knows the response
// shape and should be updated together with the fixtures under testdata.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/JakeFAU/voterstat/internal/lookup"
)

const (
	voterSelector = "div#voter"
	detailsChild  = 1
	partyIndex    = 3
	ballotIndex   = 6
)

// Extractor implements lookup.Extractor for the county voter lookup page.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract locates the voter container and reads the registration status from
// its first class token, then the party and ballot status from fixed positions
// in the flattened details block. A missing ballot entry yields an empty
// BallotStatus.
func (e *Extractor) Extract(body string) (lookup.Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return lookup.Result{}, fmt.Errorf("%w: parse markup: %w", lookup.ErrParse, err)
	}

	voter := doc.Find(voterSelector).First()
	if voter.Length() == 0 {
		return lookup.Result{}, fmt.Errorf("%w: %s not found", lookup.ErrParse, voterSelector)
	}
	class, _ := voter.Attr("class")
	tokens := strings.Fields(class)
	if len(tokens) == 0 {
		return lookup.Result{}, fmt.Errorf("%w: %s has no class", lookup.ErrParse, voterSelector)
	}

	details := voter.ChildrenFiltered("div").Eq(detailsChild)
	if details.Length() == 0 {
		return lookup.Result{}, fmt.Errorf("%w: %s has no details block", lookup.ErrParse, voterSelector)
	}
	nodes := descendants(details.Get(0))
	if len(nodes) <= partyIndex {
		return lookup.Result{}, fmt.Errorf("%w: details block has %d nodes, want at least %d",
			lookup.ErrParse, len(nodes), partyIndex+1)
	}

	res := lookup.Result{
		RegistrationStatus: tokens[0],
		Party:              nodeText(nodes[partyIndex]),
	}
	if len(nodes) > ballotIndex {
		res.BallotStatus = nodeText(nodes[ballotIndex])
	}
	return res, nil
}

// descendants flattens the subtree under n in document order, excluding n.
func descendants(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(p *html.Node) {
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			out = append(out, c)
			walk(c)
		}
	}
	walk(n)
	return out
}

func nodeText(n *html.Node) string {
	if n.Type != html.ElementNode {
		return strings.TrimSpace(n.Data)
	}
	var sb strings.Builder
	for _, d := range descendants(n) {
		if d.Type == html.TextNode {
			sb.WriteString(d.Data)
		}
	}
	return strings.TrimSpace(sb.String())
}
