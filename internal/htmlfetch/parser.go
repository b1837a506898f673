package htmlfetch

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	xhtml "golang.org/x/net/html"

	apperrors "github.com/Adithya-Monish-Kumar-K/wordindex/pkg/errors"
)

// skipped holds elements whose links and text are never part of a page's
// content.
var skipped = map[string]bool{
	"head":     true,
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
}

// Parser normalizes locations and reads links and text out of HTML. It is
// safe for concurrent use.
type Parser struct {
	policy *bluemonday.Policy
}

func NewParser() *Parser {
	policy := bluemonday.StrictPolicy()
	policy.AddSpaceWhenStrippingTag(true)
	policy.SkipElementsContent("head", "noscript", "svg")
	return &Parser{policy: policy}
}

// Normalize returns the canonical form of an absolute http or https
// location: scheme and host lowercased, fragment dropped and an empty path
// replaced by "/".
func (p *Parser) Normalize(location string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(location))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", apperrors.ErrInvalidInput, location, err)
	}
	return normalizeURL(u)
}

func normalizeURL(u *url.URL) (string, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: %q is not an http(s) location", apperrors.ErrInvalidInput, u.String())
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", apperrors.ErrInvalidInput, u.String())
	}
	n := *u
	n.Scheme = scheme
	n.Host = strings.ToLower(u.Host)
	n.Fragment = ""
	n.RawFragment = ""
	if n.Path == "" && n.RawPath == "" {
		n.Path = "/"
	}
	return n.String(), nil
}

// ExtractLinks returns the normalized targets of every <a href> in content
// outside head, script, style, noscript and svg, resolved against location.
// Links are deduplicated and keep document order. Targets that are not
// http(s) are dropped.
func (p *Parser) ExtractLinks(location, content string) []string {
	base, err := url.Parse(location)
	if err != nil {
		return nil
	}
	var (
		links []string
		seen  = make(map[string]bool)
		depth int
	)
	z := xhtml.NewTokenizer(strings.NewReader(content))
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return links
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			tok := z.Token()
			if skipped[tok.Data] {
				if tok.Type == xhtml.StartTagToken {
					depth++
				}
				continue
			}
			if depth > 0 || tok.Data != "a" {
				continue
			}
			for _, attr := range tok.Attr {
				if attr.Key != "href" {
					continue
				}
				target, err := base.Parse(strings.TrimSpace(attr.Val))
				if err != nil {
					break
				}
				link, err := normalizeURL(target)
				if err != nil || seen[link] {
					break
				}
				seen[link] = true
				links = append(links, link)
				break
			}
		case xhtml.EndTagToken:
			name, _ := z.TagName()
			if skipped[string(name)] && depth > 0 {
				depth--
			}
		}
	}
}

// Text strips all markup from content and decodes entities. Script, style,
// head, noscript and svg contents are dropped and every removed tag leaves a
// space, so words on either side of a tag stay separate.
func (p *Parser) Text(content string) string {
	return html.UnescapeString(p.policy.Sanitize(content))
}
