package webcache

import (
	"io"
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// page is the parsed form of one fetched HTML page.
type page struct {
	// Text is the visible text with whitespace collapsed.
	Text string

	// Links are absolute same-host links, sorted and de-duplicated.
	Links []string

	// Phones and Emails are text fragments that look like contact details.
	Phones []string
	Emails []string

	// Items are headings of category-specific blocks (news posts,
	// service tiles, department sections).
	Items []string
}

// itemRule selects category blocks: an element among tags whose class
// contains one of classes, headed by one of headings, with more than
// minText characters of text.
type itemRule struct {
	tags     []atom.Atom
	classes  []string
	headings []atom.Atom
	minText  int
}

var itemRules = map[string]itemRule{
	"news": {
		tags:     []atom.Atom{atom.Article, atom.Div},
		classes:  []string{"news", "post"},
		headings: []atom.Atom{atom.H1, atom.H2, atom.H3},
		minText:  50,
	},
	"services": {
		tags:     []atom.Atom{atom.Div, atom.Li},
		classes:  []string{"service", "item"},
		headings: []atom.Atom{atom.H3, atom.H4, atom.Strong},
		minText:  20,
	},
	"departments": {
		tags:     []atom.Atom{atom.Div, atom.Section},
		classes:  []string{"department", "dept"},
		headings: []atom.Atom{atom.H2, atom.H3},
		minText:  30,
	},
}

// parsePage extracts text, links and category enrichment from an HTML
// document. base resolves relative links.
func parsePage(r io.Reader, base *url.URL, category string) (*page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	p := &page{Text: nodeText(doc)}
	p.Links = sameHostLinks(doc, base)
	if category == "contact" {
		p.Phones, p.Emails = contactFragments(doc)
	}
	if rule, ok := itemRules[category]; ok {
		p.Items = findItems(doc, rule)
	}
	return p, nil
}

func skipped(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Noscript, atom.Template:
		return true
	}
	return false
}

// nodeText returns the visible text under n with runs of whitespace
// collapsed to single spaces.
func nodeText(n *html.Node) string {
	var parts []string
	walkText(n, func(s string) { parts = append(parts, s) })
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

func walkText(n *html.Node, fn func(string)) {
	if skipped(n) || n.Type == html.CommentNode {
		return
	}
	if n.Type == html.TextNode {
		fn(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, fn)
	}
}

func walk(n *html.Node, fn func(*html.Node) bool) {
	if !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func sameHostLinks(doc *html.Node, base *url.URL) []string {
	if base == nil {
		return nil
	}
	seen := make(map[string]bool)
	walk(doc, func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			href := strings.TrimSpace(attr(n, "href"))
			if href == "" {
				return true
			}
			ref, err := url.Parse(href)
			if err != nil {
				return true
			}
			abs := base.ResolveReference(ref)
			abs.Fragment = ""
			if abs.Host == base.Host && (abs.Scheme == "http" || abs.Scheme == "https") {
				seen[abs.String()] = true
			}
		}
		return true
	})
	links := make([]string, 0, len(seen))
	for l := range seen {
		links = append(links, l)
	}
	sort.Strings(links)
	return links
}

func contactFragments(doc *html.Node) (phones, emails []string) {
	walkText(doc, func(s string) {
		s = strings.Join(strings.Fields(s), " ")
		if len(s) <= 5 {
			return
		}
		if strings.Contains(s, "@") && strings.Contains(s, ".") {
			emails = append(emails, s)
		}
		if strings.Contains(s, "+") || strings.Contains(s, "263") ||
			strings.Contains(s, "077") || strings.Contains(s, "078") {
			phones = append(phones, s)
		}
	})
	return phones, emails
}

func findItems(doc *html.Node, rule itemRule) []string {
	var items []string
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || !hasAtom(rule.tags, n.DataAtom) {
			return true
		}
		class := strings.ToLower(attr(n, "class"))
		if !containsAny(class, rule.classes) {
			return true
		}
		heading := firstElement(n, rule.headings)
		if heading == nil {
			return true
		}
		if len(nodeText(n)) <= rule.minText {
			return true
		}
		if title := nodeText(heading); title != "" {
			items = append(items, title)
		}
		return false
	})
	return items
}

func firstElement(n *html.Node, atoms []atom.Atom) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) bool {
		if found != nil {
			return false
		}
		if c != n && c.Type == html.ElementNode && hasAtom(atoms, c.DataAtom) {
			found = c
			return false
		}
		return true
	})
	return found
}

func hasAtom(atoms []atom.Atom, a atom.Atom) bool {
	for _, x := range atoms {
		if x == a {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
