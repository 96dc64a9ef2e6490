package crawler

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Extractor pulls absolute link and image URLs out of markup.
// PageFetcher depends on this interface so tests and alternative parsers
// can replace the HTML implementation.
type Extractor interface {
	ExtractLinks(markup []byte, baseURL string) ([]string, error)
	ExtractImageSources(markup []byte, baseURL string) ([]string, error)
}

// Parser extracts anchors and image sources from HTML.
//
// It is built on golang.org/x/net/html, which tolerates the broken markup
// common on gallery sites. A <base href> element, when present, replaces the
// page URL for resolution.
type Parser struct{}

// ParseResult holds the URLs found in one document, resolved and
// canonicalized, in document order without duplicates.
type ParseResult struct {
	// Title is the text of the <title> element.
	Title string

	// Links are anchor targets.
	Links []string

	// Images are image sources from <img src>, <img data-src>, srcset
	// candidates and <source srcset>. They are not yet filtered by extension.
	Images []string
}

// NewParser returns a Parser.
func NewParser() *Parser {
	return &Parser{}
}

// ExtractLinks implements Extractor.
func (p *Parser) ExtractLinks(markup []byte, baseURL string) ([]string, error) {
	result, err := p.Parse(bytes.NewReader(markup), baseURL)
	if err != nil {
		return nil, err
	}
	return result.Links, nil
}

// ExtractImageSources implements Extractor.
func (p *Parser) ExtractImageSources(markup []byte, baseURL string) ([]string, error) {
	result, err := p.Parse(bytes.NewReader(markup), baseURL)
	if err != nil {
		return nil, err
	}
	return result.Images, nil
}

// Parse walks the document once and collects links and image sources.
func (p *Parser) Parse(content io.Reader, baseURL string) (*ParseResult, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	w := &walker{
		base:       base,
		result:     &ParseResult{Links: []string{}, Images: []string{}},
		seenLinks:  make(map[string]struct{}),
		seenImages: make(map[string]struct{}),
	}
	w.walk(doc)
	return w.result, nil
}

type walker struct {
	base       *url.URL
	baseSet    bool
	result     *ParseResult
	seenLinks  map[string]struct{}
	seenImages map[string]struct{}
}

func (w *walker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		w.element(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *walker) element(n *html.Node) {
	switch n.Data {
	case "base":
		if w.baseSet {
			return
		}
		if href := getAttr(n, "href"); href != "" {
			if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
				w.base = w.base.ResolveReference(u)
				w.baseSet = true
			}
		}

	case "title":
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			w.result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a", "area":
		w.addLink(getAttr(n, "href"))

	case "img":
		w.addImage(getAttr(n, "src"))
		w.addImage(getAttr(n, "data-src"))
		for _, candidate := range parseSrcset(getAttr(n, "srcset")) {
			w.addImage(candidate)
		}

	case "source":
		for _, candidate := range parseSrcset(getAttr(n, "srcset")) {
			w.addImage(candidate)
		}
	}
}

func (w *walker) addLink(href string) {
	resolved, ok := Resolve(w.base, href)
	if !ok {
		return
	}
	if _, dup := w.seenLinks[resolved]; dup {
		return
	}
	w.seenLinks[resolved] = struct{}{}
	w.result.Links = append(w.result.Links, resolved)
}

func (w *walker) addImage(src string) {
	resolved, ok := Resolve(w.base, src)
	if !ok {
		return
	}
	if _, dup := w.seenImages[resolved]; dup {
		return
	}
	w.seenImages[resolved] = struct{}{}
	w.result.Images = append(w.result.Images, resolved)
}

// parseSrcset returns the URLs of a srcset attribute, dropping the width
// and density descriptors.
func parseSrcset(srcset string) []string {
	if strings.TrimSpace(srcset) == "" {
		return nil
	}
	var urls []string
	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(candidate)
		if len(fields) > 0 {
			urls = append(urls, fields[0])
		}
	}
	return urls
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
