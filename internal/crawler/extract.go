package crawler

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/nao1215/siteaudit/internal/model"
)

// blankRuns matches three or more consecutive newlines.
var blankRuns = regexp.MustCompile(`\n{3,}`)

// Extract parses html once and returns its visible text and the same-origin
// links found on it. See ExtractText and ExtractLinks.
func Extract(html, pageURL, origin string) model.PageRecord {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return model.PageRecord{Links: []string{}}
	}
	return model.PageRecord{
		Text:  documentText(doc),
		Links: documentLinks(doc, pageURL, origin),
	}
}

// ExtractText returns the concatenated text nodes of html with every run of
// three or more newlines collapsed to one. Other whitespace is kept as is.
// Unparseable input yields empty text.
func ExtractText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return documentText(doc)
}

// ExtractLinks returns the href targets of all anchors in html, resolved
// against pageURL, without fragments, that start with origin. Each link
// appears once, in order of first appearance.
func ExtractLinks(html, pageURL, origin string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return []string{}
	}
	return documentLinks(doc, pageURL, origin)
}

func documentText(doc *goquery.Document) string {
	return blankRuns.ReplaceAllString(doc.Text(), "\n")
}

func documentLinks(doc *goquery.Document, pageURL, origin string) []string {
	links := make([]string, 0)
	base, err := url.Parse(pageURL)
	if err != nil {
		return links
	}

	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		link, ok := resolveLink(base, href)
		if !ok || !strings.HasPrefix(link, origin) || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links
}

// resolveLink turns an href into an absolute http(s) URL without fragment.
// Empty and fragment-only hrefs point back at the page itself and are skipped.
func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}

	u, err := base.Parse(href)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}
