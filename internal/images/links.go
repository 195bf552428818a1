package images

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"path"
	"strings"

	"github.com/nao1215/siteaudit/internal/model"
)

// extensions are the image types that get captioned.
var extensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// IsImageLink reports whether link points at a captionable image under baseURL.
// The extension check ignores case and any query string.
func IsImageLink(link, baseURL string) bool {
	if !strings.HasPrefix(link, baseURL) {
		return false
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return extensions[strings.ToLower(path.Ext(u.Path))]
}

// Links returns every image link recorded in the content map, in page order
// and then link order, without duplicates.
func Links(cm *model.ContentMap, baseURL string) []string {
	seen := make(map[string]bool)
	links := make([]string, 0)
	for _, page := range cm.URLs() {
		rec, _ := cm.Get(page)
		for _, link := range rec.Links {
			if seen[link] || !IsImageLink(link, baseURL) {
				continue
			}
			seen[link] = true
			links = append(links, link)
		}
	}
	return links
}

// PageImages returns the image links of one page in link order.
func PageImages(rec model.PageRecord, baseURL string) []string {
	links := make([]string, 0)
	for _, link := range rec.Links {
		if IsImageLink(link, baseURL) {
			links = append(links, link)
		}
	}
	return links
}

// FileName returns the local file name an image is stored under: the last
// segment of its path with a short hash of the full URL before the
// extension, so "/a/logo.png" and "/b/logo.png" never share a file.
func FileName(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "/" || name == "." {
		return ""
	}
	ext := path.Ext(name)
	sum := sha256.Sum256([]byte(link))
	return strings.TrimSuffix(name, ext) + "-" + hex.EncodeToString(sum[:4]) + ext
}
