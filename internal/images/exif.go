package images

import (
	"strings"

	exif "github.com/dsoprea/go-exif/v3"
)

// hintTags are the EXIF tags whose text is passed to the captioning model.
var hintTags = []string{"ImageDescription", "Artist", "Copyright"}

// exifHints returns "Tag: value" lines for the hint tags present in data.
// Images without EXIF yield "".
func exifHints(data []byte) string {
	raw, err := exif.SearchAndExtractExif(data)
	if err != nil {
		return ""
	}
	entries, _, err := exif.GetFlatExifData(raw, nil)
	if err != nil {
		return ""
	}

	values := make(map[string]string)
	for _, entry := range entries {
		v := strings.TrimSpace(strings.Trim(entry.Formatted, "\x00"))
		if v == "" {
			continue
		}
		if _, ok := values[entry.TagName]; !ok {
			values[entry.TagName] = v
		}
	}

	var lines []string
	for _, tag := range hintTags {
		if v, ok := values[tag]; ok {
			lines = append(lines, tag+": "+v)
		}
	}
	return strings.Join(lines, "\n")
}
