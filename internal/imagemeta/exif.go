package imagemeta

import (
	"errors"
	"strings"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
)

// ErrNoEXIF is returned when the data carries no EXIF block.
var ErrNoEXIF = errors.New("no EXIF data")

// exifTimeLayout is the fixed EXIF date format.
const exifTimeLayout = "2006:01:02 15:04:05"

// Info is the subset of EXIF data kept for a photo.
type Info struct {
	Make    string
	Model   string
	TakenAt time.Time
}

// Empty reports whether no field was found.
func (i Info) Empty() bool {
	return i.Make == "" && i.Model == "" && i.TakenAt.IsZero()
}

// TakenAtString formats TakenAt as RFC 3339, or "" when unknown.
func (i Info) TakenAtString() string {
	if i.TakenAt.IsZero() {
		return ""
	}
	return i.TakenAt.Format(time.RFC3339)
}

// Extract reads camera and capture-time tags from image bytes.
// It returns ErrNoEXIF when the image has no EXIF block, which is the
// normal case for PNG, GIF and most web-optimised JPEGs.
func Extract(data []byte) (Info, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil || len(rawExif) == 0 {
		return Info{}, ErrNoEXIF
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return Info{}, err
	}

	var info Info
	var fallback time.Time
	for _, entry := range entries {
		value := strings.TrimSpace(strings.Trim(entry.Formatted, "\x00"))
		switch entry.TagName {
		case "Make":
			info.Make = value
		case "Model":
			info.Model = value
		case "DateTimeOriginal":
			if t, err := time.Parse(exifTimeLayout, value); err == nil {
				info.TakenAt = t
			}
		case "DateTime":
			if t, err := time.Parse(exifTimeLayout, value); err == nil {
				fallback = t
			}
		}
	}
	if info.TakenAt.IsZero() {
		info.TakenAt = fallback
	}
	return info, nil
}
