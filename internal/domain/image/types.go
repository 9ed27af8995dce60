package image

import (
	"strings"
	"time"
)

// Format is an output encoding.
type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpeg"
	FormatAVIF Format = "avif"
	FormatPNG  Format = "png"
)

// ParseFormat normalises a format name. "jpg" maps to jpeg.
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "webp":
		return FormatWebP, true
	case "jpeg", "jpg":
		return FormatJPEG, true
	case "avif":
		return FormatAVIF, true
	case "png":
		return FormatPNG, true
	default:
		return "", false
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatWebP:
		return "image/webp"
	case FormatJPEG:
		return "image/jpeg"
	case FormatAVIF:
		return "image/avif"
	case FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// SourceImage describes an uploaded original. Read-only input to the pipeline.
type SourceImage struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	// Width and Height are the displayed dimensions, after EXIF orientation.
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Format   string `json:"format"`
	Size     int64  `json:"size"`
	HasAlpha bool   `json:"has_alpha"`
	// Density in dots per inch; 72 when the file does not say.
	Density int `json:"density"`
	// Orientation is the EXIF orientation tag, 1 when absent.
	Orientation int `json:"orientation"`
}

// Artifact is one generated (variant, format) file. Width and Height are the
// nominal target of the variant, not the measured output size.
type Artifact struct {
	Path    string `json:"path"`
	Size    int64  `json:"size"`
	Format  Format `json:"format"`
	Variant string `json:"variant"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	URL     string `json:"url"`
}

// ResultSet maps variant name to format to artifact.
type ResultSet map[string]map[Format]*Artifact

// Count returns the number of artifacts in the set.
func (r ResultSet) Count() int {
	n := 0
	for _, formats := range r {
		n += len(formats)
	}
	return n
}

// SkipReason explains why a requested variant produced nothing.
type SkipReason string

const (
	SkipUnknownVariant    SkipReason = "unknown_variant"
	SkipSmallerThanSource SkipReason = "smaller_than_source"
)

type Skip struct {
	Variant string     `json:"variant"`
	Reason  SkipReason `json:"reason"`
}

// Failure records one (variant, format) pair that could not be produced.
type Failure struct {
	Variant string `json:"variant"`
	Format  Format `json:"format"`
	Err     error  `json:"-"`
}

// Report is the outcome of one generation batch.
type Report struct {
	Source   *SourceImage  `json:"source"`
	Results  ResultSet     `json:"results"`
	Failures []Failure     `json:"failures,omitempty"`
	Skipped  []Skip        `json:"skipped,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// ValidationResult captures the outcome of upload security validation.
type ValidationResult struct {
	IsValid      bool
	Format       string
	Width        int
	Height       int
	FileSize     int64
	Error        error
	SecurityRisk string
}
