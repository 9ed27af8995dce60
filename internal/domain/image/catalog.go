package image

import (
	"fmt"
)

// DefaultVariant is used by the on-demand path when no or an unknown variant is asked for.
const DefaultVariant = "medium"

// VariantSpec is a named rendition target.
type VariantSpec struct {
	Name    string `json:"name"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Quality int    `json:"quality"`
}

// Validate enforces width > 0, height > 0 and 0 < quality <= 100.
func (s VariantSpec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("variant name must not be empty")
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("variant %s: dimensions must be positive, got %dx%d", s.Name, s.Width, s.Height)
	}
	if s.Quality <= 0 || s.Quality > 100 {
		return fmt.Errorf("variant %s: quality must be in (0,100], got %d", s.Name, s.Quality)
	}
	return nil
}

var builtinVariants = []VariantSpec{
	{Name: "thumbnail", Width: 150, Height: 150, Quality: 80},
	{Name: "small", Width: 300, Height: 200, Quality: 85},
	{Name: "medium", Width: 600, Height: 400, Quality: 90},
	{Name: "large", Width: 1200, Height: 800, Quality: 95},
	{Name: "hero", Width: 1920, Height: 1080, Quality: 95},
	{Name: "avatar", Width: 200, Height: 200, Quality: 90},
	{Name: "cover", Width: 1200, Height: 630, Quality: 90},
}

var builtinFormats = []Format{FormatWebP, FormatJPEG}

var defaultCatalog = mustCatalog(builtinVariants, builtinFormats)

// Catalog is an immutable table of variants plus the output formats in preference order.
type Catalog struct {
	specs   map[string]VariantSpec
	names   []string
	formats []Format
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// NewCatalog validates specs and formats and builds a catalog.
func NewCatalog(specs []VariantSpec, formats []Format) (*Catalog, error) {
	if len(formats) == 0 {
		return nil, fmt.Errorf("catalog needs at least one output format")
	}
	c := &Catalog{
		specs: make(map[string]VariantSpec, len(specs)),
	}
	for _, s := range specs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.specs[s.Name]; dup {
			return nil, fmt.Errorf("duplicate variant %s", s.Name)
		}
		c.specs[s.Name] = s
		c.names = append(c.names, s.Name)
	}
	seen := make(map[Format]bool, len(formats))
	for _, f := range formats {
		if _, ok := ParseFormat(string(f)); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		c.formats = append(c.formats, f)
	}
	return c, nil
}

func mustCatalog(specs []VariantSpec, formats []Format) *Catalog {
	c, err := NewCatalog(specs, formats)
	if err != nil {
		panic(err)
	}
	return c
}

// WithFormats returns a copy of c using a different format preference order.
func (c *Catalog) WithFormats(names []string) (*Catalog, error) {
	formats := make([]Format, 0, len(names))
	for _, n := range names {
		f, ok := ParseFormat(n)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, n)
		}
		formats = append(formats, f)
	}
	specs := make([]VariantSpec, 0, len(c.names))
	for _, n := range c.names {
		specs = append(specs, c.specs[n])
	}
	return NewCatalog(specs, formats)
}

// Lookup returns the spec for name. Unknown names report false; callers decide.
func (c *Catalog) Lookup(name string) (VariantSpec, bool) {
	s, ok := c.specs[name]
	return s, ok
}

// MustLookup is Lookup returning ErrUnknownVariant instead of a bool.
func (c *Catalog) MustLookup(name string) (VariantSpec, error) {
	s, ok := c.specs[name]
	if !ok {
		return VariantSpec{}, fmt.Errorf("%w: %s", ErrUnknownVariant, name)
	}
	return s, nil
}

// Names lists variant names in declaration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.names...)
}

// Specs lists variant specs in declaration order.
func (c *Catalog) Specs() []VariantSpec {
	out := make([]VariantSpec, 0, len(c.names))
	for _, n := range c.names {
		out = append(out, c.specs[n])
	}
	return out
}

// Formats lists output formats in preference order.
func (c *Catalog) Formats() []Format {
	return append([]Format(nil), c.formats...)
}

// VariantsForType maps an upload's declared image type to the variants generated for it.
func VariantsForType(imageType string) []string {
	switch imageType {
	case "avatar":
		return []string{"avatar", "thumbnail"}
	case "cover":
		return []string{"cover", "large", "medium"}
	case "hero":
		return []string{"hero", "large", "medium"}
	default:
		return []string{"thumbnail", "medium", "large"}
	}
}
