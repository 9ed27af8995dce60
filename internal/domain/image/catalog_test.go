package image

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, []string{"thumbnail", "small", "medium", "large", "hero", "avatar", "cover"}, c.Names())
	assert.Equal(t, []Format{FormatWebP, FormatJPEG}, c.Formats())

	cases := map[string]VariantSpec{
		"thumbnail": {Name: "thumbnail", Width: 150, Height: 150, Quality: 80},
		"small":     {Name: "small", Width: 300, Height: 200, Quality: 85},
		"medium":    {Name: "medium", Width: 600, Height: 400, Quality: 90},
		"large":     {Name: "large", Width: 1200, Height: 800, Quality: 95},
		"hero":      {Name: "hero", Width: 1920, Height: 1080, Quality: 95},
		"avatar":    {Name: "avatar", Width: 200, Height: 200, Quality: 90},
		"cover":     {Name: "cover", Width: 1200, Height: 630, Quality: 90},
	}
	for name, want := range cases {
		got, ok := c.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got)
		assert.NoError(t, got.Validate())
	}

	_, ok := c.Lookup("gigantic")
	assert.False(t, ok)
	_, err := c.MustLookup("gigantic")
	assert.True(t, errors.Is(err, ErrUnknownVariant))
}

func TestCatalogReturnsCopies(t *testing.T) {
	c := DefaultCatalog()
	formats := c.Formats()
	formats[0] = FormatPNG
	names := c.Names()
	names[0] = "mutated"

	assert.Equal(t, FormatWebP, c.Formats()[0])
	assert.Equal(t, "thumbnail", c.Names()[0])
}

func TestVariantSpecValidate(t *testing.T) {
	tests := []struct {
		name string
		spec VariantSpec
		ok   bool
	}{
		{"valid", VariantSpec{Name: "x", Width: 1, Height: 1, Quality: 100}, true},
		{"empty name", VariantSpec{Width: 1, Height: 1, Quality: 50}, false},
		{"zero width", VariantSpec{Name: "x", Height: 1, Quality: 50}, false},
		{"negative height", VariantSpec{Name: "x", Width: 1, Height: -1, Quality: 50}, false},
		{"zero quality", VariantSpec{Name: "x", Width: 1, Height: 1}, false},
		{"quality over 100", VariantSpec{Name: "x", Width: 1, Height: 1, Quality: 101}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNewCatalogRejectsBadInput(t *testing.T) {
	_, err := NewCatalog([]VariantSpec{{Name: "a", Width: 1, Height: 1, Quality: 1}}, nil)
	assert.Error(t, err)

	_, err = NewCatalog([]VariantSpec{
		{Name: "a", Width: 1, Height: 1, Quality: 1},
		{Name: "a", Width: 2, Height: 2, Quality: 2},
	}, []Format{FormatWebP})
	assert.Error(t, err)

	_, err = NewCatalog(nil, []Format{"tiff"})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestCatalogWithFormats(t *testing.T) {
	c, err := DefaultCatalog().WithFormats([]string{"avif", "webp", "jpg", "webp"})
	require.NoError(t, err)
	assert.Equal(t, []Format{FormatAVIF, FormatWebP, FormatJPEG}, c.Formats())
	assert.Equal(t, DefaultCatalog().Names(), c.Names())

	// the built-in catalog is untouched
	assert.Equal(t, []Format{FormatWebP, FormatJPEG}, DefaultCatalog().Formats())

	_, err = DefaultCatalog().WithFormats([]string{"bmp"})
	assert.Error(t, err)
}

func TestVariantsForType(t *testing.T) {
	assert.Equal(t, []string{"avatar", "thumbnail"}, VariantsForType("avatar"))
	assert.Equal(t, []string{"cover", "large", "medium"}, VariantsForType("cover"))
	assert.Equal(t, []string{"hero", "large", "medium"}, VariantsForType("hero"))
	assert.Equal(t, []string{"thumbnail", "medium", "large"}, VariantsForType("post"))
	assert.Equal(t, []string{"thumbnail", "medium", "large"}, VariantsForType(""))
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"webp": FormatWebP, "JPG": FormatJPEG, "jpeg": FormatJPEG, " avif ": FormatAVIF, "png": FormatPNG} {
		got, ok := ParseFormat(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseFormat("gif")
	assert.False(t, ok)

	assert.Equal(t, "image/webp", FormatWebP.ContentType())
	assert.Equal(t, "image/avif", FormatAVIF.ContentType())
	assert.Equal(t, "application/octet-stream", Format("tiff").ContentType())
}
