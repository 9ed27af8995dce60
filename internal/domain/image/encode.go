package image

import (
	"context"
	"fmt"
	stdimage "image"
	"image/png"
	"io"
	"os"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

const (
	defaultWebPQuality = 90
	// webpMethod 6 is libwebp's slowest, smallest setting.
	webpMethod = 6
)

// encodeTo writes img in format into the already created file f.
// AVIF is handed to ffmpeg, which writes f's path itself.
func (t *Transcoder) encodeTo(ctx context.Context, f *os.File, img stdimage.Image, format Format, quality int) error {
	switch format {
	case FormatWebP:
		return encodeWebP(f, img, quality)
	case FormatJPEG:
		return encodeJPEG(f, img, quality)
	case FormatPNG:
		return encodePNG(f, img)
	case FormatAVIF:
		if t.avif == nil {
			return ErrEncoderUnavailable
		}
		return t.avif.Encode(ctx, img, f.Name(), quality)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func encodeWebP(w io.Writer, img stdimage.Image, quality int) error {
	if quality <= 0 {
		quality = defaultWebPQuality
	}
	opts, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
	if err != nil {
		return fmt.Errorf("webp options: %w", err)
	}
	opts.Method = webpMethod
	opts.UseSharpYuv = true
	if err := webp.Encode(w, img, opts); err != nil {
		return fmt.Errorf("webp encode: %w", err)
	}
	return nil
}

func encodeJPEG(w io.Writer, img stdimage.Image, quality int) error {
	if err := imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return fmt.Errorf("jpeg encode: %w", err)
	}
	return nil
}

func encodePNG(w io.Writer, img stdimage.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return fmt.Errorf("png encode: %w", err)
	}
	return nil
}
