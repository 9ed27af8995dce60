package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"blog-image-server/internal/platform/logging"
	"blog-image-server/internal/platform/observability"

	"github.com/disintegration/imaging"
)

// TranscoderOptions configures the transcoder.
type TranscoderOptions struct {
	// FFmpegPath is looked up on PATH; avif is disabled when it cannot be found.
	FFmpegPath string
	Logger     *logging.Logger
}

// Transcoder turns one source file into one (variant, format) output file.
type Transcoder struct {
	avif   *avifEncoder
	logger *logging.Logger
}

// NewTranscoder constructs a transcoder and probes for ffmpeg.
func NewTranscoder(opts TranscoderOptions) *Transcoder {
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	t := &Transcoder{
		avif:   newAVIFEncoder(opts.FFmpegPath),
		logger: opts.Logger,
	}
	if t.avif == nil {
		t.logger.WarnTag("IMAGE", "ffmpeg not found, avif output disabled")
	}
	return t
}

// Supports reports whether format can be encoded in this process.
func (t *Transcoder) Supports(format Format) bool {
	switch format {
	case FormatWebP, FormatJPEG, FormatPNG:
		return true
	case FormatAVIF:
		return t.avif != nil
	default:
		return false
	}
}

// Transcode decodes sourcePath, cover-fits it into spec without enlarging,
// enhances it and writes destinationPath in format. The file is written to a
// temporary sibling and renamed into place, so readers never see partial output.
func (t *Transcoder) Transcode(ctx context.Context, sourcePath, destinationPath string, spec VariantSpec, format Format) (artifact *Artifact, err error) {
	ctx, end := observability.StartSpan(ctx, "image", "transcode")
	defer func() { end(err) }()

	if err := ctx.Err(); err != nil {
		return nil, transcodeError("transcode.context", destinationPath, err)
	}
	if !t.Supports(format) {
		cause := fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
		if format == FormatAVIF {
			cause = fmt.Errorf("%w: avif needs ffmpeg", ErrEncoderUnavailable)
		}
		return nil, transcodeError("transcode.format", destinationPath, cause)
	}

	src, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, transcodeError("transcode.decode", destinationPath, err)
	}

	w, h := fitBox(src.Bounds().Dx(), src.Bounds().Dy(), spec.Width, spec.Height)
	resized := imaging.Fill(src, w, h, imaging.Center, imaging.Lanczos)
	out := enhance(resized)

	dir := filepath.Dir(destinationPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, transcodeError("transcode.mkdir", destinationPath, err)
	}

	base := strings.TrimSuffix(filepath.Base(destinationPath), filepath.Ext(destinationPath))
	tmp, err := os.CreateTemp(dir, "."+base+".*."+string(format))
	if err != nil {
		return nil, transcodeError("transcode.create", destinationPath, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := t.encodeTo(ctx, tmp, out, format, spec.Quality); err != nil {
		tmp.Close()
		return nil, transcodeError("transcode.encode", destinationPath, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, transcodeError("transcode.close", destinationPath, err)
	}
	if err := os.Rename(tmpPath, destinationPath); err != nil {
		return nil, transcodeError("transcode.rename", destinationPath, err)
	}
	committed = true

	info, err := os.Stat(destinationPath)
	if err != nil {
		return nil, transcodeError("transcode.stat", destinationPath, err)
	}

	t.logger.DebugTag("IMAGE", "transcoded %s -> %s (%dx%d, %d bytes)",
		filepath.Base(sourcePath), filepath.Base(destinationPath), w, h, info.Size())

	return &Artifact{
		Path:    destinationPath,
		Size:    info.Size(),
		Format:  format,
		Variant: spec.Name,
		Width:   spec.Width,
		Height:  spec.Height,
	}, nil
}

// fitBox clamps the target box to the source so the cover scale never exceeds 1.
func fitBox(srcW, srcH, targetW, targetH int) (int, int) {
	w, h := targetW, targetH
	if w <= 0 || w > srcW {
		w = srcW
	}
	if h <= 0 || h > srcH {
		h = srcH
	}
	return w, h
}
