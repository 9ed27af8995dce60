package image

import (
	"bytes"
	"context"
	"fmt"
	stdimage "image"
	"image/png"
	"io"
	"os/exec"
	"strconv"
)

// avifEncoder pipes a PNG frame into ffmpeg's SVT-AV1 encoder.
type avifEncoder struct {
	binary string
}

// newAVIFEncoder returns nil when binary cannot be found on PATH.
func newAVIFEncoder(binary string) *avifEncoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	resolved, err := exec.LookPath(binary)
	if err != nil {
		return nil
	}
	return &avifEncoder{binary: resolved}
}

// avifCRF maps quality 1..100 onto SVT-AV1's 63..1 constant rate factor.
func avifCRF(quality int) int {
	if quality <= 0 || quality > 100 {
		quality = defaultWebPQuality
	}
	crf := (100 - quality) * 63 / 100
	if crf < 1 {
		crf = 1
	}
	return crf
}

func (e *avifEncoder) Encode(ctx context.Context, img stdimage.Image, outputPath string, quality int) error {
	r, w := io.Pipe()

	// preset 0 is the slowest, most thorough SVT-AV1 setting
	cmd := exec.CommandContext(ctx, e.binary,
		"-hide_banner", "-loglevel", "error",
		"-f", "image2pipe", "-vcodec", "png", "-i", "pipe:0",
		"-vf", "crop=trunc(iw/2)*2:trunc(ih/2)*2",
		"-c:v", "libsvtav1", "-preset", "0", "-crf", strconv.Itoa(avifCRF(quality)),
		"-still-picture", "1", "-pix_fmt", "yuv420p",
		"-f", "avif", "-y", outputPath,
	)
	cmd.Stdin = r
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	encodeErr := make(chan error, 1)
	go func() {
		err := png.Encode(w, img)
		w.CloseWithError(err)
		encodeErr <- err
	}()

	runErr := cmd.Run()
	// unblocks the PNG writer if ffmpeg exited before draining stdin
	r.Close()
	pipeErr := <-encodeErr
	if runErr != nil {
		return fmt.Errorf("ffmpeg avif encode: %w: %s", runErr, stderr.String())
	}
	if pipeErr != nil {
		return fmt.Errorf("pipe frame to ffmpeg: %w", pipeErr)
	}
	return nil
}
