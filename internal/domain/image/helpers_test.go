package image

import (
	stdimage "image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFixture writes a w×h gradient image; the extension picks png or jpeg.
func writeFixture(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := stdimage.NewNRGBA(stdimage.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(40 + x*160/w),
				G: uint8(60 + y*120/h),
				B: 128,
				A: 255,
			})
		}
	}

	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()

	switch filepath.Ext(name) {
	case ".jpg", ".jpeg":
		require.NoError(t, jpeg.Encode(f, img, &jpeg.Options{Quality: 90}))
	default:
		require.NoError(t, png.Encode(f, img))
	}
	return p
}

func decodedSize(t *testing.T, p string) (int, int) {
	t.Helper()
	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := stdimage.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

// noFFmpeg returns a transcoder that can never encode avif.
func noFFmpeg() *Transcoder {
	return NewTranscoder(TranscoderOptions{FFmpegPath: "ffmpeg-does-not-exist-on-this-host"})
}

type publishedEvent struct {
	topic string
	args  []interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishAsync(topic string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, args: args})
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

func (p *recordingPublisher) count(topic string) int {
	n := 0
	for _, tp := range p.topics() {
		if tp == topic {
			n++
		}
	}
	return n
}
