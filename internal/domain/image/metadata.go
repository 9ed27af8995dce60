package image

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	stdimage "image"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/webp"
)

const (
	defaultDensity  = 72
	densityScanSize = 64 * 1024
)

// MetadataReader reads SourceImage attributes, caching them per (path, size, mtime).
type MetadataReader struct {
	cache *ttlcache.Cache[string, SourceImage]
}

// NewMetadataReader creates a reader. ttl <= 0 disables caching.
func NewMetadataReader(ttl time.Duration) *MetadataReader {
	if ttl <= 0 {
		return &MetadataReader{}
	}
	cache := ttlcache.New[string, SourceImage](
		ttlcache.WithTTL[string, SourceImage](ttl),
		ttlcache.WithDisableTouchOnHit[string, SourceImage](),
		ttlcache.WithCapacity[string, SourceImage](4096),
	)
	go cache.Start()
	return &MetadataReader{cache: cache}
}

// Close stops the cache janitor.
func (m *MetadataReader) Close() {
	if m.cache != nil {
		m.cache.Stop()
	}
}

// Read returns metadata for the image at path. Missing or undecodable files
// yield a metadata-kind error.
func (m *MetadataReader) Read(path string) (*SourceImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, metadataError("metadata.stat", path, err)
	}
	if info.IsDir() {
		return nil, metadataError("metadata.stat", path, fmt.Errorf("is a directory"))
	}

	key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
	if m.cache != nil {
		if item := m.cache.Get(key); item != nil {
			src := item.Value()
			return &src, nil
		}
	}

	src, err := decodeMetadata(path, info.Size())
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		m.cache.Set(key, *src, ttlcache.DefaultTTL)
	}
	return src, nil
}

func decodeMetadata(path string, size int64) (*SourceImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, metadataError("metadata.open", path, err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, densityScanSize)
	head, _ := br.Peek(densityScanSize)
	head = append([]byte(nil), head...)

	cfg, format, err := stdimage.DecodeConfig(br)
	if err != nil {
		return nil, metadataError("metadata.decode", path, err)
	}

	// the transcoder auto-orients, so report the dimensions it will see
	width, height := cfg.Width, cfg.Height
	orientation := readOrientation(format, head)
	if orientation >= 5 {
		width, height = height, width
	}

	return &SourceImage{
		Path:        path,
		Filename:    filepath.Base(path),
		Width:       width,
		Height:      height,
		Format:      format,
		Size:        size,
		HasAlpha:    modelHasAlpha(cfg.ColorModel),
		Density:     readDensity(format, head),
		Orientation: orientation,
	}, nil
}

// readOrientation returns the EXIF orientation of a JPEG, 1 when missing or invalid.
func readOrientation(format string, head []byte) (orientation int) {
	orientation = 1
	if format != "jpeg" {
		return orientation
	}
	// goexif can panic on malformed IFDs
	defer func() {
		if recover() != nil {
			orientation = 1
		}
	}()

	x, err := exif.Decode(bytes.NewReader(head))
	if err != nil {
		return orientation
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return orientation
	}
	if v, err := tag.Int(0); err == nil && v >= 1 && v <= 8 {
		orientation = v
	}
	return orientation
}

func modelHasAlpha(model color.Model) bool {
	switch model {
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model,
		color.AlphaModel, color.Alpha16Model, color.NYCbCrAModel:
		return true
	}
	if p, ok := model.(color.Palette); ok {
		for _, c := range p {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}

// readDensity extracts DPI from a JFIF APP0 segment or a PNG pHYs chunk.
func readDensity(format string, head []byte) int {
	switch format {
	case "jpeg":
		if d := jfifDensity(head); d > 0 {
			return d
		}
	case "png":
		if d := pngDensity(head); d > 0 {
			return d
		}
	}
	return defaultDensity
}

func jfifDensity(b []byte) int {
	// SOI, APP0 marker, length, "JFIF\0", version(2), units, xdensity(2)
	if len(b) < 16 || b[0] != 0xFF || b[1] != 0xD8 || b[2] != 0xFF || b[3] != 0xE0 {
		return 0
	}
	if !bytes.Equal(b[6:11], []byte("JFIF\x00")) {
		return 0
	}
	units := b[13]
	x := int(binary.BigEndian.Uint16(b[14:16]))
	switch units {
	case 1:
		return x
	case 2:
		return int(math.Round(float64(x) * 2.54))
	}
	return 0
}

func pngDensity(b []byte) int {
	if len(b) < 8 {
		return 0
	}
	r := bytes.NewReader(b[8:])
	for {
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return 0
		}
		typ := make([]byte, 4)
		if _, err := io.ReadFull(r, typ); err != nil {
			return 0
		}
		switch string(typ) {
		case "pHYs":
			if length < 9 {
				return 0
			}
			data := make([]byte, 9)
			if _, err := io.ReadFull(r, data); err != nil {
				return 0
			}
			if data[8] != 1 {
				return 0
			}
			ppm := binary.BigEndian.Uint32(data[0:4])
			return int(math.Round(float64(ppm) * 0.0254))
		case "IDAT", "IEND":
			return 0
		}
		if _, err := r.Seek(int64(length)+4, io.SeekCurrent); err != nil {
			return 0
		}
	}
}
