package image

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	platformerrors "blog-image-server/internal/platform/errors"
	"blog-image-server/internal/platform/logging"

	"github.com/google/uuid"
)

const defaultMaxUploadSize = 10 * 1024 * 1024

// Pipeline streams an upload through validation and stores it under the uploads dir.
type Pipeline struct {
	validator *SecurityValidator
	dir       string
	maxSize   int64
	logger    *logging.Logger
}

// PipelineOptions configures the upload pipeline.
type PipelineOptions struct {
	Dir    string
	Limits ValidatorLimits
	Logger *logging.Logger
}

// Input describes a streaming upload.
type Input struct {
	Reader io.Reader
	// Filename is the client-supplied name; only its extension is consulted.
	Filename string
}

// StoredUpload is a validated upload written to disk.
type StoredUpload struct {
	Path       string
	Filename   string
	Format     string
	Validation ValidationResult
}

// NewPipeline constructs an upload pipeline.
func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Dir == "" {
		return nil, platformerrors.New(platformerrors.KindConfig, "pipeline.new", "uploads dir is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	maxSize := opts.Limits.MaxFileSize
	if maxSize <= 0 {
		maxSize = defaultMaxUploadSize
		opts.Limits.MaxFileSize = maxSize
	}
	return &Pipeline{
		validator: NewSecurityValidator(opts.Limits, opts.Logger),
		dir:       opts.Dir,
		maxSize:   maxSize,
		logger:    opts.Logger,
	}, nil
}

// Dir returns the directory uploads are stored in.
func (p *Pipeline) Dir() string {
	return p.dir
}

// Store reads the input, validates it and writes it as <uuid>.<ext>.
// Validation failures are transport errors.
func (p *Pipeline) Store(ctx context.Context, input Input) (*StoredUpload, error) {
	if input.Reader == nil {
		return nil, platformerrors.New(platformerrors.KindTransport, "pipeline.store", "image reader is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	limited := &io.LimitedReader{R: input.Reader, N: p.maxSize + 1}
	buf := bytes.NewBuffer(make([]byte, 0, 32*1024))
	if _, err := io.Copy(buf, limited); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "pipeline.store", "stream upload bytes", err)
	}
	if limited.N <= 0 {
		return nil, platformerrors.New(platformerrors.KindTransport, "pipeline.store",
			fmt.Sprintf("image exceeds maximum size of %d bytes", p.maxSize))
	}

	declared := strings.TrimPrefix(filepath.Ext(input.Filename), ".")
	validation := p.validator.ValidateBytes(buf.Bytes(), declared)
	if !validation.IsValid {
		cause := validation.Error
		if cause == nil {
			cause = fmt.Errorf("image validation failed")
		}
		return nil, platformerrors.WrapAs(platformerrors.KindTransport, "pipeline.validate", "invalid upload", cause)
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindPlatform, "pipeline.mkdir", "create uploads dir", err)
	}

	filename := uuid.NewString() + extensionFor(validation.Format)
	dest := filepath.Join(p.dir, filename)
	if err := writeAtomic(dest, buf.Bytes()); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindPlatform, "pipeline.write", "store upload", err)
	}

	p.logger.InfoTag("UPLOAD", "stored %s as %s (%s %dx%d, %d bytes)",
		input.Filename, filename, validation.Format, validation.Width, validation.Height, validation.FileSize)
	return &StoredUpload{
		Path:       dest,
		Filename:   filename,
		Format:     validation.Format,
		Validation: validation,
	}, nil
}

func extensionFor(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "":
		return ".bin"
	default:
		return "." + format
	}
}

func writeAtomic(dest string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}
