package image

import (
	"context"
	"os"
	"path"

	platformerrors "blog-image-server/internal/platform/errors"
	"blog-image-server/internal/platform/logging"
)

// UploadedFile is what the upload step hands to the hook.
type UploadedFile struct {
	Path     string
	Filename string
}

// OriginalImage describes the stored upload.
type OriginalImage struct {
	Path     string       `json:"path"`
	URL      string       `json:"url"`
	Metadata *SourceImage `json:"metadata"`
}

// OptimizedUpload is attached to the request after a successful hook run.
type OptimizedUpload struct {
	Original OriginalImage `json:"original"`
	Variants ResultSet     `json:"variants"`
}

// HookOutcome is the hook's explicit result. Err is set when optimisation
// failed; callers log it and carry on with the upload.
type HookOutcome struct {
	Optimized *OptimizedUpload
	Report    *Report
	Err       error
	// NoFile is true when the upload carried no file and nothing ran.
	NoFile bool
}

// UploadHookOptions configures the hook.
type UploadHookOptions struct {
	Generator    *Generator
	OptimizedDir string
	// OriginalPrefix is the URL prefix originals are served under, e.g. /uploads.
	OriginalPrefix string
	Logger         *logging.Logger
}

// UploadHook generates the variant set for a freshly stored upload.
type UploadHook struct {
	generator      *Generator
	optimizedDir   string
	originalPrefix string
	logger         *logging.Logger
}

// NewUploadHook constructs the hook.
func NewUploadHook(opts UploadHookOptions) *UploadHook {
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	if opts.OriginalPrefix == "" {
		opts.OriginalPrefix = "/uploads"
	}
	return &UploadHook{
		generator:      opts.Generator,
		optimizedDir:   opts.OptimizedDir,
		originalPrefix: opts.OriginalPrefix,
		logger:         opts.Logger,
	}
}

// Run never returns an error directly; every failure is folded into the outcome.
func (h *UploadHook) Run(ctx context.Context, file *UploadedFile, imageType string) (outcome HookOutcome) {
	if file == nil || file.Path == "" {
		return HookOutcome{NoFile: true}
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = HookOutcome{Err: platformerrors.New(platformerrors.KindDomain, "hook.panic", "optimisation panicked")}
			h.logger.ErrorTag("UPLOAD", "optimisation of %s panicked: %v", file.Filename, r)
		}
	}()

	if err := os.MkdirAll(h.optimizedDir, 0o755); err != nil {
		h.logger.ErrorTag("UPLOAD", "create optimized dir %s: %v", h.optimizedDir, err)
		return HookOutcome{Err: platformerrors.Wrap(platformerrors.KindPlatform, "hook.mkdir", "create optimized dir", err)}
	}

	variants := VariantsForType(imageType)
	report, err := h.generator.Generate(ctx, file.Path, h.optimizedDir, variants)
	if err != nil {
		h.logger.ErrorTag("UPLOAD", "optimisation of %s failed: %v", file.Filename, err)
		return HookOutcome{Report: report, Err: err}
	}

	filename := file.Filename
	if filename == "" {
		filename = report.Source.Filename
	}
	return HookOutcome{
		Report: report,
		Optimized: &OptimizedUpload{
			Original: OriginalImage{
				Path:     file.Path,
				URL:      path.Join(h.originalPrefix, filename),
				Metadata: report.Source,
			},
			Variants: report.Results,
		},
	}
}
