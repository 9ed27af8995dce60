package image

import (
	"context"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"blog-image-server/internal/platform/logging"
	"blog-image-server/internal/platform/observability"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// ResolutionKind says where served bytes came from.
type ResolutionKind string

const (
	ServedCached    ResolutionKind = "cache"
	ServedGenerated ResolutionKind = "generated"
	ServedOriginal  ResolutionKind = "original"
)

// Resolution is the file to stream for an on-demand request.
type Resolution struct {
	Kind        ResolutionKind
	Path        string
	ContentType string
	Variant     string
	Format      Format
	Artifact    *Artifact
}

// OnDemandOptions configures the on-demand server.
type OnDemandOptions struct {
	Generator    *Generator
	UploadsDir   string
	OptimizedDir string
	// Rate and Burst throttle cache-miss generations. Rate <= 0 disables throttling.
	Rate   float64
	Burst  int
	Logger *logging.Logger
}

// OnDemandServer resolves (filename, variant, format) requests, generating lazily.
type OnDemandServer struct {
	generator    *Generator
	uploadsDir   string
	optimizedDir string
	flight       singleflight.Group
	limiter      *rate.Limiter
	logger       *logging.Logger
}

// NewOnDemandServer constructs the server.
func NewOnDemandServer(opts OnDemandOptions) *OnDemandServer {
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	var limiter *rate.Limiter
	if opts.Rate > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), burst)
	}
	return &OnDemandServer{
		generator:    opts.Generator,
		uploadsDir:   opts.UploadsDir,
		optimizedDir: opts.OptimizedDir,
		limiter:      limiter,
		logger:       opts.Logger,
	}
}

// Resolve picks, in order: the cached artifact, a freshly generated one, the
// original upload. With none of them available it returns a not-found error.
// Empty variant and format default to medium and webp.
func (s *OnDemandServer) Resolve(ctx context.Context, filename, variant, format string) (*Resolution, error) {
	if variant == "" {
		variant = DefaultVariant
	}
	if format == "" {
		format = string(FormatWebP)
	}
	if !safeName(filename) || !safeName(variant) {
		return nil, notFoundError("ondemand.resolve", filename)
	}

	outFormat, resolvable := ParseFormat(format)
	resolvable = resolvable && s.generator.transcoder.Supports(outFormat)

	var dest string
	if resolvable {
		dest = filepath.Join(s.optimizedDir, ArtifactFilename(baseName(filename), variant, outFormat))
		if isRegularFile(dest) {
			s.served(ctx, ServedCached)
			return &Resolution{
				Kind:        ServedCached,
				Path:        dest,
				ContentType: outFormat.ContentType(),
				Variant:     variant,
				Format:      outFormat,
			}, nil
		}
	}

	original := filepath.Join(s.uploadsDir, filename)
	if !isRegularFile(original) {
		return nil, notFoundError("ondemand.resolve", filename)
	}

	if !resolvable {
		s.served(ctx, ServedOriginal)
		return &Resolution{
			Kind:        ServedOriginal,
			Path:        original,
			ContentType: contentTypeFor(original),
		}, nil
	}

	spec, ok := s.generator.catalog.Lookup(variant)
	if !ok {
		spec, _ = s.generator.catalog.Lookup(DefaultVariant)
		s.logger.WarnTag("SERVE", "unknown variant %q for %s, using %s", variant, filename, DefaultVariant)
	}

	v, err, shared := s.flight.Do(dest, func() (interface{}, error) {
		return s.generate(context.WithoutCancel(ctx), original, dest, spec, outFormat, filename)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.DebugTag("SERVE", "joined in-flight generation of %s", filepath.Base(dest))
	}
	artifact := v.(*Artifact)
	s.served(ctx, ServedGenerated)
	return &Resolution{
		Kind:        ServedGenerated,
		Path:        artifact.Path,
		ContentType: outFormat.ContentType(),
		Variant:     variant,
		Format:      outFormat,
		Artifact:    artifact,
	}, nil
}

func (s *OnDemandServer) generate(ctx context.Context, original, dest string, spec VariantSpec, format Format, filename string) (*Artifact, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, transcodeError("ondemand.throttle", dest, err)
		}
	}
	artifact, err := s.generator.transcoder.Transcode(ctx, original, dest, spec, format)
	if err != nil {
		s.logger.ErrorTag("SERVE", "on-demand %s failed: %v", filepath.Base(dest), err)
		s.generator.publishFailure(filename, spec.Name, format, err)
		return nil, err
	}
	artifact.URL = s.generator.PublicURL(filepath.Base(dest))
	s.generator.record(ctx, filename, artifact, true)
	s.logger.InfoTag("SERVE", "generated %s on demand (%d bytes)", filepath.Base(dest), artifact.Size)
	return artifact, nil
}

func (s *OnDemandServer) served(ctx context.Context, kind ResolutionKind) {
	observability.RecordMetric(ctx, observability.MetricServe, 1, map[string]string{"source": string(kind)})
}

// safeName rejects anything that could escape its directory.
func safeName(name string) bool {
	if name == "" || name == "." || strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && filepath.Base(name) == name
}

func isRegularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

func contentTypeFor(p string) string {
	ext := strings.ToLower(filepath.Ext(p))
	if f, ok := ParseFormat(strings.TrimPrefix(ext, ".")); ok {
		return f.ContentType()
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
