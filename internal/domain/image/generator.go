package image

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"blog-image-server/internal/domain/eventbus"
	"blog-image-server/internal/domain/image/index"
	"blog-image-server/internal/platform/logging"
)

// DefaultPublicPrefix is the URL prefix under which generated variants are served.
const DefaultPublicPrefix = "/uploads/optimized"

// Publisher is the publishing side of the event bus.
type Publisher interface {
	PublishAsync(topic string, args ...interface{})
}

// GeneratorOptions wires the generator's collaborators. Index and Events are optional.
type GeneratorOptions struct {
	Catalog      *Catalog
	Transcoder   *Transcoder
	Metadata     *MetadataReader
	Index        index.Store
	Events       Publisher
	PublicPrefix string
	Logger       *logging.Logger
}

// Generator produces a batch of variants for one source image.
type Generator struct {
	catalog      *Catalog
	transcoder   *Transcoder
	metadata     *MetadataReader
	index        index.Store
	events       Publisher
	publicPrefix string
	logger       *logging.Logger
	now          func() time.Time
}

// NewGenerator constructs a generator, filling defaults for missing collaborators.
func NewGenerator(opts GeneratorOptions) *Generator {
	if opts.Logger == nil {
		opts.Logger = logging.NewDiscard()
	}
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Transcoder == nil {
		opts.Transcoder = NewTranscoder(TranscoderOptions{Logger: opts.Logger})
	}
	if opts.Metadata == nil {
		opts.Metadata = NewMetadataReader(0)
	}
	if opts.PublicPrefix == "" {
		opts.PublicPrefix = DefaultPublicPrefix
	}
	return &Generator{
		catalog:      opts.Catalog,
		transcoder:   opts.Transcoder,
		metadata:     opts.Metadata,
		index:        opts.Index,
		events:       opts.Events,
		publicPrefix: opts.PublicPrefix,
		logger:       opts.Logger,
		now:          time.Now,
	}
}

// Catalog returns the catalog the generator resolves names against.
func (g *Generator) Catalog() *Catalog {
	return g.catalog
}

// Metadata returns the generator's metadata reader.
func (g *Generator) Metadata() *MetadataReader {
	return g.metadata
}

// Generate reads the source once, then transcodes every requested variant
// into every catalog format. Only an unreadable source fails the call;
// per-pair failures land in Report.Failures and the batch continues.
func (g *Generator) Generate(ctx context.Context, sourcePath, outputDir string, variantNames []string) (*Report, error) {
	start := g.now()
	src, err := g.metadata.Read(sourcePath)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Source:  src,
		Results: make(ResultSet),
	}
	base := baseName(src.Filename)

	for _, name := range variantNames {
		spec, ok := g.catalog.Lookup(name)
		if !ok {
			g.logger.WarnTag("IMAGE", "unknown variant %q requested for %s, skipping", name, src.Filename)
			report.Skipped = append(report.Skipped, Skip{Variant: name, Reason: SkipUnknownVariant})
			continue
		}
		if src.Width < spec.Width && src.Height < spec.Height {
			g.logger.DebugTag("IMAGE", "%s (%dx%d) smaller than %s (%dx%d), skipping",
				src.Filename, src.Width, src.Height, spec.Name, spec.Width, spec.Height)
			report.Skipped = append(report.Skipped, Skip{Variant: name, Reason: SkipSmallerThanSource})
			continue
		}

		for _, format := range g.catalog.Formats() {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			filename := ArtifactFilename(base, spec.Name, format)
			dest := filepath.Join(outputDir, filename)

			artifact, err := g.transcoder.Transcode(ctx, src.Path, dest, spec, format)
			if err != nil {
				g.logger.ErrorTag("IMAGE", "variant %s/%s of %s failed: %v", spec.Name, format, src.Filename, err)
				report.Failures = append(report.Failures, Failure{Variant: spec.Name, Format: format, Err: err})
				g.publishFailure(src.Filename, spec.Name, format, err)
				continue
			}
			artifact.URL = g.PublicURL(filename)

			if report.Results[spec.Name] == nil {
				report.Results[spec.Name] = make(map[Format]*Artifact)
			}
			report.Results[spec.Name][format] = artifact
			g.record(ctx, src.Filename, artifact, false)
		}
	}

	report.Elapsed = g.now().Sub(start)
	g.logger.InfoTag("IMAGE", "generated %d artifacts for %s (%d skipped, %d failed) in %s",
		report.Results.Count(), src.Filename, len(report.Skipped), len(report.Failures), report.Elapsed)
	return report, nil
}

// PublicURL is the URL an artifact file is served under.
func (g *Generator) PublicURL(filename string) string {
	return path.Join(g.publicPrefix, filename)
}

// record indexes the artifact and announces it. Index failures are logged only.
func (g *Generator) record(ctx context.Context, source string, a *Artifact, onDemand bool) {
	if g.index != nil {
		entry := index.Entry{
			Path:      a.Path,
			Source:    source,
			Variant:   a.Variant,
			Format:    string(a.Format),
			URL:       a.URL,
			Size:      a.Size,
			Width:     a.Width,
			Height:    a.Height,
			CreatedAt: g.now(),
		}
		if onDemand {
			entry.Metadata = map[string]any{"on_demand": true}
		}
		if err := g.index.Record(ctx, entry); err != nil {
			g.logger.WarnTag("INDEX", "record %s failed: %v", a.Path, err)
		}
	}
	if g.events != nil {
		g.events.PublishAsync(eventbus.EventArtifactGenerated, eventbus.ArtifactEventData{
			Source:   source,
			Variant:  a.Variant,
			Format:   string(a.Format),
			Path:     a.Path,
			URL:      a.URL,
			Size:     a.Size,
			OnDemand: onDemand,
			At:       g.now(),
		})
	}
}

func (g *Generator) publishFailure(source, variant string, format Format, err error) {
	if g.events == nil {
		return
	}
	g.events.PublishAsync(eventbus.EventGenerationFailed, eventbus.GenerationFailedEventData{
		Source:  source,
		Variant: variant,
		Format:  string(format),
		Error:   err.Error(),
		At:      g.now(),
	})
}

// ArtifactFilename is the deterministic name <base>-<variant>.<format>.
func ArtifactFilename(base, variant string, format Format) string {
	return fmt.Sprintf("%s-%s.%s", base, variant, format)
}

func baseName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
