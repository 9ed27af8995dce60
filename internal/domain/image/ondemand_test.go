package image

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"blog-image-server/internal/domain/image/index"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type onDemandFixture struct {
	uploads   string
	optimized string
	server    *OnDemandServer
	store     index.Store
}

func newOnDemandFixture(t *testing.T) *onDemandFixture {
	t.Helper()
	uploads := t.TempDir()
	optimized := filepath.Join(uploads, "optimized")
	g, store, _ := newTestGenerator(t, nil)
	return &onDemandFixture{
		uploads:   uploads,
		optimized: optimized,
		store:     store,
		server: NewOnDemandServer(OnDemandOptions{
			Generator:    g,
			UploadsDir:   uploads,
			OptimizedDir: optimized,
		}),
	}
}

func TestResolveServesCachedArtifact(t *testing.T) {
	f := newOnDemandFixture(t)
	writeFixture(t, f.uploads, "photo.png", 800, 600)
	require.NoError(t, os.MkdirAll(f.optimized, 0o755))
	cached := filepath.Join(f.optimized, "photo-medium.webp")
	require.NoError(t, os.WriteFile(cached, []byte("cached-bytes"), 0o644))

	res, err := f.server.Resolve(context.Background(), "photo.png", "", "")
	require.NoError(t, err)
	assert.Equal(t, ServedCached, res.Kind)
	assert.Equal(t, cached, res.Path)
	assert.Equal(t, "image/webp", res.ContentType)

	data, err := os.ReadFile(cached)
	require.NoError(t, err)
	assert.Equal(t, "cached-bytes", string(data), "cache hits never re-transcode")
}

func TestResolveCachedWithoutOriginal(t *testing.T) {
	f := newOnDemandFixture(t)
	require.NoError(t, os.MkdirAll(f.optimized, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.optimized, "gone-thumbnail.jpeg"), []byte("x"), 0o644))

	res, err := f.server.Resolve(context.Background(), "gone.jpg", "thumbnail", "jpg")
	require.NoError(t, err)
	assert.Equal(t, ServedCached, res.Kind)
	assert.Equal(t, "image/jpeg", res.ContentType)
}

func TestResolveGeneratesOnMiss(t *testing.T) {
	f := newOnDemandFixture(t)
	writeFixture(t, f.uploads, "photo.jpg", 1600, 1000)

	res, err := f.server.Resolve(context.Background(), "photo.jpg", "large", "jpeg")
	require.NoError(t, err)
	assert.Equal(t, ServedGenerated, res.Kind)
	assert.Equal(t, filepath.Join(f.optimized, "photo-large.jpeg"), res.Path)
	require.NotNil(t, res.Artifact)
	assert.Equal(t, "/uploads/optimized/photo-large.jpeg", res.Artifact.URL)

	w, h := decodedSize(t, res.Path)
	assert.Equal(t, 1200, w)
	assert.Equal(t, 800, h)

	entry, err := f.store.Get(context.Background(), res.Path)
	require.NoError(t, err)
	assert.Equal(t, true, entry.Metadata["on_demand"])

	again, err := f.server.Resolve(context.Background(), "photo.jpg", "large", "jpeg")
	require.NoError(t, err)
	assert.Equal(t, ServedCached, again.Kind)
}

func TestResolveSmallAvatarGeneratesAnyway(t *testing.T) {
	f := newOnDemandFixture(t)
	writeFixture(t, f.uploads, "100x100.png", 100, 100)

	res, err := f.server.Resolve(context.Background(), "100x100.png", "avatar", "webp")
	require.NoError(t, err)
	assert.Equal(t, ServedGenerated, res.Kind)
	assert.Equal(t, filepath.Join(f.optimized, "100x100-avatar.webp"), res.Path)

	w, h := decodedSize(t, res.Path)
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)
}

func TestResolveUnknownVariantUsesMedium(t *testing.T) {
	f := newOnDemandFixture(t)
	writeFixture(t, f.uploads, "photo.png", 900, 900)

	res, err := f.server.Resolve(context.Background(), "photo.png", "gigantic", "jpeg")
	require.NoError(t, err)
	assert.Equal(t, ServedGenerated, res.Kind)
	assert.Equal(t, filepath.Join(f.optimized, "photo-gigantic.jpeg"), res.Path)
	assert.Equal(t, "medium", res.Artifact.Variant)

	w, h := decodedSize(t, res.Path)
	assert.Equal(t, 600, w)
	assert.Equal(t, 400, h)
}

func TestResolveFallsBackToOriginal(t *testing.T) {
	f := newOnDemandFixture(t)
	original := writeFixture(t, f.uploads, "photo.png", 300, 300)

	for _, format := range []string{"tiff", "avif"} {
		res, err := f.server.Resolve(context.Background(), "photo.png", "medium", format)
		require.NoError(t, err, format)
		assert.Equal(t, ServedOriginal, res.Kind)
		assert.Equal(t, original, res.Path)
		assert.Equal(t, "image/png", res.ContentType)
	}
}

func TestResolveNotFound(t *testing.T) {
	f := newOnDemandFixture(t)

	cases := []struct {
		name, filename, variant, format string
	}{
		{"nothing on disk", "missing.jpg", "medium", "webp"},
		{"unknown format and no original", "missing.jpg", "medium", "tiff"},
		{"parent traversal", "../secret.png", "medium", "webp"},
		{"nested path", "sub/photo.png", "medium", "webp"},
		{"variant traversal", "photo.png", "../../x", "webp"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.server.Resolve(context.Background(), tc.filename, tc.variant, tc.format)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, IsNotFound(err))
		})
	}
}

func TestResolveTranscodeFailure(t *testing.T) {
	f := newOnDemandFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.uploads, "broken.png"), []byte("not an image"), 0o644))

	_, err := f.server.Resolve(context.Background(), "broken.png", "medium", "webp")
	require.Error(t, err)
	assert.True(t, IsTranscodeError(err))
	assert.False(t, IsNotFound(err))
}

func TestResolveConcurrentMissesShareOneGeneration(t *testing.T) {
	f := newOnDemandFixture(t)
	writeFixture(t, f.uploads, "photo.jpg", 1200, 900)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*Resolution, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.server.Resolve(context.Background(), "photo.jpg", "medium", "webp")
		}(i)
	}
	wg.Wait()

	dest := filepath.Join(f.optimized, "photo-medium.webp")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, dest, results[i].Path)
		assert.Contains(t, []ResolutionKind{ServedCached, ServedGenerated}, results[i].Kind)
	}

	files, err := os.ReadDir(f.optimized)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestResolveThrottledGenerationWaits(t *testing.T) {
	uploads := t.TempDir()
	g, _, _ := newTestGenerator(t, nil)
	server := NewOnDemandServer(OnDemandOptions{
		Generator:    g,
		UploadsDir:   uploads,
		OptimizedDir: filepath.Join(uploads, "optimized"),
		Rate:         20,
		Burst:        1,
	})
	writeFixture(t, uploads, "a.png", 200, 200)

	start := time.Now()
	_, err := server.Resolve(context.Background(), "a.png", "thumbnail", "jpeg")
	require.NoError(t, err)
	_, err = server.Resolve(context.Background(), "a.png", "avatar", "jpeg")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestSafeName(t *testing.T) {
	assert.True(t, safeName("photo.png"))
	assert.True(t, safeName("my photo.v2.png"))
	assert.False(t, safeName(""))
	assert.False(t, safeName("."))
	assert.False(t, safeName(".."))
	assert.False(t, safeName("a/b.png"))
	assert.False(t, safeName(`a\b.png`))
	assert.False(t, safeName("a..b.png"))
}
