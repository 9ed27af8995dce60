package httptransport

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"blog-image-server/internal/platform/logging"
	"blog-image-server/internal/platform/observability"
)

// ImmutableCacheControl is sent with every generated variant.
const ImmutableCacheControl = "public, max-age=31536000"

// RequestIDHeader carries the per-request id, echoed from the client when present.
const RequestIDHeader = "X-Request-ID"

// Options configures the HTTP router builder.
type Options struct {
	Logger *logging.Logger
	Debug  bool
	// UploadsDir is served under UploadsPrefix. Empty disables static serving.
	UploadsDir    string
	UploadsPrefix string
	// OptimizedPrefix marks static responses that get ImmutableCacheControl.
	OptimizedPrefix string
}

// Router bundles together the gin engine and common route groups.
type Router struct {
	Engine *gin.Engine
	API    *gin.RouterGroup
}

// Build constructs a gin engine pre-configured with logging, recovery, CORS and observability middlewares.
func Build(opts Options) (*Router, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("http router requires logger")
	}
	logger := opts.Logger

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware(logger))
	engine.Use(observabilityMiddleware())

	engine.SetTrustedProxies(nil)

	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "X-Image-Source", RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	if opts.UploadsDir != "" {
		prefix := opts.UploadsPrefix
		if prefix == "" {
			prefix = "/uploads"
		}
		if opts.OptimizedPrefix != "" {
			engine.Use(immutableCache(opts.OptimizedPrefix))
		}
		engine.Use(static.Serve(prefix, static.LocalFile(opts.UploadsDir, false)))
	}

	engine.NoRoute(func(c *gin.Context) {
		RespondError(c, http.StatusNotFound, "not found", gin.H{})
	})

	return &Router{
		Engine: engine,
		API:    engine.Group("/api"),
	}, nil
}

// immutableCache sets ImmutableCacheControl on GET requests under prefix.
func immutableCache(prefix string) gin.HandlerFunc {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodGet && strings.HasPrefix(c.Request.URL.Path, prefix) {
			c.Header("Cache-Control", ImmutableCacheControl)
		}
		c.Next()
	}
}

func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		start := time.Now()
		c.Next()
		duration := time.Since(start)
		status := c.Writer.Status()

		logger.InfoTag("HTTP", "[%s] %s %s -> %d (%s)",
			requestID,
			c.Request.Method,
			c.Request.URL.Path,
			status,
			duration,
		)
	}
}

func observabilityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		reqCtx, spanEnd := observability.StartSpan(c.Request.Context(), "http.server", path)
		var spanErr error
		c.Request = c.Request.WithContext(reqCtx)

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		if len(c.Errors) > 0 {
			spanErr = c.Errors.Last().Err
		} else if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			spanErr = fmt.Errorf("status %d", status)
		}
		spanEnd(spanErr)

		observability.RecordMetric(
			reqCtx,
			observability.MetricHTTPRequests,
			1,
			map[string]string{
				"component": "http.server",
				"method":    c.Request.Method,
				"path":      path,
				"status":    strconv.Itoa(c.Writer.Status()),
			},
		)
		observability.RecordMetric(
			reqCtx,
			observability.MetricHTTPDuration,
			float64(duration.Milliseconds()),
			map[string]string{
				"component": "http.server",
				"method":    c.Request.Method,
				"path":      path,
			},
		)
	}
}
