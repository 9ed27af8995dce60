package media

import (
	"context"
	"net/http"
	"path"
	"strings"
	"time"

	domainimage "blog-image-server/internal/domain/image"
	"blog-image-server/internal/domain/image/index"
	platformerrors "blog-image-server/internal/platform/errors"
	"blog-image-server/internal/platform/logging"
	httptransport "blog-image-server/internal/transport/http"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/disk"
)

const (
	// OptimizedImagesKey is the gin context key holding *image.OptimizedUpload.
	OptimizedImagesKey = "optimizedImages"
	uploadedFileKey    = "uploadedFile"

	originalCacheControl = "no-cache"
)

// Options wires the media service.
type Options struct {
	Pipeline *domainimage.Pipeline
	Hook     *domainimage.UploadHook
	OnDemand *domainimage.OnDemandServer
	Sweeper  *domainimage.Sweeper
	Index    index.Store
	Catalog  *domainimage.Catalog

	UploadsDir      string
	UploadsPrefix   string
	OptimizedPrefix string
	RetentionMaxAge time.Duration
	Logger          *logging.Logger
}

// Service 图片上传与变体分发的HTTP传输层实现
type Service struct {
	pipeline *domainimage.Pipeline
	hook     *domainimage.UploadHook
	ondemand *domainimage.OnDemandServer
	sweeper  *domainimage.Sweeper
	index    index.Store
	catalog  *domainimage.Catalog

	uploadsDir      string
	uploadsPrefix   string
	optimizedPrefix string
	retention       time.Duration
	logger          *logging.Logger
}

// NewService 创建媒体服务实例
func NewService(opts Options) (*Service, error) {
	if opts.Logger == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "media.new", "logger is required")
	}
	if opts.Pipeline == nil || opts.Hook == nil || opts.OnDemand == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "media.new", "pipeline, hook and on-demand server are required")
	}
	if opts.Sweeper == nil || opts.Index == nil {
		return nil, platformerrors.New(platformerrors.KindConfig, "media.new", "sweeper and index are required")
	}
	if opts.Catalog == nil {
		opts.Catalog = domainimage.DefaultCatalog()
	}
	if opts.UploadsPrefix == "" {
		opts.UploadsPrefix = "/uploads"
	}
	if opts.OptimizedPrefix == "" {
		opts.OptimizedPrefix = domainimage.DefaultPublicPrefix
	}
	if opts.RetentionMaxAge <= 0 {
		opts.RetentionMaxAge = domainimage.DefaultRetention
	}

	return &Service{
		pipeline:        opts.Pipeline,
		hook:            opts.Hook,
		ondemand:        opts.OnDemand,
		sweeper:         opts.Sweeper,
		index:           opts.Index,
		catalog:         opts.Catalog,
		uploadsDir:      opts.UploadsDir,
		uploadsPrefix:   opts.UploadsPrefix,
		optimizedPrefix: strings.TrimSuffix(opts.OptimizedPrefix, "/"),
		retention:       opts.RetentionMaxAge,
		logger:          opts.Logger,
	}, nil
}

// Register 注册媒体相关的HTTP路由
func (s *Service) Register(_ context.Context, engine *gin.Engine, api *gin.RouterGroup) error {
	engine.GET(s.optimizedPrefix+"/:filename", s.handleOptimized)

	api.POST("/uploads", s.storeUpload, s.OptimizeMiddleware(), s.handleUploadResult)
	api.GET("/images/:filename/variants", s.handleImageVariants)
	api.GET("/variants", s.handleCatalog)
	api.GET("/status", s.handleStatus)
	api.POST("/maintenance/sweep", s.handleSweep)

	s.logger.InfoTag("HTTP", "媒体服务路由注册完成")
	return nil
}

// OptimizeMiddleware runs the upload hook after the upload was stored. It
// never aborts the chain; optimisation failures are logged and dropped.
func (s *Service) OptimizeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		var file *domainimage.UploadedFile
		if v, ok := c.Get(uploadedFileKey); ok {
			file, _ = v.(*domainimage.UploadedFile)
		}

		outcome := s.hook.Run(c.Request.Context(), file, c.PostForm("type"))
		switch {
		case outcome.NoFile:
		case outcome.Err != nil:
			s.logger.WarnTag("UPLOAD", "optimisation of %s skipped: %v", file.Filename, outcome.Err)
		case outcome.Optimized != nil:
			c.Set(OptimizedImagesKey, outcome.Optimized)
		}
		c.Next()
	}
}

// storeUpload 校验并保存上传文件
func (s *Service) storeUpload(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.Next()
		return
	}
	f, err := header.Open()
	if err != nil {
		httptransport.RespondErr(c, platformerrors.Wrap(platformerrors.KindTransport, "media.upload", "open upload", err))
		c.Abort()
		return
	}
	defer f.Close()

	stored, err := s.pipeline.Store(c.Request.Context(), domainimage.Input{Reader: f, Filename: header.Filename})
	if err != nil {
		s.logger.WarnTag("UPLOAD", "rejected %s: %v", header.Filename, err)
		httptransport.RespondErr(c, err)
		c.Abort()
		return
	}
	c.Set(uploadedFileKey, &domainimage.UploadedFile{Path: stored.Path, Filename: stored.Filename})
	c.Next()
}

// handleUploadResult 处理图片上传
// @Summary 上传图片
// @Description 保存原图并生成该类型对应的变体，优化失败不影响上传结果
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "图片文件"
// @Param type formData string false "图片类型 avatar|cover|hero|post"
// @Success 201 {object} httptransport.APIResponse
// @Failure 400 {object} httptransport.APIResponse
// @Router /api/uploads [post]
func (s *Service) handleUploadResult(c *gin.Context) {
	v, ok := c.Get(uploadedFileKey)
	if !ok {
		httptransport.RespondError(c, http.StatusBadRequest, "file is required", gin.H{})
		return
	}
	file := v.(*domainimage.UploadedFile)

	if optimized, ok := c.Get(OptimizedImagesKey); ok {
		httptransport.RespondSuccess(c, http.StatusCreated, optimized, "uploaded")
		return
	}
	httptransport.RespondSuccess(c, http.StatusCreated, &domainimage.OptimizedUpload{
		Original: domainimage.OriginalImage{
			Path: file.Path,
			URL:  path.Join(s.uploadsPrefix, file.Filename),
		},
		Variants: domainimage.ResultSet{},
	}, "uploaded")
}

// handleOptimized 处理按需变体请求
// @Summary 获取图片变体
// @Description 优先返回缓存变体，缺失时同步生成，格式不可用时返回原图
// @Tags Media
// @Produce image/webp,image/jpeg,image/avif,image/png
// @Param filename path string true "原图文件名"
// @Param variant query string false "变体名称" default(medium)
// @Param format query string false "输出格式" default(webp)
// @Success 200 {file} file
// @Failure 404 {object} httptransport.APIResponse
// @Failure 500 {object} httptransport.APIResponse
// @Router /uploads/optimized/{filename} [get]
func (s *Service) handleOptimized(c *gin.Context) {
	res, err := s.ondemand.Resolve(c.Request.Context(), c.Param("filename"), c.Query("variant"), c.Query("format"))
	if err != nil {
		c.Writer.Header().Del("Cache-Control")
		httptransport.RespondErr(c, err)
		return
	}

	c.Header("X-Image-Source", string(res.Kind))
	if res.Kind == domainimage.ServedOriginal {
		c.Header("Cache-Control", originalCacheControl)
	} else {
		c.Header("Cache-Control", httptransport.ImmutableCacheControl)
	}
	c.Header("Content-Type", res.ContentType)
	c.File(res.Path)
}

// handleImageVariants 查询某张原图已生成的变体
// @Summary 查询图片变体
// @Tags Media
// @Produce json
// @Param filename path string true "原图文件名"
// @Success 200 {object} httptransport.APIResponse
// @Router /api/images/{filename}/variants [get]
func (s *Service) handleImageVariants(c *gin.Context) {
	filename := c.Param("filename")
	entries, err := s.index.ListBySource(c.Request.Context(), filename)
	if err != nil {
		httptransport.RespondErr(c, platformerrors.Wrap(platformerrors.KindStorage, "media.variants", "list variants", err))
		return
	}
	if entries == nil {
		entries = []index.Entry{}
	}
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"filename": filename,
		"variants": entries,
	}, "")
}

// handleCatalog 返回变体目录
// @Summary 变体目录
// @Tags Media
// @Produce json
// @Success 200 {object} httptransport.APIResponse
// @Router /api/variants [get]
func (s *Service) handleCatalog(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"variants": s.catalog.Specs(),
		"formats":  s.catalog.Formats(),
	}, "")
}

// handleStatus 返回服务状态
// @Summary 服务状态
// @Description 变体目录、索引统计与上传目录磁盘占用
// @Tags Maintenance
// @Produce json
// @Success 200 {object} httptransport.APIResponse
// @Router /api/status [get]
func (s *Service) handleStatus(c *gin.Context) {
	ctx := c.Request.Context()
	data := gin.H{
		"variants": s.catalog.Names(),
		"formats":  s.catalog.Formats(),
	}

	if stats, err := s.index.Stats(ctx); err != nil {
		s.logger.WarnTag("INDEX", "stats unavailable: %v", err)
	} else {
		data["index"] = stats
	}

	if usage, err := disk.UsageWithContext(ctx, s.uploadsDir); err != nil {
		s.logger.WarnTag("HTTP", "disk usage of %s unavailable: %v", s.uploadsDir, err)
	} else {
		data["disk"] = gin.H{
			"path":         usage.Path,
			"total":        usage.Total,
			"free":         usage.Free,
			"used":         usage.Used,
			"used_percent": usage.UsedPercent,
		}
	}

	httptransport.RespondSuccess(c, http.StatusOK, data, "")
}

// handleSweep 手动触发过期变体清理
// @Summary 清理过期变体
// @Tags Maintenance
// @Produce json
// @Param max_age query string false "保留时长，例如 720h"
// @Success 200 {object} httptransport.APIResponse
// @Failure 400 {object} httptransport.APIResponse
// @Router /api/maintenance/sweep [post]
func (s *Service) handleSweep(c *gin.Context) {
	maxAge := s.retention
	if raw := strings.TrimSpace(c.Query("max_age")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			httptransport.RespondError(c, http.StatusBadRequest, "max_age must be a positive duration", gin.H{"max_age": raw})
			return
		}
		maxAge = d
	}

	removed := s.sweeper.Sweep(c.Request.Context(), maxAge)
	httptransport.RespondSuccess(c, http.StatusOK, gin.H{
		"removed": removed,
		"max_age": maxAge.String(),
	}, "")
}
