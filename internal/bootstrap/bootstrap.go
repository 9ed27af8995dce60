package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "blog-image-server/docs"
	"blog-image-server/internal/domain/eventbus"
	domainimage "blog-image-server/internal/domain/image"
	"blog-image-server/internal/domain/image/index"
	platformconfig "blog-image-server/internal/platform/config"
	platformerrors "blog-image-server/internal/platform/errors"
	platformlogging "blog-image-server/internal/platform/logging"
	platformobservability "blog-image-server/internal/platform/observability"
	httptransport "blog-image-server/internal/transport/http"
	httpmedia "blog-image-server/internal/transport/http/media"

	"golang.org/x/sync/errgroup"
)

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	loader                *platformconfig.Loader
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	bus                   *eventbus.AsyncEventBus
	index                 index.Store
	images                *imageServices
}

// imageServices groups the image pipeline components shared by the HTTP layer and the sweeper.
type imageServices struct {
	catalog   *domainimage.Catalog
	metadata  *domainimage.MetadataReader
	generator *domainimage.Generator
	pipeline  *domainimage.Pipeline
	hook      *domainimage.UploadHook
	ondemand  *domainimage.OnDemandServer
	sweeper   *domainimage.Sweeper
}

// Run 启动整个服务生命周期，负责加载配置、初始化依赖和优雅关停。
func Run(ctx context.Context) error {
	return run(ctx, platformconfig.NewLoader())
}

func run(ctx context.Context, loader *platformconfig.Loader) error {
	state := &appState{loader: loader}
	defer state.close()

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	if state.config == nil || state.logger == nil || state.images == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger/image services not initialised",
		)
	}
	logger := state.logger
	logBootstrapGraph(steps, logger)

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	logger.InfoTag("BOOT", "服务已成功启动")
	return waitForShutdown(signalCtx, groupCtx, cancel, logger, group)
}

// close releases everything the init steps acquired, in reverse order.
func (s *appState) close() {
	if s.bus != nil {
		s.bus.Stop()
	}
	if s.images != nil && s.images.metadata != nil {
		s.images.metadata.Close()
	}
	if s.index != nil {
		if err := s.index.Close(context.Background()); err != nil && s.logger != nil {
			s.logger.WarnTag("INDEX", "索引未正常关闭: %v", err)
		}
	}
	if s.observabilityShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.observabilityShutdown(shutdownCtx); err != nil && s.logger != nil {
			s.logger.WarnTag("BOOT", "可观测性未正常关闭: %v", err)
		}
		cancel()
	}
	if s.logger != nil {
		_ = s.logger.Close()
	}
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("BOOT", "初始化依赖关系概览")
	for _, step := range steps {
		if len(step.DependsOn) == 0 {
			logger.InfoTag("BOOT", "%s: %s", step.ID, step.Title)
			continue
		}
		logger.InfoTag("BOOT", "%s: %s (依赖 %s)", step.ID, step.Title, strings.Join(step.DependsOn, ", "))
	}
	logger.InfoTag("BOOT", "启动服务")
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph returns the ordered initialisation steps.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "eventbus:start",
			Title:     "Start async event bus",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   startEventBusStep,
		},
		{
			ID:        "index:open",
			Title:     "Open artifact index",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindStorage,
			Execute:   openIndexStep,
		},
		{
			ID:        "image:init-services",
			Title:     "Initialise image pipeline",
			DependsOn: []string{"observability:setup-hooks", "eventbus:start", "index:open"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initImageServicesStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	loader := state.loader
	if loader == nil {
		loader = platformconfig.NewLoader()
	}
	result, err := loader.Load()
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindConfig, "config:load", "failed to load config", err)
	}
	state.config = result.Config
	state.configPath = result.Path
	if state.configPath == "" {
		state.configPath = "defaults"
	}
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logger = logger
	state.slogger = logger.Slog()
	logger.InfoTag("BOOT", "日志模块就绪 [%s] %s", state.config.Log.Level, state.configPath)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	shutdown, err := platformobservability.Setup(ctx, platformobservability.Config{
		Enabled: state.config.Observability.Enabled,
	}, state.slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown
	return nil
}

func startEventBusStep(_ context.Context, state *appState) error {
	bus := eventbus.NewAsyncEventBus(4, state.logger)
	if err := eventbus.NewLoggingHandler(state.logger).Register(bus); err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "eventbus:start", "failed to subscribe event handlers", err)
	}
	bus.Start()
	state.bus = bus
	return nil
}

func openIndexStep(_ context.Context, state *appState) error {
	cfg := state.config.Index
	store, err := index.New(index.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Driver)),
		SQLite: &index.SQLiteConfig{DSN: cfg.SQLite.DSN},
		Redis: &index.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		},
	}, index.Dependencies{})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "index:open", "failed to open artifact index", err)
	}
	state.index = store
	state.logger.InfoTag("INDEX", "变体索引就绪 (%s)", cfg.Driver)
	return nil
}

func initImageServicesStep(_ context.Context, state *appState) error {
	services, err := newImageServices(state.config, state.index, state.bus, state.logger)
	if err != nil {
		return err
	}
	state.images = services
	return nil
}

func newImageServices(
	config *platformconfig.Config,
	store index.Store,
	events domainimage.Publisher,
	logger *platformlogging.Logger,
) (*imageServices, error) {
	catalog, err := domainimage.DefaultCatalog().WithFormats(config.Optimizer.Formats)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindConfig, "image:init-services", "invalid optimizer formats", err)
	}

	optimizedDir := config.Uploads.OptimizedDir()
	if err := os.MkdirAll(optimizedDir, 0o755); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindPlatform, "image:init-services", "failed to create uploads dir", err)
	}

	metadata := domainimage.NewMetadataReader(config.Optimizer.MetadataCacheTTL)
	generator := domainimage.NewGenerator(domainimage.GeneratorOptions{
		Catalog: catalog,
		Transcoder: domainimage.NewTranscoder(domainimage.TranscoderOptions{
			FFmpegPath: config.Optimizer.FFmpegPath,
			Logger:     logger,
		}),
		Metadata:     metadata,
		Index:        store,
		Events:       events,
		PublicPrefix: joinURL(config.Uploads.PublicPrefix, config.Uploads.OptimizedSubdir),
		Logger:       logger,
	})

	pipeline, err := domainimage.NewPipeline(domainimage.PipelineOptions{
		Dir: config.Uploads.Dir,
		Limits: domainimage.ValidatorLimits{
			MaxFileSize:    config.Uploads.MaxFileSize,
			MaxWidth:       config.Uploads.MaxWidth,
			MaxHeight:      config.Uploads.MaxHeight,
			AllowedFormats: config.Uploads.AllowedFormats,
		},
		Logger: logger,
	})
	if err != nil {
		metadata.Close()
		return nil, platformerrors.Wrap(platformerrors.KindBootstrap, "image:init-services", "failed to create upload pipeline", err)
	}

	return &imageServices{
		catalog:   catalog,
		metadata:  metadata,
		generator: generator,
		pipeline:  pipeline,
		hook: domainimage.NewUploadHook(domainimage.UploadHookOptions{
			Generator:      generator,
			OptimizedDir:   optimizedDir,
			OriginalPrefix: config.Uploads.PublicPrefix,
			Logger:         logger,
		}),
		ondemand: domainimage.NewOnDemandServer(domainimage.OnDemandOptions{
			Generator:    generator,
			UploadsDir:   config.Uploads.Dir,
			OptimizedDir: optimizedDir,
			Rate:         config.Optimizer.GenerateRate,
			Burst:        config.Optimizer.GenerateBurst,
			Logger:       logger,
		}),
		sweeper: domainimage.NewSweeper(domainimage.SweeperOptions{
			Dir:    optimizedDir,
			Index:  store,
			Events: events,
			Logger: logger,
		}),
	}, nil
}

func joinURL(prefix, sub string) string {
	prefix = "/" + strings.Trim(prefix, "/")
	if sub == "" {
		return prefix
	}
	return strings.TrimSuffix(prefix, "/") + "/" + strings.Trim(sub, "/")
}

func buildHTTPHandler(ctx context.Context, state *appState) (http.Handler, error) {
	config := state.config
	logger := state.logger

	router, err := httptransport.Build(httptransport.Options{
		Logger:          logger,
		Debug:           strings.EqualFold(config.Log.Level, "debug"),
		UploadsDir:      config.Uploads.Dir,
		UploadsPrefix:   config.Uploads.PublicPrefix,
		OptimizedPrefix: joinURL(config.Uploads.PublicPrefix, config.Uploads.OptimizedSubdir),
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "http:build-router", "failed to build router", err)
	}

	images := state.images
	mediaService, err := httpmedia.NewService(httpmedia.Options{
		Pipeline:        images.pipeline,
		Hook:            images.hook,
		OnDemand:        images.ondemand,
		Sweeper:         images.sweeper,
		Index:           state.index,
		Catalog:         images.catalog,
		UploadsDir:      config.Uploads.Dir,
		UploadsPrefix:   config.Uploads.PublicPrefix,
		OptimizedPrefix: joinURL(config.Uploads.PublicPrefix, config.Uploads.OptimizedSubdir),
		RetentionMaxAge: config.Retention.MaxAge,
		Logger:          logger,
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "media:new-service", "failed to create media service", err)
	}
	if err := mediaService.Register(ctx, router.Engine, router.API); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "media:register", "failed to register media routes", err)
	}
	httptransport.RegisterDocs(router.Engine, logger)

	return router.Engine, nil
}

func startHTTPServer(
	state *appState,
	g *errgroup.Group,
	groupCtx context.Context,
) (*http.Server, error) {
	config := state.config
	logger := state.logger

	handler, err := buildHTTPHandler(groupCtx, state)
	if err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(config.Server.IP, strconv.Itoa(config.Server.Port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "Gin 服务已启动，访问地址 http://%s", httpServer.Addr)
		logger.InfoTag("HTTP", "在线文档入口: http://%s/docs", httpServer.Addr)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "HTTP 服务关闭失败: %v", err)
			} else {
				logger.InfoTag("HTTP", "HTTP 服务已优雅关闭")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "HTTP 服务启动失败: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

// sweeperEnabled reports whether the periodic retention sweep should run.
func sweeperEnabled(config *platformconfig.Config) bool {
	return config.App.IsProduction() || config.Retention.Enabled
}

func startSweeper(state *appState, g *errgroup.Group, groupCtx context.Context) bool {
	config := state.config
	if !sweeperEnabled(config) {
		state.logger.InfoTag("SWEEP", "过期变体清理未启用 (env=%s)", config.App.Env)
		return false
	}
	sweeper := state.images.sweeper
	g.Go(func() error {
		sweeper.Run(groupCtx, config.Retention.Interval, config.Retention.MaxAge)
		return nil
	})
	return true
}

func waitForShutdown(
	signalCtx context.Context,
	groupCtx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	select {
	case <-signalCtx.Done():
		logger.InfoTag("BOOT", "收到系统信号 %v，正在进行资源清理", context.Cause(signalCtx))
	case <-groupCtx.Done():
		logger.WarnTag("BOOT", "服务异常退出，正在进行资源清理")
	}

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("BOOT", "服务关闭过程中出现错误: %v", err)
			return err
		}
		logger.InfoTag("BOOT", "所有服务已成功关闭")
	case <-time.After(15 * time.Second):
		logger.ErrorTag("BOOT", "服务关闭超时，已强制退出")
		return errors.New("服务关闭超时")
	}
	return nil
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	if _, err := startHTTPServer(state, g, groupCtx); err != nil {
		return fmt.Errorf("启动 Http 服务失败: %w", err)
	}
	startSweeper(state, g, groupCtx)
	return nil
}
