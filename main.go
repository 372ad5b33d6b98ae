package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gohan/variantstore/contexts"
	"gohan/variantstore/metadata"
	gam "gohan/variantstore/middleware"
	"gohan/variantstore/models"
	serviceInfo "gohan/variantstore/models/constants/service-info"
	serviceInfoMvc "gohan/variantstore/mvc/service-info"
	variantsMvc "gohan/variantstore/mvc/variants"
	"gohan/variantstore/repositories"
	esRepo "gohan/variantstore/repositories/elasticsearch"
	"gohan/variantstore/repositories/widecolumn"
	"gohan/variantstore/services"
	"gohan/variantstore/services/sanitation"
	variantsService "gohan/variantstore/services/variants"
	"gohan/variantstore/utils"

	"github.com/kelseyhightower/envconfig"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Gather environment variables
	var cfg models.Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("using",
		"debug", cfg.Debug,
		"backend", cfg.Api.Backend,
		"vcfPath", cfg.Api.VcfPath,
		"batchSize", cfg.Api.BatchSize,
		"loadConcurrency", cfg.Api.LoadConcurrency,
		"elasticsearchUrl", cfg.Elasticsearch.Url,
		"elasticsearchUsername", cfg.Elasticsearch.Username,
		"wideColumnPath", cfg.WideColumn.Path,
		"sqlDriver", cfg.WideColumn.SqlDriver,
		"catalog", cfg.Metadata.Path,
		"port", cfg.Api.Port)

	manager, err := metadata.LoadCatalog(cfg.Metadata.Path)
	if err != nil {
		logger.Error("loading catalog", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Service Connections
	adaptor, err := createAdaptor(ctx, &cfg, manager, logger)
	if err != nil {
		logger.Error("connecting to the variant backend", "error", err)
		os.Exit(1)
	}
	defer adaptor.Close()

	// Service Singletons
	vs := variantsService.NewVariantService(adaptor, cfg.Api.Backend, logger)
	iz, err := services.NewIngestionService(adaptor, manager, services.IngestionSettings{
		Backend:     cfg.Api.Backend,
		VcfPath:     cfg.Api.VcfPath,
		BatchSize:   cfg.Api.BatchSize,
		Concurrency: cfg.Api.LoadConcurrency,
		MaxRetries:  5,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("starting ingestion service", "error", err)
		os.Exit(1)
	}
	defer iz.Release()

	ss := sanitation.NewSanitationService(adaptor, manager, logger)
	if err := ss.Init(); err != nil {
		logger.Error("starting sanitation service", "error", err)
		os.Exit(1)
	}
	defer ss.Stop()

	e := newServer(&cfg, logger, vs, iz)

	// Run
	go func() {
		if err := e.Start(":" + cfg.Api.Port); err != nil && err != http.ErrServerClosed {
			logger.Error("server stopped", "error", err)
			stop()
		}
	}()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutting down", "error", err)
	}
}

func createAdaptor(ctx context.Context, cfg *models.Config, manager *metadata.InMemoryManager, logger *slog.Logger) (repositories.VariantAdaptor, error) {
	switch cfg.Api.Backend {
	case models.BACKEND_ELASTICSEARCH:
		es, transport, err := utils.CreateEsConnection(cfg.Elasticsearch.Url, cfg.Elasticsearch.Username, cfg.Elasticsearch.Password)
		if err != nil {
			return nil, err
		}
		a := esRepo.NewVariantAdaptor(es, manager, manager, esRepo.Settings{
			Index:            cfg.Elasticsearch.Index,
			DefaultTimeout:   cfg.Query.DefaultTimeout,
			MaxTimeout:       cfg.Query.MaxTimeout,
			MaxResultWindow:  cfg.Query.MaxResultWindow,
			DefaultBatchSize: cfg.Query.DefaultBatchSize,
			Logger:           logger,
			HttpTransport:    transport,
		})
		if err := a.EnsureIndex(ctx); err != nil {
			a.Close()
			return nil, err
		}
		return a, nil

	case models.BACKEND_WIDECOLUMN:
		return widecolumn.NewVariantAdaptor(manager, manager, widecolumn.Settings{
			Path:             cfg.WideColumn.Path,
			InMemory:         cfg.WideColumn.InMemory,
			SqlDriver:        cfg.WideColumn.SqlDriver,
			SqlDsn:           cfg.WideColumn.SqlDsn,
			DefaultTimeout:   cfg.Query.DefaultTimeout,
			MaxTimeout:       cfg.Query.MaxTimeout,
			MaxResultWindow:  cfg.Query.MaxResultWindow,
			DefaultBatchSize: cfg.Query.DefaultBatchSize,
			Logger:           logger,
		})
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Api.Backend)
}

func newServer(cfg *models.Config, logger *slog.Logger, vs *variantsService.VariantService, iz *services.IngestionService) *echo.Echo {
	// Instantiate Server
	e := echo.New()
	e.HideBanner = true

	// Configure Server
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.PUT, echo.POST, echo.DELETE},
	}))

	// -- Override handlers with "custom Gohan" context
	//		to be able to provide variables and global singletons
	e.Use(func(h echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &contexts.GohanContext{
				Context:          c,
				Config:           cfg,
				Log:              logger,
				VariantService:   vs,
				IngestionService: iz,
			}
			return h(cc)
		}
	})

	// Begin MVC Routes
	// -- Root
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, serviceInfo.SERVICE_WELCOME)
	})

	// -- Service Info
	e.GET("/service-info", serviceInfoMvc.GetServiceInfo)

	// -- Metrics
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// -- Variants
	e.GET("/variants/get", variantsMvc.VariantsGet,
		// middleware
		gam.ValidateVariantQuery())
	e.GET("/variants/count", variantsMvc.VariantsCount,
		gam.ValidateVariantQuery())
	e.GET("/variants/overview", variantsMvc.GetVariantsOverview,
		gam.ValidateVariantQuery(variantsMvc.PARAM_FIELD))
	e.GET("/variants/phased", variantsMvc.VariantsGetPhased,
		gam.ValidateVariantQuery(variantsMvc.PARAM_VARIANT, variantsMvc.PARAM_STUDY, variantsMvc.PARAM_SAMPLE, variantsMvc.PARAM_WINDOW_SIZE))

	e.GET("/variants/ingestion/run", variantsMvc.VariantsIngest,
		gam.MandateStudyAttribute)
	e.GET("/variants/ingestion/requests", variantsMvc.GetAllVariantIngestionRequests)

	return e
}
