package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"docutext-backend/internal/aggregates"
	"docutext-backend/internal/analytics"
	"docutext-backend/internal/extractions"
	"docutext-backend/internal/llm"
	openai "docutext-backend/internal/llm/openai"
	"docutext-backend/internal/ocr"
	"docutext-backend/internal/shared/cache"
	"docutext-backend/internal/shared/config"
	"docutext-backend/internal/shared/server"
	"docutext-backend/internal/shared/storage/db"
	"docutext-backend/internal/shared/storage/object"
	localstore "docutext-backend/internal/shared/storage/object/local"
	"docutext-backend/internal/shared/telemetry"
)

// App holds shared dependencies and the wired router.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Cache  *redis.Client

	// OCR is non-nil when the local engine backs extraction; it owns
	// tesseract resources and must be closed on shutdown.
	OCR *ocr.Engine

	ExtractionsRepo    extractions.Repo
	AggregatesService  *aggregates.Service
	ExtractionsService *extractions.Service
	AnalyticsService   *analytics.Service

	ExtractionsHandler *extractions.Handler
	AnalyticsHandler   *analytics.Handler
}

// Build prepares all dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	telemetry.Init(cfg.LogLevel, cfg.LogFile)
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  localstore.New(cfg.LocalStoreDir),
		Cache:  cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB),
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:             cfg,
		ExtractionsHandler: app.ExtractionsHandler,
		AnalyticsHandler:   app.AnalyticsHandler,
		Healthy:            app.healthStatus,
	})
	return app, nil
}

// Close releases held resources: the OCR engine, the database pool and the
// cache connection.
func (a *App) Close() error {
	var firstErr error
	if a.OCR != nil {
		if err := a.OCR.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Info("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Error("bootstrap.db.fallback", map[string]any{"err": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildServices(app *App) error {
	cfg := app.Config

	var repo extractions.Repo
	var aggSvc *aggregates.Service
	if app.DB != nil {
		repo = &extractions.PGRepo{DB: app.DB}
		aggSvc = aggregates.NewService(aggregates.NewPGStore(app.DB))
	} else {
		memRepo := extractions.NewMemoryRepo()
		repo = memRepo
		aggSvc = aggregates.NewService(aggregates.NewMemoryStore(memRepo))
	}

	extractor, enhancer, factory, err := buildExtractor(app, cfg)
	if err != nil {
		return err
	}

	extractSvc := &extractions.Service{
		Repo:         repo,
		Store:        app.Store,
		Extractor:    extractor,
		ExtractorFor: factory,
		Enhancer:     enhancer,
		Aggregates:   aggSvc,
	}
	analyticsSvc := analytics.NewService(aggSvc, repo, app.Cache)

	app.ExtractionsRepo = repo
	app.AggregatesService = aggSvc
	app.ExtractionsService = extractSvc
	app.AnalyticsService = analyticsSvc
	app.ExtractionsHandler = extractions.NewHandler(extractSvc)
	app.AnalyticsHandler = analytics.NewHandler(analyticsSvc)
	return nil
}

// buildExtractor picks the extraction backend. An OpenAI key selects the
// AI-backed client unless EXTRACTOR=local forces the on-host engine; with
// no key the engine is the only option and enhancement stays disabled.
func buildExtractor(app *App, cfg config.Config) (extractions.Extractor, extractions.Enhancer, extractions.ExtractorFactory, error) {
	factory := func(apiKey string) (extractions.Extractor, error) {
		client, err := openai.NewClient(apiKey, cfg.OpenAIModel, cfg.OpenAIFallbackModel)
		if err != nil {
			return nil, err
		}
		return llmExtractor{client: client}, nil
	}

	useLocal := cfg.ExtractorType == "local" || cfg.OpenAIAPIKey == ""
	if useLocal {
		engine := ocr.NewEngine(cfg.OCRLanguages...)
		app.OCR = engine
		telemetry.Info("bootstrap.extractor", map[string]any{"type": "local", "languages": cfg.OCRLanguages})
		return ocrExtractor{engine: engine}, nil, factory, nil
	}

	client, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIFallbackModel)
	if err != nil {
		return nil, nil, nil, err
	}
	telemetry.Info("bootstrap.extractor", map[string]any{"type": "openai", "model": cfg.OpenAIModel})
	return llmExtractor{client: client}, llmEnhancer{client: client}, factory, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func (a *App) healthStatus() map[string]bool {
	status := map[string]bool{
		"ok":       true,
		"database": a.DB != nil,
		"cache":    a.Cache != nil,
	}
	if a.DB != nil {
		status["database"] = a.DB.Ping() == nil
		status["ok"] = status["database"]
	}
	return status
}

// llmExtractor adapts the chat-completions client to the workflow's
// Extractor shape: images go through the vision path, everything else
// through the document path.
type llmExtractor struct {
	client llm.Client
}

func (a llmExtractor) Extract(ctx context.Context, data []byte, mimeType, fileName string) (string, float64, error) {
	var (
		ex  llm.Extraction
		err error
	)
	if strings.HasPrefix(mimeType, "image/") {
		ex, err = a.client.ExtractFromImage(ctx, data, mimeType)
	} else {
		ex, err = a.client.ExtractFromDocument(ctx, data, mimeType, fileName)
	}
	if err != nil {
		return "", 0, err
	}
	return ex.Text, ex.Confidence, nil
}

type llmEnhancer struct {
	client llm.Client
}

func (a llmEnhancer) Enhance(ctx context.Context, text, hint string) (string, float64, error) {
	ex, err := a.client.Enhance(ctx, text, hint)
	if err != nil {
		return "", 0, err
	}
	return ex.Text, ex.Confidence, nil
}

// ocrExtractor adapts the local engine.
type ocrExtractor struct {
	engine *ocr.Engine
}

func (a ocrExtractor) Extract(ctx context.Context, data []byte, mimeType, fileName string) (string, float64, error) {
	res, err := a.engine.Extract(ctx, data, mimeType, fileName)
	if err != nil {
		return "", 0, err
	}
	return res.Text, res.Confidence, nil
}
