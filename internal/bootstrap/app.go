package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"filing-backend/internal/classify"
	"filing-backend/internal/crm"
	"filing-backend/internal/documents"
	"filing-backend/internal/filer"
	"filing-backend/internal/folders"
	"filing-backend/internal/llm"
	openai "filing-backend/internal/llm/openai"
	"filing-backend/internal/pipeline"
	"filing-backend/internal/queue"
	"filing-backend/internal/services/health"
	"filing-backend/internal/shared/auth"
	"filing-backend/internal/shared/config"
	"filing-backend/internal/shared/resilience"
	"filing-backend/internal/shared/server"
	"filing-backend/internal/shared/storage/db"
	"filing-backend/internal/shared/storage/object"
	localstore "filing-backend/internal/shared/storage/object/local"
	miniostore "filing-backend/internal/shared/storage/object/minio"
	s3store "filing-backend/internal/shared/storage/object/s3"
	"filing-backend/internal/uploadlogs"
	"filing-backend/internal/uploads"
	"filing-backend/internal/workdrive"
	"filing-backend/internal/zoho"
)

// Role selects process-specific settings such as the database pool size.
type Role int

const (
	RoleAPI Role = iota
	RoleWorker
)

// App holds shared dependencies for the API and the worker.
type App struct {
	Config    config.Config
	Router    *gin.Engine
	DB        *sql.DB
	Redis     *redis.Client
	Store     object.Store
	Presigner object.Presigner
	Publisher *queue.Publisher

	DocumentsRepo documents.DocumentsRepo
	LogsRepo      uploadlogs.Repo
	Roots         crm.RootFolderLookup
	Drive         *workdrive.Client
	Executor      *resilience.Executor

	// Runner is nil when WorkDrive credentials are missing.
	Runner *pipeline.Runner
	Health *health.Service
}

// Build prepares shared dependencies and the HTTP router.
func Build(ctx context.Context, cfg config.Config, role Role) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}

	app := &App{
		Config:   cfg,
		Health:   health.NewService(),
		Executor: buildExecutor(cfg),
	}

	sqlDB, err := buildDB(ctx, cfg, role)
	if err != nil {
		return nil, err
	}
	app.DB = sqlDB
	if sqlDB != nil {
		app.Health.Add("database", func(ctx context.Context) error { return db.Healthy(ctx, sqlDB) })
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Store = store
	if p, ok := store.(object.Presigner); ok {
		app.Presigner = p
	}

	if cfg.RedisURL != "" {
		client, err := pipeline.NewRedisClient(cfg.RedisURL)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Redis = client
		app.Health.Add("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() })
	}

	if cfg.QueueURL != "" {
		sqsClient, err := queue.NewSQSClient(ctx, cfg.QueueURL, cfg.AWSRegion)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Publisher = queue.NewPublisher(sqsClient)
	}

	if err := buildServices(ctx, app); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

// Close releases connections held by the app.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config, role Role) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	defaults := db.DefaultServerOptions()
	if role == RoleWorker {
		defaults = db.DefaultWorkerOptions()
	}
	opts := db.OptionsFromEnv(defaults)
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if cfg.RunMigrations {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		return s3store.New(ctx, s3store.Options{
			Region:   cfg.AWSRegion,
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			KMSKeyID: cfg.SSEKMSKeyID,
			MaxBytes: cfg.MaxDocumentBytes,
		})
	case "minio":
		return miniostore.New(miniostore.Options{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			UseSSL:    cfg.Minio.UseSSL,
			Region:    cfg.AWSRegion,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			MaxBytes:  cfg.MaxDocumentBytes,
		})
	default:
		return localstore.New(cfg.LocalStoreDir, cfg.MaxDocumentBytes), nil
	}
}

func buildExecutor(cfg config.Config) *resilience.Executor {
	rc := resilience.DefaultConfig()
	if cfg.Resilience.RetryMaxAttempts > 0 {
		rc.RetryMaxAttempts = cfg.Resilience.RetryMaxAttempts
	}
	if cfg.Resilience.RetryInitialBackoff > 0 {
		rc.RetryInitialBackoff = cfg.Resilience.RetryInitialBackoff
	}
	rc.BreakerEnabled = cfg.Resilience.BreakerEnabled
	if cfg.Resilience.BreakerMinRequests > 0 {
		rc.BreakerMinRequests = uint32(cfg.Resilience.BreakerMinRequests)
	}
	if cfg.Resilience.BreakerOpenTimeout > 0 {
		rc.BreakerOpenTimeout = cfg.Resilience.BreakerOpenTimeout
	}
	return resilience.NewExecutor(rc)
}

func buildCompleter(cfg config.Config) (llm.Completer, error) {
	if cfg.LLMProvider != "openai" || strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		log.Printf("bootstrap: no LLM provider configured; classification will fail")
		return llm.PlaceholderCompleter{}, nil
	}
	return openai.NewClient(openai.Options{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.LLMModel,
		BaseURL: cfg.OpenAIBaseURL,
		Timeout: cfg.Filing.ClassifyTimeout,
	})
}

func buildTaxonomy(cfg config.Config) (classify.Taxonomy, error) {
	if path := strings.TrimSpace(cfg.TaxonomyFile); path != "" {
		return classify.LoadTaxonomy(path)
	}
	return classify.DefaultTaxonomy()
}

func buildRoots(app *App, crmAPI *zoho.API) crm.RootFolderLookup {
	cfg := app.Config
	switch {
	case cfg.RootFolderSource == "db" && app.DB != nil:
		return crm.NewDBLookup(app.DB)
	case crmAPI != nil:
		return crm.New(crmAPI, cfg.Zoho.CRMFolderField)
	default:
		log.Printf("bootstrap: no CRM or database root folder source; using empty in-memory lookup")
		return crm.NewMemoryLookup(nil)
	}
}

func buildServices(ctx context.Context, app *App) error {
	cfg := app.Config

	if app.DB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.LogsRepo = &uploadlogs.PGRepo{DB: app.DB}
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.LogsRepo = uploadlogs.NewMemoryRepo()
	}

	var crmAPI *zoho.API
	if cfg.Zoho.Configured() {
		src := zoho.TokenSource(ctx, zoho.Credentials{
			ClientID:     cfg.Zoho.ClientID,
			ClientSecret: cfg.Zoho.ClientSecret,
			RefreshToken: cfg.Zoho.RefreshToken,
			AccountsURL:  cfg.Zoho.AccountsURL,
		})
		httpClient := zoho.NewHTTPClient(src, cfg.Filing.UploadTimeout)
		driveAPI := zoho.NewAPI(cfg.Zoho.WorkDriveURL, httpClient, zoho.NewLimiter(cfg.Zoho.RatePerSec, cfg.Zoho.Burst))
		crmAPI = zoho.NewAPI(cfg.Zoho.CRMURL, httpClient, zoho.NewLimiter(cfg.Zoho.RatePerSec, cfg.Zoho.Burst))
		app.Drive = workdrive.New(driveAPI)
	} else {
		log.Printf("bootstrap: Zoho credentials missing; filing runner and folder routes disabled")
	}
	app.Roots = buildRoots(app, crmAPI)

	docSvc := &documents.Service{
		Store:    app.Store,
		Repo:     app.DocumentsRepo,
		LogRepo:  app.LogsRepo,
		MaxBytes: cfg.MaxDocumentBytes,
	}
	// Leave interface fields untyped-nil when the queue is absent.
	var notifier pipeline.Notifier
	if app.Publisher != nil {
		docSvc.Notifier = app.Publisher
		notifier = app.Publisher
	}

	var folderHandler *folders.Handler
	if app.Drive != nil {
		resolver := folders.NewResolver(app.Drive, folders.Options{
			Threshold: cfg.FolderMatchThreshold,
			Executor:  app.Executor,
			Policy:    resilience.Policy{Timeout: cfg.Filing.FolderTimeout, Retry: true},
		})
		folderHandler = folders.NewHandler(app.Roots, resolver, app.Drive)

		runner, err := buildRunner(app, resolver)
		if err != nil {
			return err
		}
		app.Runner = runner
	}

	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:         cfg.JWTSecret,
		PublicKeyPEM:   cfg.JWTPublicKeyPEM,
		Issuer:         cfg.JWTIssuer,
		Audience:       cfg.JWTAudience,
		AllowDevSecret: config.IsDevLike(cfg.Env),
	})
	if err != nil {
		return err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Verifier:        verifier,
		Health:          app.Health,
		DocumentHandler: documents.NewHandler(docSvc),
		UploadHandler:   uploads.NewHandler(app.Presigner, cfg.MaxDocumentBytes),
		FolderHandler:   folderHandler,
		FilingHandler:   pipeline.NewHandler(notifier),
	})
	if app.Router == nil {
		return errors.New("failed to initialize router")
	}
	return nil
}

func buildRunner(app *App, resolver *folders.Resolver) (*pipeline.Runner, error) {
	cfg := app.Config

	completer, err := buildCompleter(cfg)
	if err != nil {
		return nil, err
	}
	taxonomy, err := buildTaxonomy(cfg)
	if err != nil {
		return nil, err
	}
	classifier := classify.New(completer, taxonomy, classify.Options{
		MaxTokens:    cfg.ClassifyMaxTokens,
		Temperature:  float32(cfg.ClassifyTemperature),
		ExcerptRunes: cfg.ClassifyExcerpt,
	})

	var lock pipeline.Locker
	if app.Redis != nil {
		lock = pipeline.NewRedisLock(app.Redis, "", cfg.Filing.LockTTL)
	}

	return pipeline.NewRunner(pipeline.Deps{
		Documents:  app.DocumentsRepo,
		Logs:       app.LogsRepo,
		Fetcher:    app.Store,
		Classifier: classifier,
		Roots:      app.Roots,
		Resolver:   resolver,
		Filer:      filer.New(app.Drive, app.Executor, resilience.Policy{Timeout: cfg.Filing.UploadTimeout}),
		Executor:   app.Executor,
		Lock:       lock,
	}, pipeline.Options{
		BatchSize: cfg.Filing.BatchSize,
		ClaimTTL:  cfg.Filing.ClaimTTL,
		Timeouts: pipeline.Timeouts{
			Fetch:    cfg.Filing.FetchTimeout,
			Classify: cfg.Filing.ClassifyTimeout,
			CRM:      cfg.Filing.CRMTimeout,
		},
	})
}
