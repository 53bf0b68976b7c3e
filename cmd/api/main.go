package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"

	"github.com/claimsight/assess-gateway/internal/application/assess"
	"github.com/claimsight/assess-gateway/internal/batch"
	"github.com/claimsight/assess-gateway/internal/cache"
	"github.com/claimsight/assess-gateway/internal/config"
	domain "github.com/claimsight/assess-gateway/internal/domain/assessment"
	aiclient "github.com/claimsight/assess-gateway/internal/infra/ai/openai"
	mysqlp "github.com/claimsight/assess-gateway/internal/infra/db/mysql"
	postgresp "github.com/claimsight/assess-gateway/internal/infra/db/postgres"
	"github.com/claimsight/assess-gateway/internal/infra/httpserver"
	"github.com/claimsight/assess-gateway/internal/infra/knowledge"
	"github.com/claimsight/assess-gateway/internal/middleware"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatalf("config load error: %v", err)
		}
		log.Printf("no config file at %s, using defaults", path)
		cfg = config.Default()
	}

	ctx := context.Background()

	// AI provider
	if cfg.AI.APIKey == "" {
		log.Println("warning: no OpenAI API key configured, AI endpoints will return 503")
	}
	var ai *aiclient.Client
	if cfg.AI.APIKey != "" {
		ai = aiclient.NewClient(cfg.AI.APIKey, cfg.AI.VisionModel, cfg.AI.GenerationModel, cfg.AI.EmbeddingModel)
	}

	// cache backend
	var store cache.Store = cache.Disabled{}
	var redisClient *redis.Client
	if cfg.Cache.Enabled {
		switch cfg.Cache.Backend {
		case "redis":
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Cache.Redis.Addr,
				Password: cfg.Cache.Redis.Password,
				DB:       cfg.Cache.Redis.DB,
			})
			store = cache.NewRedis(redisClient, cfg.CacheTTL())
		default:
			store = cache.NewMemory(cfg.CacheTTL(), nil)
		}
	}

	// assessment history
	var recorder domain.Recorder
	checkers := map[string]middleware.HealthChecker{}
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			log.Fatalf("mysql connect error: %v", err)
		}
		defer db.Close()
		recorder = mysqlp.NewAssessmentRepository(db)
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	case "postgres":
		db, err := postgresp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			log.Fatalf("postgres connect error: %v", err)
		}
		defer db.Close()
		recorder = postgresp.NewAssessmentRepository(db)
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	}
	if redisClient != nil {
		checkers["redis"] = &middleware.RedisHealthChecker{Client: redisClient}
	}

	// Qdrant knowledge base; skipped entirely when no host is configured
	var searcher domain.KnowledgeSearcher
	var ingestor *knowledge.Ingestor
	if cfg.Knowledge.Qdrant.Host != "" && ai != nil {
		qc, err := qdrant.NewClient(&qdrant.Config{
			Host: cfg.Knowledge.Qdrant.Host,
			Port: cfg.Knowledge.Qdrant.Port,
		})
		if err != nil {
			log.Fatalf("qdrant connect error: %v", err)
		}
		kstore := knowledge.NewStore(qc, cfg.Knowledge.Qdrant.Collection, ai,
			cfg.Knowledge.Qdrant.ScoreThreshold, cfg.Knowledge.Qdrant.Limit)
		if err := kstore.InitCollection(ctx, cfg.Knowledge.Qdrant.VectorSize); err != nil {
			log.Fatalf("qdrant collection init error: %v", err)
		}
		searcher = kstore
		checkers["qdrant"] = middleware.CheckFunc(func(ctx context.Context) error {
			_, err := qc.GetCollectionInfo(ctx, cfg.Knowledge.Qdrant.Collection)
			return err
		})

		if cfg.Knowledge.Minio.Endpoint != "" {
			corpus, err := knowledge.NewCorpus(ctx,
				cfg.Knowledge.Minio.Endpoint,
				cfg.Knowledge.Minio.Region,
				cfg.Knowledge.Minio.BucketName,
				cfg.Knowledge.Minio.AccessKey,
				cfg.Knowledge.Minio.SecretKey,
				cfg.Knowledge.Minio.UseSSL,
			)
			if err != nil {
				log.Fatalf("minio init error: %v", err)
			}
			ingestor = knowledge.NewIngestor(corpus, kstore)
		}
	}

	batcher := batch.New()
	limits := assess.Limits{
		MaxEncodedBytes: cfg.Limits.MaxEncodedBytes,
		MaxDecodedBytes: cfg.Limits.MaxDecodedBytes,
		MaxWidth:        cfg.Limits.MaxWidth,
		MaxHeight:       cfg.Limits.MaxHeight,
		AllowedTypes:    []string{"image/jpeg", "image/png", "image/webp"},
		MaxQueryLen:     cfg.Limits.MaxQueryLen,
	}
	timeouts := assess.Timeouts{
		Vision:     cfg.VisionTimeout(),
		Search:     cfg.SearchTimeout(),
		Generation: cfg.GenerationTimeout(),
	}

	pipeline := &assess.Pipeline{
		Cache:             store,
		Batcher:           batcher,
		History:           recorder,
		Clock:             assess.SystemClock{},
		Limits:            limits,
		Timeouts:          timeouts,
		DefaultConfidence: 0.8,
	}
	if ai != nil {
		pipeline.Vision = ai
		pipeline.Generator = ai
	}
	pipeline.Knowledge = searcher

	conversation := &assess.Conversation{
		Knowledge: searcher,
		Cache:     store,
		Batcher:   batcher,
		Timeouts:  timeouts,
		Confidence: assess.ConfidenceWeights{
			Base:        cfg.Conversation.BaseConfidence,
			SourceBonus: cfg.Conversation.SourceBonus,
			Max:         cfg.Conversation.MaxConfidence,
		},
	}
	if ai != nil {
		conversation.Generator = ai
	}

	api := httpserver.NewRouter(httpserver.Options{
		Pipeline:     pipeline,
		Conversation: conversation,
		Recorder:     recorder,
		Ingestor:     ingestor,
		Checkers:     checkers,
		MaxBodyBytes: int64(cfg.Limits.MaxEncodedBytes) + (1 << 20),
		MaxQueryLen:  cfg.Limits.MaxQueryLen,
		ConfigEcho: map[string]any{
			"cache_backend":     cfg.Cache.Backend,
			"cache_ttl_seconds": cfg.Cache.TTLSeconds,
			"max_encoded_bytes": cfg.Limits.MaxEncodedBytes,
			"max_decoded_bytes": cfg.Limits.MaxDecodedBytes,
			"vision_model":      cfg.AI.VisionModel,
			"generation_model":  cfg.AI.GenerationModel,
		},
	})

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)
	if cfg.RateLimit.Enabled {
		mux.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate))
	}
	if cfg.Auth.Enabled {
		mux.Use(middleware.APIKeyAuth(cfg.Auth.APIKeys))
	}
	mux.Mount("/", api)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
