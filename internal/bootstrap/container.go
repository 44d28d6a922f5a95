package bootstrap

import (
	"log"

	"campus-rag-be/internal/config"
	"campus-rag-be/internal/controller"
	"campus-rag-be/internal/pkg/logger"
	"campus-rag-be/internal/pkg/serverutils"
	"campus-rag-be/internal/repository/implementation"
	"campus-rag-be/internal/service"
	embeddingdashscope "campus-rag-be/pkg/embedding/dashscope"
	"campus-rag-be/pkg/events"
	"campus-rag-be/pkg/history"
	llmdashscope "campus-rag-be/pkg/llm/dashscope"
	"campus-rag-be/pkg/rag/pipeline"
	"campus-rag-be/pkg/rag/retrieval"
	"campus-rag-be/pkg/rag/rewrite"
	"campus-rag-be/pkg/rag/route"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	AuthController    controller.IAuthController
	SessionController controller.ISessionController
	ChatController    controller.IChatController

	GuestRateLimiter *serverutils.GuestRateLimiter

	// Background services (exposed for main.go to run)
	UsageService service.IUsageService

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)

	// Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermillLogger)
	publisher := events.NewPublisher(pubSub, sysLogger)

	// Repositories
	userRepo := implementation.NewUserRepository(db)
	vectorIndex := implementation.NewVectorIndexRepository(db)

	// Model providers
	embedder := embeddingdashscope.NewProvider(cfg.Ai.BaseURL, cfg.Ai.APIKey, cfg.Ai.EmbeddingModel)
	llmProvider := llmdashscope.NewProvider(cfg.Ai.BaseURL, cfg.Ai.APIKey, cfg.Ai.GenerateModel)

	// RAG pipeline
	keywordExtractor, err := retrieval.NewKeywordExtractor()
	if err != nil {
		log.Panicf("Unable to load segmentation dictionary: %v", err)
	}
	engine := retrieval.NewEngine(vectorIndex, embedder, keywordExtractor, cfg.Rag.FusionVectorWeight, sysLogger)
	strategies := route.NewRegistry(cfg.Rag)
	rewriter := rewrite.NewRewriter(llmProvider, cfg.Ai.RewriteModel, sysLogger)
	historyStore := history.NewRedisStore(rdb, cfg.Rag.SessionTTLSeconds, cfg.Rag.HistoryCapTurns, sysLogger)

	orchestrator := pipeline.NewOrchestrator(
		historyStore,
		rewriter,
		engine,
		strategies,
		llmProvider,
		publisher,
		sysLogger,
		pipeline.Config{
			WindowTurns:   cfg.Rag.HistoryWindowTurns,
			FAQCollection: cfg.Rag.CollectionFAQ,
			FAQThreshold:  cfg.Rag.FAQScoreThreshold,
			GenerateModel: cfg.Ai.GenerateModel,
		},
	)

	// Services
	authService := service.NewAuthService(userRepo, rdb, cfg.Auth, sysLogger)
	sessionService := service.NewSessionService(historyStore)
	chatService := service.NewChatService(orchestrator, historyStore, sysLogger)
	usageService := service.NewUsageService(pubSub, userRepo, sysLogger)

	return &Container{
		AuthController:    controller.NewAuthController(authService),
		SessionController: controller.NewSessionController(sessionService),
		ChatController:    controller.NewChatController(chatService),
		GuestRateLimiter:  serverutils.NewGuestRateLimiter(cfg.Auth.GuestChatPerMinute),
		UsageService:      usageService,
		Logger:            sysLogger,
	}
}
