package bootstrap

import (
	"context"
	"log"

	"resonance-field-be/internal/config"
	"resonance-field-be/internal/controller"
	"resonance-field-be/internal/handler"
	"resonance-field-be/internal/pkg/logger"
	"resonance-field-be/internal/repository/memory"
	"resonance-field-be/internal/service"
	"resonance-field-be/internal/websocket"
	pktNats "resonance-field-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	FieldController controller.IFieldController

	// Background services (exposed for main.go to run)
	PresenceFeed   service.IPresenceFeed
	SessionService service.ISessionService

	// WebSockets
	WebSocketHub *websocket.Hub

	Logger logger.ILogger
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer: 256,
			// Session lifecycle frames must reach clients in publish
			// order (added before changed/removed for the same id), so
			// a publish waits until the feed has handed off the frame.
			BlockPublishUntilSubscriberAck: true,
		},
		watermillLogger,
	)

	// 3. Infrastructure
	// NATS mirror for external consumers, optional
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis for cross-instance fanout
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket hub
	wsLogger := logger.NewIsolatedLogger("logs/presence.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 4. Repositories (all state lives in memory; it is ephemeral by design)
	sessionRepo := memory.NewSessionRepository()
	groupRepo := memory.NewGroupRepository()

	// 5. Services
	registry := service.NewDisconnectRegistry()
	feed := service.NewPresenceFeed(pubSub, pubSub, wsHub, natsPub, wsLogger)
	capacityService := service.NewCapacityService(sessionRepo, cfg.Field.MaxSessions, cfg.Field.WarningThreshold, sysLogger)
	resonanceService := service.NewResonanceService(sessionRepo, feed, sysLogger)
	groupService := service.NewGroupService(sessionRepo, groupRepo, feed, registry, sysLogger)
	sessionService := service.NewSessionService(sessionRepo, feed, resonanceService, capacityService, registry, sysLogger, cfg.Field)

	// Handler + controller
	wsHandler := handler.NewFieldWsHandler(sessionService, groupService, resonanceService, capacityService, wsHub, cfg.Field.HeartbeatInterval, wsLogger)
	fieldController := controller.NewFieldController(sessionService, groupService, resonanceService, capacityService, wsHandler)

	return &Container{
		FieldController: fieldController,
		PresenceFeed:    feed,
		SessionService:  sessionService,
		WebSocketHub:    wsHub,
		Logger:          sysLogger,
	}
}
