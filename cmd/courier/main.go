package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/goevery/courier/internal/auth"
	"github.com/goevery/courier/internal/bridge"
	"github.com/goevery/courier/internal/handler"
	"github.com/goevery/courier/internal/notification"
	"github.com/goevery/courier/internal/persistence"
	"github.com/goevery/courier/internal/persistence/mongodb"
	"github.com/goevery/courier/internal/realtime"
	"github.com/goevery/courier/internal/server"
	"github.com/goevery/courier/internal/session"
	"github.com/goevery/courier/internal/toast"
	"github.com/goevery/courier/internal/transport"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	logger          *zap.Logger
	settings        Settings
	registry        *realtime.Registry
	store           *notification.Store
	presenter       *toast.Presenter
	bridge          *bridge.Bridge
	mongoClient     *mongo.Client
	archiveEngine   persistence.Engine
	websocketServer *server.WebSocketServer
	restServer      *server.RESTServer
}

func NewApp(logger *zap.Logger, settings Settings) (*App, error) {
	clock := clockwork.NewRealClock()

	sessionStore := session.NewFileStore(logger, clock, settings.SessionTokenFile)
	dialer, err := transport.NewDialer(logger, clock, settings.SocketURL, transport.DefaultPolicy)
	if err != nil {
		return nil, err
	}

	registry := realtime.NewRegistry(logger, dialer, sessionStore)
	store := notification.NewStore(logger, clock)
	presenter := toast.NewPresenter(logger, clock, store)
	eventBridge := bridge.New(logger, registry, store)

	var mongoClient *mongo.Client
	var archiveEngine persistence.Engine
	if settings.MongoDBURI != "" {
		mongoClient, err = mongo.Connect(options.Client().ApplyURI(settings.MongoDBURI))
		if err != nil {
			return nil, fmt.Errorf("failed to create mongodb client: %w", err)
		}

		archiveEngine = mongodb.NewPersistenceEngine(mongoClient, settings.MongoDBDatabase, clock)
	}

	originChecker := server.NewOriginChecker(settings.AllowedOriginList())
	websocketUpgrader := &websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin:       originChecker.Check,
		EnableCompression: true,
	}

	authenticator := auth.NewAuthenticator(settings.JWTSecret, settings.APIKeyList())

	heartbeatHandler := handler.NewHeartbeatHandler(clock)
	notificationHandler := handler.NewNotificationHandler(store, archiveEngine)
	toastHandler := handler.NewToastHandler(presenter)
	connectionHandler := handler.NewConnectionHandler(registry)

	router := server.NewRouter(
		logger,
		heartbeatHandler,
		notificationHandler,
		toastHandler,
	)

	websocketServer := server.NewWebSocketServer(
		logger,
		websocketUpgrader,
		authenticator,
		store,
		router,
	)
	restServer := server.NewRESTServer(
		logger,
		authenticator,
		notificationHandler,
		toastHandler,
		connectionHandler,
	)

	return &App{
		logger,
		settings,
		registry,
		store,
		presenter,
		eventBridge,
		mongoClient,
		archiveEngine,
		websocketServer,
		restServer,
	}, nil
}

func (a *App) setup(ctx context.Context) error {
	notifyCtx, notifyCtxCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer notifyCtxCancel()

	namespaces, err := a.settings.StartupNamespaces()
	if err != nil {
		return err
	}

	if a.archiveEngine != nil {
		setupCtx, setupCtxCancel := context.WithTimeout(notifyCtx, 10*time.Second)
		err := a.archiveEngine.Setup(setupCtx)
		setupCtxCancel()
		if err != nil {
			return fmt.Errorf("failed to setup notification archive: %w", err)
		}

		archiver := persistence.NewArchiver(a.logger, a.archiveEngine)
		go archiver.Run(notifyCtx, a.store.Watch(notifyCtx))

		a.logger.Info("notification archive enabled",
			zap.String("database", a.settings.MongoDBDatabase))
	}

	go a.presenter.Run(notifyCtx, a.store.Watch(notifyCtx))

	a.bridge.Start()
	for _, namespace := range namespaces {
		a.registry.Connect(namespace)
	}

	a.startHttpServer(notifyCtx)

	a.bridge.Stop()
	a.registry.Close()
	a.presenter.Stop()

	if a.mongoClient != nil {
		disconnectCtx, disconnectCtxCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer disconnectCtxCancel()

		if err := a.mongoClient.Disconnect(disconnectCtx); err != nil {
			a.logger.Warn("failed to disconnect mongodb client", zap.Error(err))
		}
	}

	return nil
}

func (a *App) startHttpServer(ctx context.Context) {
	address := fmt.Sprintf("0.0.0.0:%d", a.settings.Port)

	router := mux.NewRouter().
		PathPrefix(a.settings.BasePath).
		Subrouter()

	a.websocketServer.Register(router)
	a.restServer.Register(router)

	httpServer := &http.Server{
		Addr:    address,
		Handler: server.WithCORS(router, a.settings.AllowedOriginList()),
	}

	a.logger.Info("starting http server",
		zap.String("address", address))

	go func() {
		err := httpServer.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to start http server",
				zap.Error(err))
		}
	}()

	<-ctx.Done()

	a.logger.Info("stopping http server")

	shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCtxCancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http server shutdown failed",
			zap.Error(err))
	}

	a.logger.Info("http server stopped")
}

func main() {
	ctx := context.Background()

	bootstrapLogger, _ := zap.NewDevelopment()

	if err := godotenv.Load(); err != nil {
		bootstrapLogger.Debug("no .env file loaded", zap.Error(err))
	}

	var settings Settings
	_, err := env.UnmarshalFromEnviron(&settings)
	if err != nil {
		bootstrapLogger.Fatal("failed to parse settings from environment", zap.Error(err))
	}

	logger, err := buildZapLogger(settings.LogEncoding, settings.LogLevel)
	if err != nil {
		bootstrapLogger.Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	app, err := NewApp(logger, settings)
	if err != nil {
		logger.Fatal("failed to create app", zap.Error(err))
	}

	err = app.setup(ctx)
	if err != nil {
		logger.Fatal("failed to setup", zap.Error(err))
	}
}
