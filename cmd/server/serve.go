package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/spf13/cobra"
	"github.com/vedran77/reviewhub/internal/config"
	"github.com/vedran77/reviewhub/internal/database"
	"github.com/vedran77/reviewhub/internal/realtime"
	"github.com/vedran77/reviewhub/internal/repository"
	"github.com/vedran77/reviewhub/internal/repository/memory"
	"github.com/vedran77/reviewhub/internal/repository/mongodb"
	postgresrepo "github.com/vedran77/reviewhub/internal/repository/postgres"
	redisrepo "github.com/vedran77/reviewhub/internal/repository/redis"
	"github.com/vedran77/reviewhub/internal/service"
	"github.com/vedran77/reviewhub/internal/storage"
	"github.com/vedran77/reviewhub/internal/transport/http/handlers"
	"github.com/vedran77/reviewhub/internal/transport/http/middleware"
	"github.com/vedran77/reviewhub/internal/transport/ws"
	"github.com/vedran77/reviewhub/internal/unread"
	"github.com/vedran77/reviewhub/pkg/logger"
	"github.com/vedran77/reviewhub/pkg/validator"
	"golang.org/x/sync/errgroup"
)

const (
	uploadURLPrefix = "/uploads/"
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket hub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

type stores struct {
	users    repository.UserRepository
	messages repository.MessageRepository
	typing   repository.TypingRepository
	products repository.ProductRepository
	closers  []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the configured backends. The memory driver keeps
// everything in process and needs no external service.
func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	s := &stores{}
	if cfg.StoreDriver == "memory" {
		s.users = memory.NewUserRepo()
		s.messages = memory.NewMessageRepo()
		s.typing = memory.NewTypingRepo()
		s.products = memory.NewProductRepo()
		logger.Warn().Msg("using in-memory stores, data is lost on restart")
		return s, nil
	}

	pool, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, pool.Close)
	if err := database.Migrate(ctx, pool); err != nil {
		s.close()
		return nil, err
	}
	s.users = postgresrepo.NewUserRepo(pool)
	s.messages = postgresrepo.NewMessageRepo(pool)
	logger.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("connected to postgres")

	rdb, err := database.ConnectRedis(ctx, cfg)
	if err != nil {
		s.close()
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = rdb.Close() })
	// keys outlive the stale window so a late observer still sees the last write
	s.typing = redisrepo.NewTypingRepo(rdb, 2*cfg.TypingStaleAfter)
	logger.Info().Str("addr", cfg.RedisURL).Msg("connected to redis")

	mdb, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		s.close()
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = mdb.Client().Disconnect(context.Background()) })
	s.products = mongodb.NewProductRepo(mdb, cfg.MongoProductsCollection)
	logger.Info().Str("db", cfg.MongoDB).Msg("connected to mongo")

	return s, nil
}

// openStorage picks S3 when a bucket is configured and the local upload dir otherwise.
// The returned dir is empty when uploads are not served locally.
func openStorage(ctx context.Context, cfg *config.Config) (storage.Storage, string, string, error) {
	if cfg.S3Bucket != "" {
		s3, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicURL:       cfg.S3PublicURL,
		})
		if err != nil {
			return nil, "", "", err
		}
		host := ""
		if u, err := url.Parse(s3.PublicURL()); err == nil {
			host = u.Hostname()
		}
		return s3, "", host, nil
	}

	local, err := storage.NewLocalStorage(cfg.UploadDir, uploadURLPrefix)
	if err != nil {
		return nil, "", "", err
	}
	return local, local.Dir(), "", nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Component("server")

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	store, uploadDir, uploadHost, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}

	hosts := cfg.ImageHosts()
	if uploadHost != "" {
		hosts = append(hosts, uploadHost)
	}
	images := validator.NewImagePolicy(hosts, uploadURLPrefix)

	broker := realtime.NewBroker()

	// Services
	authService := service.NewAuthService(st.users, broker, cfg.JWTSecret)
	userService := service.NewUserService(st.users, broker)
	messageService := service.NewMessageService(st.messages, st.users, broker)
	typingService := service.NewTypingService(st.typing, cfg.TypingStaleAfter)
	conversationService := service.NewConversationService(st.users, st.messages, broker)
	productService := service.NewProductService(st.products)
	uploadService := service.NewUploadService(store, cfg.UploadMaxBytes)

	sendLimiter := middleware.NewUserRateLimiter(cfg.MessageRatePerMinute, cfg.MessageRateBurst)

	// WebSocket
	hub := ws.NewHub(&ws.Deps{
		Messages:       messageService,
		Typing:         typingService,
		Conversations:  conversationService,
		Broker:         broker,
		TypingDebounce: cfg.TypingDebounce,
		Unread: unread.Config{
			PollInterval: cfg.UnreadPollInterval,
			PollJitter:   cfg.UnreadPollJitter,
		},
		SendLimiter: sendLimiter,
	})
	stopNotifier := ws.NewHubNotifier(hub).Start(broker)
	defer stopNotifier()

	router := handlers.NewRouter(handlers.Routes{
		Auth:        handlers.NewAuthHandler(authService, images),
		Users:       handlers.NewUserHandler(userService, images),
		Messages:    handlers.NewMessageHandler(messageService, conversationService, typingService),
		Products:    handlers.NewProductHandler(productService, images),
		Uploads:     handlers.NewUploadHandler(uploadService),
		WS:          ws.ServeWS(hub, cfg.JWTSecret, cfg.Origins()),
		UploadDir:   uploadDir,
		JWTSecret:   cfg.JWTSecret,
		Origins:     cfg.Origins(),
		SendLimiter: sendLimiter,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		sendLimiter.RunSweeper(sweepInterval, gctx.Done())
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Str("version", version).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
