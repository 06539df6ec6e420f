package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"taskManager/internal/auth"
	"taskManager/internal/config"
	"taskManager/internal/handlers"
	"taskManager/internal/logger"
	"taskManager/internal/repository/inmemory"
	"taskManager/internal/repository/postgres"
	"taskManager/internal/repository/sqlite"
	"taskManager/internal/service"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config    *config.Config
	server    *http.Server
	handler   http.Handler
	shutdowns []func() // функции для graceful shutdown
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})

	storage, err := openStorage(ctx, a.config)
	if err != nil {
		return fmt.Errorf("инициализация хранилища: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Закрытие хранилища...")
		storage.Close()
	})

	hasher := auth.NewPasswordHasher(a.config.Auth.BcryptCost)
	tokens := auth.NewTokenManager(auth.TokenConfig{
		Secret: a.config.Auth.Secret,
		TTL:    a.config.Auth.TokenTTL,
		Issuer: a.config.Auth.Issuer,
	})
	userService := service.NewUserService(storage, hasher, tokens, a.config.Auth.OpenRegistration)
	taskService := service.NewTaskService(storage, a.config.Tasks.StrictDueDate)

	if admin := a.config.Admin; admin.Username != "" {
		if err := userService.EnsureAdmin(ctx, service.RegisterInput{
			Username: admin.Username,
			Email:    admin.Email,
			Password: admin.Password,
		}); err != nil {
			return fmt.Errorf("создание администратора: %w", err)
		}
	}

	router := handlers.NewRouter(
		handlers.NewTaskHandler(taskService),
		handlers.NewUserHandler(userService),
		userService,
		handlers.RouterConfig{
			CORSOrigins:  a.config.Server.CORSOrigins,
			RateLimitRPM: a.config.Server.RateLimitRPM,
		},
	)
	a.handler = otelhttp.NewHandler(router, "task-manager")

	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      a.handler,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}

	logger.Info("Приложение инициализировано",
		zap.String("repository", a.config.Repository.Type),
		zap.String("addr", a.server.Addr),
		zap.Bool("strict_due_date", a.config.Tasks.StrictDueDate),
		zap.Bool("open_registration", a.config.Auth.OpenRegistration))
	return nil
}

func openStorage(ctx context.Context, cfg *config.Config) (service.Storage, error) {
	switch cfg.Repository.Type {
	case config.RepositoryPostgres:
		if err := postgres.Migrate(cfg.Database.URL); err != nil {
			return nil, err
		}
		storage, err := postgres.New(ctx, cfg.Database.URL, postgres.PoolConfig{
			MaxConns:        int32(cfg.Database.MaxConnections),
			MinConns:        int32(cfg.Database.MinConnections),
			MaxConnIdleTime: cfg.Database.IdleTimeout,
		})
		if err != nil {
			return nil, err
		}
		return storage, nil
	case config.RepositorySQLite:
		storage, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		return storage, nil
	case config.RepositoryInMemory:
		return inmemory.NewStorage(), nil
	default:
		return nil, fmt.Errorf("неизвестный тип репозитория %q", cfg.Repository.Type)
	}
}

// Handler: корневой обработчик вместе с трассировкой; доступен после Init.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Run обслуживает запросы, пока не отменён ctx, затем завершает сервер
// за server.shutdown_timeout и освобождает ресурсы.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		return errors.New("приложение не инициализировано")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http сервер: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Остановка сервера...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("остановка сервера: %w", err)
		}
		return nil
	})

	err := g.Wait()
	a.Shutdown()
	return err
}

// Shutdown вызывает функции завершения в обратном порядке.
func (a *App) Shutdown() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}
