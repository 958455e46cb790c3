package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/GlebRadaev/payflow/internal/config"
	"github.com/GlebRadaev/payflow/internal/handlers"
	"github.com/GlebRadaev/payflow/internal/loyalty"
	"github.com/GlebRadaev/payflow/internal/notification"
	"github.com/GlebRadaev/payflow/internal/pg"
	"github.com/GlebRadaev/payflow/internal/repo"
	"github.com/GlebRadaev/payflow/internal/service"
	paymentmigrations "github.com/GlebRadaev/payflow/migrations/payments"
	usermigrations "github.com/GlebRadaev/payflow/migrations/users"
	"github.com/GlebRadaev/payflow/pkg/clients"
	"github.com/GlebRadaev/payflow/pkg/logger"
)

type ApplicationI interface {
	Start(ctx context.Context) error
	Wait(ctx context.Context, cancel context.CancelFunc) error
}

type Application struct {
	cfg  *config.Config
	api  *handlers.Handlers
	srv  *service.Services
	repo *repo.Repositories

	errCh chan error
	wg    sync.WaitGroup
	ready bool
}

func New() *Application {
	return &Application{
		errCh: make(chan error),
	}
}

func (a *Application) Start(ctx context.Context) error {
	cfg := config.New()

	err := logger.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("can't init logger: %w", err)
	}

	paymentPool, err := getPgxpool(ctx, cfg.PaymentDatabase)
	if err != nil {
		zap.L().Error("build payment pgx pool failed: ", zap.Error(err))
		return fmt.Errorf("can't build payment pgx pool: %w", err)
	}
	userPool, err := getPgxpool(ctx, cfg.UserDatabase)
	if err != nil {
		zap.L().Error("build user pgx pool failed: ", zap.Error(err))
		return fmt.Errorf("can't build user pgx pool: %w", err)
	}

	if err := pg.RunMigrations(paymentPool, paymentmigrations.Migrations); err != nil {
		zap.L().Error("payment migrations failed: ", zap.Error(err))
		return fmt.Errorf("can't run payment migrations: %w", err)
	}
	if err := pg.RunMigrations(userPool, usermigrations.Migrations); err != nil {
		zap.L().Error("user migrations failed: ", zap.Error(err))
		return fmt.Errorf("can't run user migrations: %w", err)
	}

	paymentDB := pg.New(paymentPool)
	userDB := pg.New(userPool)
	paymentTx := pg.NewTXManager(paymentDB)
	userTx := pg.NewTXManager(userDB)

	httpClient := clients.NewHTTPClient()

	a.cfg = cfg
	a.repo = repo.New(paymentDB, paymentTx, userDB)
	a.srv = service.New(a.repo, userTx, loyalty.New(cfg, httpClient), notification.New(cfg, httpClient))
	a.api = handlers.New(a.srv)

	if err = a.startHTTPServer(ctx); err != nil {
		return fmt.Errorf("can't start http server: %w", err)
	}

	a.srv.FinalizerService.Start(ctx)

	a.ready = true
	zap.L().Info("all systems started successfully")
	return nil
}

func getPgxpool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfgpool, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	dbpool, err := pgxpool.NewWithConfig(ctx, cfgpool)
	if err != nil {
		return nil, err
	}
	if err = dbpool.Ping(ctx); err != nil {
		return nil, err
	}
	return dbpool, nil
}

func (a *Application) startHTTPServer(ctx context.Context) error {
	router := chi.NewRouter()
	a.api.InitRoutes(router)
	server := http.Server{
		Addr:    a.cfg.Address,
		Handler: router,
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()

		sCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(sCtx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		zap.L().Info("starting http server on port", zap.String("port", a.cfg.Address))
		if err := server.ListenAndServe(); err != nil {
			a.errCh <- fmt.Errorf("http server exited with error: %w", err)
		}
	}()

	return nil
}

func (a *Application) Wait(ctx context.Context, cancel context.CancelFunc) error {
	var appErr error

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()

		for err := range a.errCh {
			cancel()
			zap.L().Error(err.Error())
			appErr = err
		}
	}()

	<-ctx.Done()
	a.wg.Wait()
	close(a.errCh)
	wg.Wait()

	return appErr
}
