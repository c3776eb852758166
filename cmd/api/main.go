package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"learnstore/internal/analytics"
	"learnstore/internal/checkout"
	"learnstore/internal/client"
	"learnstore/internal/client/creditprovider"
	"learnstore/internal/client/discovery"
	"learnstore/internal/client/enrollment"
	"learnstore/internal/config"
	"learnstore/internal/db"
	"learnstore/internal/httpserver"
	"learnstore/internal/notify"
	"learnstore/internal/offer"
	"learnstore/internal/payment"
	basketrepo "learnstore/internal/repository/basket"
	ledgerrepo "learnstore/internal/repository/ledger"
	offerrepo "learnstore/internal/repository/offer"
	orderrepo "learnstore/internal/repository/order"
	paymentresponserepo "learnstore/internal/repository/paymentresponse"
	productrepo "learnstore/internal/repository/product"
	siterepo "learnstore/internal/repository/site"
	basketsvc "learnstore/internal/service/basket"
	"learnstore/internal/tasks"
	"learnstore/internal/transaction"
)

func main() {
	cfg := config.FromEnv()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbpool, err := db.Connect(ctx, cfg.DBConnString, db.Options{SlowQuery: cfg.SlowQueryThreshold, Logger: logger})
	if err != nil {
		logger.Fatalf("connect to db: %v", err)
	}
	defer dbpool.Close()

	paymentCfg, err := payment.LoadConfig(cfg.PaymentConfigPath)
	if err != nil {
		logger.Fatalf("load payment config: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	siteRepo := siterepo.NewPostgres(dbpool, logger)
	productRepo := productrepo.NewPostgres(dbpool, logger)
	basketRepo := basketrepo.NewPostgres(dbpool, logger)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	offerRepo := offerrepo.NewPostgres(dbpool, logger)
	ledgerRepo := ledgerrepo.NewPostgres(dbpool, logger)
	auditRepo := paymentresponserepo.NewPostgres(dbpool, logger)

	clientOpts := client.Options{Timeout: cfg.ExternalTimeout}
	programs := discovery.New(client.New("discovery", clientOpts))
	enrollments := enrollment.New(client.New("enrollment", clientOpts))
	providers := creditprovider.NewCached(
		creditprovider.New(client.New("credit", clientOpts)),
		rdb, cfg.CreditProviderTTL, logger,
	)

	tasksWriter := tasks.NewKafkaWriter(cfg.KafkaBrokers, cfg.TasksTopic)
	dispatcher := tasks.NewDispatcher(tasksWriter, logger)
	defer dispatcher.Close()

	analyticsWriter := tasks.NewKafkaWriter(cfg.KafkaBrokers, cfg.AnalyticsTopic)
	defer analyticsWriter.Close()
	sink := analytics.NewSink(analyticsWriter, logger)

	scope := transaction.NewPostgresScope(dbpool)
	applicator := offer.NewApplicator(offerRepo, programs, enrollments, logger)
	registry := payment.NewRegistry(paymentCfg, payment.Deps{
		Recorder:  auditRepo,
		Ledger:    ledgerRepo,
		Transport: payment.NewHTTPTransport(cfg.ExternalTimeout),
		Scope:     scope,
		Logger:    logger,
	})

	notifier := notify.New(logger,
		notify.NewAnalyticsHandler(sink, logger),
		notify.NewCreditReceiptHandler(cfg.Features.EnableNotifications, providers, dispatcher, logger),
		notify.NewEnrollmentSyncHandler(cfg.Features.SailthruEnable, dispatcher),
	)

	pipeline := checkout.New(checkout.Deps{
		Baskets:    basketRepo,
		Orders:     orderRepo,
		Offers:     applicator,
		Processors: registry,
		Notifier:   notifier,
		Scope:      scope,
		Logger:     logger,
	})

	basketService := basketsvc.New(basketsvc.Deps{
		Repo:        basketRepo,
		Products:    productRepo,
		Orders:      orderRepo,
		Offers:      applicator,
		Enrollments: dispatcher,
		Features:    basketsvc.Features{SailthruEnable: cfg.Features.SailthruEnable},
		Logger:      logger,
	})

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		SiteRepo:    siteRepo,
		BasketSvc:   basketService,
		Checkout:    pipeline,
		Audit:       auditRepo,
		Tracker:     sink,
		CORSOrigins: cfg.CORSAllowedOrigins,
	})
	if err != nil {
		logger.Fatalf("init server: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Printf("server stopped with error: %v", err)
		return
	}
	logger.Printf("server stopped")
}
