package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	apihttp "wms-core/internal/api/http"
	"wms-core/internal/audit"
	"wms-core/internal/auth"
	"wms-core/internal/broker"
	commandsapp "wms-core/internal/commands/application"
	commandsmqtt "wms-core/internal/commands/interfaces/mqtt"
	commandsstream "wms-core/internal/commands/interfaces/stream"
	"wms-core/internal/config"
	"wms-core/internal/eventing"
	eventingrepo "wms-core/internal/eventing/infrastructure/postgres"
	locationapp "wms-core/internal/location/application"
	locationevents "wms-core/internal/location/application/events"
	locationrepo "wms-core/internal/location/infrastructure/postgres"
	"wms-core/internal/logging"
	"wms-core/internal/observability/metrics"
	"wms-core/internal/platform/txn"
	replicaapp "wms-core/internal/replica/application"
	replicaevents "wms-core/internal/replica/application/events"
	replicarepo "wms-core/internal/replica/infrastructure/postgres"
	"wms-core/internal/replica/notify"
	"wms-core/internal/reporting"
	tuapp "wms-core/internal/transportunit/application"
	tuevents "wms-core/internal/transportunit/application/events"
	turepo "wms-core/internal/transportunit/infrastructure/postgres"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
	logger.Info("service stopped")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if cfg.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	metrics.Init(db, logger)

	// Eventing: outbox written inside each unit of work, drained to the bus
	// after commit.
	registry := eventing.NewRegistry()
	registry.Register(locationevents.All()...)
	registry.Register(tuevents.All()...)
	registry.Register(replicaevents.All()...)

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	outboxDLQ := eventingrepo.NewDLQStore(db, eventingrepo.WithDLQSource("outbox"))
	commandDLQ := eventingrepo.NewDLQStore(db, eventingrepo.WithDLQSource("command"))

	publisher, err := eventing.NewPublisher(outboxStore, logger)
	if err != nil {
		return err
	}
	bus := eventing.NewInMemoryBus()
	dispatcher, err := eventing.NewDispatcher(bus, outboxStore, registry, outboxDLQ, eventing.WithDispatcherLogger(logger))
	if err != nil {
		return err
	}
	pump, err := eventing.NewPump(dispatcher, cfg.Outbox.Interval, cfg.Outbox.Batch, logger)
	if err != nil {
		return err
	}
	runner, err := txn.NewManager(db, publisher, txn.WithAfterCommit(pump.Kick), txn.WithLogger(logger))
	if err != nil {
		return err
	}

	// Broker: provision streams, forward committed events, dead-letter
	// rejected commands.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	if err := broker.Provision(ctx, redisClient, cfg.Broker, logger); err != nil {
		return fmt.Errorf("provision streams: %w", err)
	}
	eventsPublisher, err := broker.NewStreamPublisher(redisClient, cfg.Broker.Events,
		broker.WithMaxLen(cfg.Broker.MaxLen),
		broker.WithPublishRetry(cfg.PublishRetry),
		broker.WithPublisherLogger(logger),
	)
	if err != nil {
		return err
	}
	forwarder, err := broker.NewForwarder(eventsPublisher)
	if err != nil {
		return err
	}
	forwarder.Subscribe(bus)
	deadLetterStream, err := broker.NewStreamPublisher(redisClient, cfg.Broker.DeadLetter,
		broker.WithMaxLen(cfg.Broker.MaxLen),
		broker.WithPublishRetry(cfg.PublishRetry),
		broker.WithPublisherLogger(logger),
	)
	if err != nil {
		return err
	}
	deadLetter, err := broker.NewDeadLetterPublisher(deadLetterStream)
	if err != nil {
		return err
	}

	// Domain services.
	locations := locationrepo.NewLocationRepository(db)
	groups := locationrepo.NewGroupRepository(db)
	units := turepo.NewTransportUnitRepository(db)
	reservations := turepo.NewReservationRepository(db)
	replicas := replicarepo.NewRepository(db)

	locationSvc, err := locationapp.NewLocationStateService(locations, groups, runner, locationapp.WithLocationLogger(logger))
	if err != nil {
		return err
	}
	groupSvc, err := locationapp.NewGroupStateService(groups, runner, locationapp.WithGroupLogger(logger))
	if err != nil {
		return err
	}
	engine, err := tuapp.NewReservationEngine(units, reservations, runner, tuapp.WithEngineLogger(logger))
	if err != nil {
		return err
	}
	allocation, err := tuapp.NewAllocationService(units, engine, runner, tuapp.WithAllocationLogger(logger))
	if err != nil {
		return err
	}
	unitSvc, err := tuapp.NewTransportUnitService(units, reservations, locations, runner,
		tuapp.WithDeletionMode(cfg.DeletionMode),
		tuapp.WithUnitLogger(logger),
	)
	if err != nil {
		return err
	}
	replicaRegistry, err := replicaapp.NewRegistry(replicas, runner, replicaapp.WithRegistryLogger(logger))
	if err != nil {
		return err
	}

	notifier, err := notify.NewNotifier(replicas,
		notify.WithTimeout(cfg.ReplicaCallbackTimeout),
		notify.WithRetryPolicy(cfg.CallbackRetry),
		notify.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	notifier.Subscribe(bus, processedStore)

	// Commands: inbound stream and optional PLC gateway.
	router, err := commandsapp.NewRouter(runner, processedStore,
		commandsapp.WithDeadLetter(commandDLQ),
		commandsapp.WithDeadLetter(deadLetter),
		commandsapp.WithRouterLogger(logger),
	)
	if err != nil {
		return err
	}
	commandsapp.RegisterHandlers(router, commandsapp.Services{
		Locations:    locationSvc,
		Groups:       groupSvc,
		Replicas:     replicaRegistry,
		Reservations: engine,
		Units:        unitSvc,
	})

	group, ok := cfg.Broker.CommandGroup()
	if !ok {
		return errors.New("broker topology has no command consumer group")
	}
	consumer, err := commandsstream.NewConsumer(redisClient, router, cfg.Broker.Commands, group.Name, cfg.ConsumerName,
		commandsstream.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	if cfg.MQTT.Broker != "" {
		mqttClient, err := commandsmqtt.Dial(commandsmqtt.ClientConfig{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
		})
		if err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		subscriber, err := commandsmqtt.NewSubscriber(mqttClient, router, cfg.MQTT.TopicPrefix,
			commandsmqtt.WithQoS(byte(cfg.MQTT.QoS)),
			commandsmqtt.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		if err := subscriber.Start(); err != nil {
			return fmt.Errorf("mqtt subscribe: %w", err)
		}
		defer subscriber.Stop()
	}

	// HTTP surface.
	reports, err := reporting.NewBuilder(locations, groups)
	if err != nil {
		return err
	}
	api := apihttp.NewHandler(apihttp.Deps{
		Allocations:  allocation,
		Reservations: engine,
		Groups:       groupSvc,
		Reports:      reports,
		Audit:        audit.NewRepository(db),
		Health:       db.PingContext,
	}, logger)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), auth.NewDefaultPolicy(nil, nil), logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apihttp.RequestLogger(authMiddleware.Wrap(api), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pump.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx); err != nil {
			logger.Error("command consumer stopped", zap.Error(err))
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	wg.Wait()
	return nil
}
