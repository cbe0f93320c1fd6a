// ============================================================================
// BOOTSTRAP (Compose Root)
// ============================================================================
//
// Точка сборки Tracking Service: здесь создается инфраструктура
// (PostgreSQL, RabbitMQ, Redis), собираются Use Cases с зависимостями,
// связываются адаптеры и запускаются HTTP сервер и фоновые процессы.
//
// Слои создаются в порядке: инфраструктура → registry/router →
// repositories → publishers → use cases → consumers → HTTP.
//
// ============================================================================

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pontipilat22/logcompany1/internal/shared/auth"
	"github.com/pontipilat22/logcompany1/internal/shared/config"
	db_conn "github.com/pontipilat22/logcompany1/internal/shared/db"
	"github.com/pontipilat22/logcompany1/internal/shared/logger"
	"github.com/pontipilat22/logcompany1/internal/shared/metrics"
	"github.com/pontipilat22/logcompany1/internal/shared/mq"
	"github.com/pontipilat22/logcompany1/internal/shared/session"
	"github.com/pontipilat22/logcompany1/internal/shared/ws"
	inamqp "github.com/pontipilat22/logcompany1/internal/tracking/adapter/in/in_amqp"
	"github.com/pontipilat22/logcompany1/internal/tracking/adapter/in/in_ws"
	"github.com/pontipilat22/logcompany1/internal/tracking/adapter/in/transport"
	"github.com/pontipilat22/logcompany1/internal/tracking/adapter/out/out_amqp"
	"github.com/pontipilat22/logcompany1/internal/tracking/adapter/out/out_ws"
	"github.com/pontipilat22/logcompany1/internal/tracking/adapter/out/repo"
	"github.com/pontipilat22/logcompany1/internal/tracking/application/usecase"
	"github.com/pontipilat22/logcompany1/internal/tracking/registry"
	"github.com/pontipilat22/logcompany1/internal/tracking/router"
)

// Run запускает Tracking Service со всеми его компонентами.
// Блокируется до отмены ctx, затем гасит компоненты в обратном порядке.
func Run(ctx context.Context, cfg *config.Config, log *logger.Logger) {
	log.Info(logger.Entry{Action: "tracking_service_starting", Message: "initializing tracking service"})

	// ========================================================================
	// СЛОЙ 1: ИНФРАСТРУКТУРА
	// ========================================================================

	// PostgreSQL: пул соединений + миграции
	dbPool, err := db_conn.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal(logger.Entry{
			Action:  "db_connection_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
	defer db_conn.Close(dbPool, log)

	if err := db_conn.Migrate(ctx, dbPool, log); err != nil {
		log.Fatal(logger.Entry{
			Action:  "db_migration_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}

	// RabbitMQ: подключение + топология (exchanges, queues, bindings)
	mqConn, err := mq.NewRabbitMQ(ctx, cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal(logger.Entry{
			Action:  "rabbitmq_connection_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(mqConn, log); err != nil {
		log.Fatal(logger.Entry{
			Action:  "rabbitmq_topology_setup_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}

	// Redis: хранилище активных сессий (одна сессия на пользователя)
	sessionStore, err := session.NewStore(ctx, cfg.Redis)
	if err != nil {
		log.Fatal(logger.Entry{
			Action:  "redis_connection_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}
	defer func() { _ = sessionStore.Close() }()

	jwtService := auth.NewJWTService(cfg.JWT)

	// Prometheus registry сервиса
	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	promReg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	met := metrics.New(promReg)

	// ========================================================================
	// СЛОЙ 2: CONNECTION REGISTRY + TOPIC ROUTER
	// ========================================================================
	// Registry хранит живые соединения и их подписки, Router рассылает
	// события подписчикам топиков. Оба in-memory, состояние умирает
	// вместе с процессом.

	connRegistry := registry.New()
	topicRouter := router.New(connRegistry, log, met)

	// ========================================================================
	// СЛОЙ 3: REPOSITORIES
	// ========================================================================

	positionRepo := repo.NewPositionPgRepository(dbPool, log)

	// ========================================================================
	// СЛОЙ 4: PUBLISHERS / BROADCASTERS
	// ========================================================================

	positionBroadcaster := out_ws.NewWsPositionBroadcaster(topicRouter)
	eventPublisher := out_amqp.NewAmqpEventPublisher(mqConn, log)

	// ========================================================================
	// СЛОЙ 5: USE CASES
	// ========================================================================

	ingestUC := usecase.NewIngestPositionUseCase(
		positionRepo,
		positionBroadcaster,
		eventPublisher,
		cfg.Tracking,
		log,
		met,
	)
	ingestBatchUC := usecase.NewIngestBatchUseCase(ingestUC, cfg.Tracking, log)
	latestUC := usecase.NewGetLatestPositionUseCase(positionRepo)
	trackUC := usecase.NewGetOrderTrackUseCase(positionRepo)
	activeDriversUC := usecase.NewGetActiveDriversUseCase(positionRepo, cfg.Tracking, log)

	// ========================================================================
	// СЛОЙ 6: WEBSOCKET HUB
	// ========================================================================
	// Аутентификация соединения: JWT + проверка единственной активной
	// сессии в Redis. Токен, не совпадающий с сессией, означает вход
	// с другого устройства — старое соединение не принимаем.

	authFunc := func(token string) (string, string, error) {
		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			return "", "", err
		}

		sess, err := sessionStore.Get(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return "", "", fmt.Errorf("no active session for user %s", claims.UserID)
			}
			// Redis недоступен: пускаем по валидному JWT, single-session
			// деградирует вместо отказа в обслуживании
			log.Warn(logger.Entry{
				Action:  "session_check_degraded",
				Message: err.Error(),
			})
			return claims.UserID, claims.Role, nil
		}
		if sess.Token != token {
			return "", "", fmt.Errorf("session superseded by another device")
		}
		return claims.UserID, claims.Role, nil
	}

	hub := ws.NewHub(authFunc, log)
	in_ws.NewTrackingWSHandler(hub, connRegistry, ingestUC, ingestBatchUC, log, met)

	// ========================================================================
	// СЛОЙ 7: AMQP CONSUMERS
	// ========================================================================
	// order.status_changed от order-сервиса ретранслируется
	// подписчикам топика order:<id>

	orderStatusConsumer := inamqp.NewOrderStatusConsumer(mqConn, topicRouter, log)
	go func() {
		if err := orderStatusConsumer.Start(ctx); err != nil {
			log.Error(logger.Entry{
				Action:  "order_status_consumer_failed",
				Message: err.Error(),
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
	}()

	// ========================================================================
	// СЛОЙ 8: HTTP СЕРВЕР
	// ========================================================================

	httpHandler := transport.NewHTTPHandler(
		ingestUC,
		ingestBatchUC,
		latestUC,
		trackUC,
		activeDriversUC,
		log,
	)
	mux := transport.NewRouter(httpHandler, hub, jwtService, promReg, log)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info(logger.Entry{
			Action:  "http_server_starting",
			Message: fmt.Sprintf("listening on %s", addr),
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(logger.Entry{
				Action:  "http_server_failed",
				Message: err.Error(),
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
	}()

	// Ожидаем завершения контекста
	<-ctx.Done()
	log.Info(logger.Entry{Action: "tracking_service_stopping", Message: "shutting down tracking service"})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(logger.Entry{
			Action:  "http_server_shutdown_failed",
			Message: err.Error(),
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	} else {
		log.Info(logger.Entry{Action: "http_server_stopped", Message: "http server stopped gracefully"})
	}

	log.Info(logger.Entry{Action: "tracking_service_stopped", Message: "tracking service stopped"})
}
