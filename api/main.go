package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	. "github.com/jimiolaniyan/blockhub"
	"github.com/jimiolaniyan/blockhub/auth"
	"github.com/jimiolaniyan/blockhub/config"
	"github.com/jimiolaniyan/blockhub/federation"
	"github.com/jimiolaniyan/blockhub/mail"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log := cfg.Logger().WithFields(logrus.Fields{"app": cfg.AppName, "env": cfg.Env})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.WithError(err).Fatal("could not connect to mongo")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.WithError(err).Fatal("could not reach mongo")
	}

	db := client.Database(cfg.MongoDatabase)
	if err := EnsureIndexes(ctx, db); err != nil {
		log.WithError(err).Warn("could not create indexes")
	}

	subCtx, stopSubscriptions := context.WithCancel(context.Background())
	defer stopSubscriptions()

	var events ProjectEvents
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Fatal("could not reach redis")
		}
		redisEvents := NewRedisProjectEvents(rdb, cfg.RedisProjectChannel)
		events = redisEvents

		go func() {
			err := redisEvents.Subscribe(subCtx, func(id ProjectID) {
				log.WithField("project", id).Debug("project owner changed")
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("project subscription stopped")
			}
		}()
	}

	var notifier Notifier = mail.NewLogger(log)
	if cfg.MailEnabled() {
		notifier = mail.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
	}

	strategies := NewStrategies()
	if cfg.OAuth.Type != "" {
		st, err := federation.NewPasswordGrant(federation.Config{
			Type:         cfg.OAuth.Type,
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			TokenURL:     cfg.OAuth.TokenURL,
			UserInfoURL:  cfg.OAuth.UserInfoURL,
			Scopes:       cfg.OAuth.Scopes,
		})
		if err != nil {
			log.WithError(err).Fatal("invalid login strategy")
		}
		strategies.Register(st)
	}

	users := NewInstrumentedUserRepository(NewMongoUserRepository(db.Collection(UsersCollection)), log)
	projects := NewMongoProjectRepository(db.Collection(ProjectsCollection))
	sessions := NewSessions(events)
	tokens := auth.NewIssuer(cfg.SigningKey, cfg.TokenTTL)

	svc := NewService(users, projects, sessions, auth.NewAdminChecker(cfg.Admins...), notifier,
		WithLogger(log), WithMaxUsernameAttempts(cfg.MaxUsernameAttempts))

	router := httprouter.New()
	router.Handler(http.MethodPost, "/v1/users", auth.OptionalAuth(tokens, CreateUserHandler(svc)))
	router.Handler(http.MethodGet, "/v1/users/:username", auth.RequireAuth(tokens, ViewUserHandler(svc)))
	router.Handler(http.MethodDelete, "/v1/users/:username", auth.RequireAuth(tokens, DeleteUserHandler(svc)))
	router.Handler(http.MethodPatch, "/v1/users/:username/password", auth.RequireAuth(tokens, SetPasswordHandler(svc)))
	router.Handler(http.MethodPost, "/v1/users/:username/password/reset", ResetPasswordHandler(svc))
	router.Handler(http.MethodPost, "/v1/users/:username/linked", auth.RequireAuth(tokens, LinkAccountHandler(svc, strategies)))
	router.Handler(http.MethodDelete, "/v1/users/:username/linked", auth.RequireAuth(tokens, UnlinkAccountHandler(svc)))
	router.Handler(http.MethodPost, "/v1/clients", ConnectHandler(sessions, projects))
	router.Handler(http.MethodPost, "/v1/sessions", LoginHandler(svc, strategies, tokens))
	router.Handler(http.MethodDelete, "/v1/sessions/:clientId", auth.OptionalAuth(tokens, LogoutHandler(svc)))
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		log.WithField("addr", cfg.Addr).Info("server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	stopSubscriptions()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown failed")
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		log.WithError(err).Error("mongo disconnect failed")
	}
}
