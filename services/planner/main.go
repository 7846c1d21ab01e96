package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
	gormlogger "gorm.io/gorm/logger"

	"github.com/relabs-tech/plantparenthood/core"
	"github.com/relabs-tech/plantparenthood/core/auth"
	"github.com/relabs-tech/plantparenthood/core/backend"
	"github.com/relabs-tech/plantparenthood/core/csql"
	"github.com/relabs-tech/plantparenthood/core/logger"
	"github.com/relabs-tech/plantparenthood/core/notify"
	"github.com/relabs-tech/plantparenthood/core/planner"
)

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker"
type Service struct {
	Postgres         string        `env:"POSTGRES,required" description:"the connection string for the Postgres DB without password"`
	PostgresPassword string        `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	Schema           string        `env:"POSTGRES_SCHEMA,default=plants" description:"the database schema"`
	JWTSecret        string        `env:"JWT_SECRET,required" description:"the secret for signing bearer tokens"`
	TokenLifetime    time.Duration `env:"TOKEN_LIFETIME,default=168h" description:"lifetime of bearer tokens"`
	AllowedOrigins   []string      `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000;http://localhost:5173" description:"semicolon separated CORS allow-list"`
	Port             int           `env:"PORT,default=3000" description:"the http port"`
	LogLevel         string        `env:"LOG_LEVEL,default=info" description:"the log level"`
	KafkaBrokers     []string      `env:"KAFKA_BROKERS,optional" description:"semicolon separated kafka brokers, notifications are disabled without"`
	KafkaTopic       string        `env:"KAFKA_TOPIC,default=plant_events" description:"the kafka topic for notifications"`
	LoginRate        float64       `env:"LOGIN_RATE,default=5" description:"allowed logins and registrations per second and client"`
	LoginBurst       int           `env:"LOGIN_BURST,default=10" description:"burst size for LOGIN_RATE"`
	TrustedProxies   []string      `env:"TRUSTED_PROXIES" description:"semicolon separated addresses or CIDRs of reverse proxies whose X-Forwarded-For is honoured"`
}

func main() {
	_ = godotenv.Load() // a .env file is optional

	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}
	logger.InitLoggerFromString(service.LogLevel)
	rlog := logger.Default()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := csql.OpenWithSchema(service.Postgres, service.PostgresPassword, service.Schema)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot open database")
	}
	defer db.Close()

	gormLevel := gormlogger.Warn
	if service.LogLevel == "debug" || service.LogLevel == "trace" {
		gormLevel = gormlogger.Info
	}
	gormDB, err := db.Gorm(gormLevel)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot open gorm")
	}

	var notifier core.Notifier = notify.Nop{}
	if len(service.KafkaBrokers) > 0 {
		kafkaNotifier := notify.NewKafka(&notify.KafkaBuilder{
			Brokers: service.KafkaBrokers,
			Topic:   service.KafkaTopic,
		})
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	p := planner.New(&planner.Builder{DB: gormDB, Notifier: notifier})
	if err := p.Migrate(ctx); err != nil {
		rlog.WithError(err).Fatalln("cannot migrate database")
	}

	authService := auth.New(auth.Config{
		Secret:        []byte(service.JWTSecret),
		TokenLifetime: service.TokenLifetime,
		Issuer:        "plantparenthood",
	}, p)

	router := mux.NewRouter()
	b := backend.New(&backend.Builder{
		Router:         router,
		Planner:        p,
		Auth:           authService,
		AllowedOrigins: service.AllowedOrigins,
		LoginRate:      rate.Limit(service.LoginRate),
		LoginBurst:     service.LoginBurst,
		TrustedProxies: service.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", service.Port),
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		rlog.Infof("listen on port :%d, version %s", service.Port, backend.Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rlog.WithError(err).Errorln("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	rlog.Infoln("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		rlog.WithError(err).Errorln("graceful shutdown failed")
	}
}
