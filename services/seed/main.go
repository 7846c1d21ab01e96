package main

import (
	"context"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	gormlogger "gorm.io/gorm/logger"

	"github.com/relabs-tech/plantparenthood/core/csql"
	"github.com/relabs-tech/plantparenthood/core/logger"
	"github.com/relabs-tech/plantparenthood/core/planner"
)

// Service holds the configuration for the seeder
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
// and POSTGRES_PASSWORD="docker"
type Service struct {
	Postgres         string `env:"POSTGRES,required" description:"the connection string for the Postgres DB without password"`
	PostgresPassword string `env:"POSTGRES_PASSWORD,optional" description:"password to the Postgres DB"`
	Schema           string `env:"POSTGRES_SCHEMA,default=plants" description:"the database schema"`
	Reset            bool   `env:"SEED_RESET,default=false" description:"drop all tables before seeding"`
	LogLevel         string `env:"LOG_LEVEL,default=info" description:"the log level"`
}

func main() {
	_ = godotenv.Load()

	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}
	logger.InitLoggerFromString(service.LogLevel)
	rlog := logger.Default()

	db, err := csql.OpenWithSchema(service.Postgres, service.PostgresPassword, service.Schema)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot open database")
	}
	defer db.Close()

	gormDB, err := db.Gorm(gormlogger.Warn)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot open gorm")
	}

	ctx := context.Background()
	p := planner.New(&planner.Builder{DB: gormDB})
	seeded, err := p.Seed(ctx, service.Reset)
	if err != nil {
		rlog.WithError(err).Fatalln("seeding failed")
	}
	if !seeded {
		return
	}
	record, at, err := p.LastSeed(ctx)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot read seed record")
	}
	rlog.WithField("reset", record.Reset).
		Infof("database seeded at %s, all users have the password '%s'", at.Format(time.RFC3339), planner.SeedPassword)
}
