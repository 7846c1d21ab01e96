// Package test contains integration tests which run the planner against Postgres and
// Kafka in docker containers.
//
// The tests are skipped unless INTEGRATION_TESTS is set, they need a docker daemon.
package test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcnetwork "github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
	gormlogger "gorm.io/gorm/logger"

	"github.com/relabs-tech/plantparenthood/core/auth"
	"github.com/relabs-tech/plantparenthood/core/backend"
	"github.com/relabs-tech/plantparenthood/core/client"
	"github.com/relabs-tech/plantparenthood/core/csql"
	"github.com/relabs-tech/plantparenthood/core/notify"
	"github.com/relabs-tech/plantparenthood/core/planner"
)

const (
	testSchema = "plants_test"
	testTopic  = "plant_events_test"
)

// IntegrationTestSuite starts Postgres and Kafka and serves a backend over HTTP
type IntegrationTestSuite struct {
	suite.Suite
	*backend.Backend

	srv      *httptest.Server
	client   client.Client
	planner  *planner.Planner
	notifier *notify.KafkaNotifier

	dbConn            *csql.DB
	network           *testcontainers.DockerNetwork
	kafkaContainer    testcontainers.Container
	zooContainer      testcontainers.Container
	postgresContainer testcontainers.Container
	kafkaConn         *kafka.Conn
	kafkaAddr         string
}

func (s *IntegrationTestSuite) createTopic(topic string, numPartitions int) error {
	if s.kafkaConn == nil {
		return fmt.Errorf("kafka connection is not established")
	}

	err := s.kafkaConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		return fmt.Errorf("failed to create topic %s: %w", topic, err)
	}
	return nil
}

// newReader returns a reader for the test topic which starts at the first message
func (s *IntegrationTestSuite) newReader() *kafka.Reader {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   []string{s.kafkaAddr},
		Topic:     testTopic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
		MaxWait:   500 * time.Millisecond,
	})
	s.Require().NoError(reader.SetOffset(kafka.FirstOffset))
	return reader
}

func (s *IntegrationTestSuite) SetupSuite() {
	if os.Getenv("INTEGRATION_TESTS") == "" {
		s.T().Skip("set INTEGRATION_TESTS to run the integration tests")
	}
	ctx := context.Background()

	// Create a shared Docker network for Kafka and Zookeeper
	network, err := tcnetwork.New(ctx)
	s.Require().NoError(err)
	s.network = network
	networkName := network.Name

	postgresUser := "testuser"
	postgresPassword := "testpass"
	postgresDB := "testdb"

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:15",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDB,
		},
		Networks:       []string{networkName},
		NetworkAliases: map[string][]string{networkName: {"postgres"}},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	s.Require().NoError(err)
	s.postgresContainer = pgC

	pgHost, err := pgC.Host(ctx)
	s.Require().NoError(err)
	pgPort, err := pgC.MappedPort(ctx, "5432")
	s.Require().NoError(err)

	zooReq := testcontainers.ContainerRequest{
		Image:        "confluentinc/cp-zookeeper:7.5.0",
		ExposedPorts: []string{"2181/tcp"},
		Env: map[string]string{
			"ZOOKEEPER_CLIENT_PORT": "2181",
			"ZOOKEEPER_TICK_TIME":   "2000",
		},
		WaitingFor:     wait.ForListeningPort("2181/tcp"),
		Networks:       []string{networkName},
		NetworkAliases: map[string][]string{networkName: {"zookeeper"}},
	}
	s.zooContainer, err = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: zooReq,
		Started:          true,
	})
	s.Require().NoError(err)

	kafkaReq := testcontainers.ContainerRequest{
		Image:        "confluentinc/cp-kafka:7.5.0",
		ExposedPorts: []string{"9092:9092/tcp", "29092:29092/tcp"},
		Env: map[string]string{
			"KAFKA_BROKER_ID":                        "1",
			"KAFKA_ZOOKEEPER_CONNECT":                "zookeeper:2181",
			"KAFKA_LISTENERS":                        "PLAINTEXT://0.0.0.0:9092,PLAINTEXT_HOST://0.0.0.0:29092,EXTERNAL://0.0.0.0:9093",
			"KAFKA_ADVERTISED_LISTENERS":             "PLAINTEXT://localhost:9092,PLAINTEXT_HOST://localhost:29092,EXTERNAL://kafka:9093",
			"KAFKA_LISTENER_SECURITY_PROTOCOL_MAP":   "PLAINTEXT:PLAINTEXT,PLAINTEXT_HOST:PLAINTEXT,EXTERNAL:PLAINTEXT",
			"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR": "1",
			"ALLOW_PLAINTEXT_LISTENER":               "yes",
		},
		WaitingFor:     wait.ForLog("started (kafka.server.KafkaServer)"),
		Networks:       []string{networkName},
		NetworkAliases: map[string][]string{networkName: {"kafka"}},
	}
	kafkaC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: kafkaReq,
		Started:          true,
	})
	s.Require().NoError(err)
	s.kafkaContainer = kafkaC

	kafkaHost, err := kafkaC.Host(ctx)
	s.Require().NoError(err)
	kafkaPort, err := kafkaC.MappedPort(ctx, "9092")
	s.Require().NoError(err)
	s.kafkaAddr = fmt.Sprintf("%s:%s", kafkaHost, kafkaPort.Port())

	s.kafkaConn, err = kafka.Dial("tcp", s.kafkaAddr)
	s.Require().NoError(err)
	s.Require().NoError(s.createTopic(testTopic, 1), "Failed to create topic")

	s.dbConn, err = csql.OpenWithSchema(fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		pgHost, pgPort.Port(), postgresUser, postgresDB), postgresPassword, testSchema)
	s.Require().NoError(err)
	gormDB, err := s.dbConn.Gorm(gormlogger.Warn)
	s.Require().NoError(err)

	s.notifier = notify.NewKafka(&notify.KafkaBuilder{
		Brokers: []string{s.kafkaAddr},
		Topic:   testTopic,
	})
	s.planner = planner.New(&planner.Builder{DB: gormDB, Notifier: s.notifier})
	s.Require().NoError(s.planner.Migrate(ctx))

	s.Backend = backend.New(&backend.Builder{
		Router:         mux.NewRouter(),
		Planner:        s.planner,
		Auth:           auth.New(auth.Config{Secret: []byte("integration-secret")}, s.planner),
		AllowedOrigins: []string{"http://localhost:3000"},
	})
	s.srv = httptest.NewServer(s.Handler())
	s.client = client.NewWithURL(s.srv.URL)
}

func (s *IntegrationTestSuite) TearDownSuite() {
	ctx := context.Background()
	if s.srv != nil {
		s.srv.Close()
	}
	if s.notifier != nil {
		s.NoError(s.notifier.Close())
	}
	if s.dbConn != nil {
		s.NoError(s.dbConn.ClearSchema())
		s.dbConn.Close()
	}
	if s.kafkaConn != nil {
		s.kafkaConn.Close()
	}
	for _, c := range []testcontainers.Container{s.kafkaContainer, s.zooContainer, s.postgresContainer} {
		if c != nil {
			s.NoError(c.Terminate(ctx))
		}
	}
	if s.network != nil {
		s.NoError(s.network.Remove(ctx))
	}
}
