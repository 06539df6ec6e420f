package postgres_test

import (
	"context"
	"fmt"
	"taskManager/internal/repository/postgres"
	"taskManager/internal/repository/repotest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresTestSuite для интеграционных тестов с PostgreSQL
type PostgresTestSuite struct {
	repotest.StorageSuite
	container  testcontainers.Container
	storage    *postgres.Storage
	connString string
	ctx        context.Context
}

// SetupSuite запускается один раз перед всеми тестами
func (s *PostgresTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(30 * time.Second),
	}

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	s.connString = fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	// порт открывается раньше, чем postgres готов принимать запросы
	require.Eventually(s.T(), func() bool {
		return postgres.Migrate(s.connString) == nil
	}, 30*time.Second, 500*time.Millisecond)

	s.storage, err = postgres.New(s.ctx, s.connString, postgres.PoolConfig{MaxConns: 4})
	require.NoError(s.T(), err)
	s.Storage = s.storage
}

// TearDownSuite откатывает миграции и останавливает контейнер
func (s *PostgresTestSuite) TearDownSuite() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.connString != "" {
		s.NoError(postgres.Down(s.connString))
		for _, table := range []string{"tasks", "users"} {
			s.False(s.tableExists(table), "таблица %s должна быть удалена откатом", table)
		}
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresTestSuite) tableExists(name string) bool {
	conn, err := pgx.Connect(s.ctx, s.connString)
	s.Require().NoError(err)
	defer conn.Close(s.ctx)

	var regclass *string
	err = conn.QueryRow(s.ctx, `SELECT to_regclass('public.' || $1)::text`, name).Scan(&regclass)
	s.Require().NoError(err)
	return regclass != nil
}

// SetupTest запускается перед каждым тестом
func (s *PostgresTestSuite) SetupTest() {
	conn, err := pgx.Connect(s.ctx, s.connString)
	s.Require().NoError(err)
	defer conn.Close(s.ctx)

	_, err = conn.Exec(s.ctx, `DELETE FROM tasks`)
	s.Require().NoError(err)
	_, err = conn.Exec(s.ctx, `DELETE FROM users`)
	s.Require().NoError(err)
}

func (s *PostgresTestSuite) TestMigrateIsIdempotent() {
	s.NoError(postgres.Migrate(s.connString))
	s.True(s.tableExists("tasks"))
	s.True(s.tableExists("users"))
}

func TestPostgresStorage(t *testing.T) {
	if testing.Short() {
		t.Skip("интеграционный тест с PostgreSQL пропущен в режиме -short")
	}
	suite.Run(t, new(PostgresTestSuite))
}

func TestMigrate_EmptyURL(t *testing.T) {
	require.Error(t, postgres.Migrate(""))
	require.Error(t, postgres.Down(""))
}
