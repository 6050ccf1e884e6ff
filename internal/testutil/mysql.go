//go:build integration

// Package testutil starts the containers used by integration tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/go-sql-driver/mysql"
)

const (
	mysqlImage    = "mysql:8.0.36"
	mysqlDatabase = "syncpipe"
	mysqlPassword = "secret"
	mysqlAlias    = "mysql"
	mysqlPort     = nat.Port("3306/tcp")
	startTimeout  = 2 * time.Minute
)

// MySQL is a running MySQL server with the syncpipe database created.
type MySQL struct {
	// DB is connected through the mapped host port.
	DB *sql.DB
	// Network is set when the server was started WithNetwork.
	Network *testcontainers.DockerNetwork
	// NetworkDSN reaches the server from other containers on Network.
	NetworkDSN string
}

type mysqlOptions struct {
	network bool
}

// MySQLOption adjusts StartMySQL.
type MySQLOption func(*mysqlOptions)

// WithNetwork attaches the server to a fresh Docker network so CLI containers can reach it.
func WithNetwork() MySQLOption {
	return func(o *mysqlOptions) {
		o.network = true
	}
}

func mysqlDSN(host, port string) string {
	return fmt.Sprintf("root:%s@tcp(%s:%s)/%s?parseTime=true", mysqlPassword, host, port, mysqlDatabase)
}

// StartMySQL starts MySQL and registers cleanup on t. The test is skipped when Docker is unavailable.
func StartMySQL(t *testing.T, ctx context.Context, opts ...MySQLOption) MySQL {
	t.Helper()

	var o mysqlOptions
	for _, opt := range opts {
		opt(&o)
	}

	req := testcontainers.ContainerRequest{
		Image:        mysqlImage,
		ExposedPorts: []string{string(mysqlPort)},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": mysqlPassword,
			"MYSQL_DATABASE":      mysqlDatabase,
		},
		WaitingFor: wait.ForSQL(mysqlPort, "mysql", func(host string, port nat.Port) string {
			return mysqlDSN(host, port.Port())
		}).WithStartupTimeout(startTimeout),
	}

	var env MySQL
	if o.network {
		net, err := network.New(ctx)
		if err != nil {
			t.Skipf("create network: %v", err)
		}
		t.Cleanup(func() { _ = net.Remove(ctx) })

		req.Networks = []string{net.Name}
		req.NetworkAliases = map[string][]string{net.Name: {mysqlAlias}}
		env.Network = net
		env.NetworkDSN = mysqlDSN(mysqlAlias, mysqlPort.Port())
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("start mysql container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("resolve host: %v", err)
	}
	mapped, err := container.MappedPort(ctx, mysqlPort)
	if err != nil {
		t.Fatalf("resolve port: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN(host, mapped.Port()))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	env.DB = db

	return env
}
