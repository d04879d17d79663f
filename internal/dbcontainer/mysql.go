// Package dbcontainer starts a throwaway MySQL server in Docker for local
// loads and integration tests.
package dbcontainer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"csvload/internal/storage"
)

const (
	DefaultImage        = "mysql:8.0"
	DefaultRootPassword = "mysql"
	DefaultDatabase     = "spotify"
	DefaultHostPort     = 3306

	mysqlPort = nat.Port("3306/tcp")
)

// Options configures the container. Zero values take the defaults above.
type Options struct {
	Image        string
	RootPassword string
	Database     string

	// HostPort is published on 127.0.0.1. Ignored when RandomPort is set.
	HostPort   int
	RandomPort bool

	StartupTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Image == "" {
		o.Image = DefaultImage
	}
	if o.RootPassword == "" {
		o.RootPassword = DefaultRootPassword
	}
	if o.Database == "" {
		o.Database = DefaultDatabase
	}
	if o.HostPort == 0 {
		o.HostPort = DefaultHostPort
	}
	if o.StartupTimeout <= 0 {
		o.StartupTimeout = 2 * time.Minute
	}
	return o
}

// MySQL is a running container.
type MySQL struct {
	testcontainers.Container

	Host     string
	Port     int
	Password string
	Database string
}

// StartMySQL starts the container and blocks until the server answers a SQL
// ping. Callers must Terminate the result.
func StartMySQL(ctx context.Context, opts Options) (*MySQL, error) {
	opts = opts.withDefaults()

	ctr, err := testcontainers.Run(ctx, opts.Image, customizers(opts)...)
	if err != nil {
		if ctr != nil {
			_ = ctr.Terminate(ctx)
		}
		return nil, fmt.Errorf("start mysql: %w", err)
	}

	host, err := ctr.Host(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("get container host: %w", err)
	}
	mapped, err := ctr.MappedPort(ctx, mysqlPort)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("get mapped port: %w", err)
	}

	return &MySQL{
		Container: ctr,
		Host:      host,
		Port:      mapped.Int(),
		Password:  opts.RootPassword,
		Database:  opts.Database,
	}, nil
}

// DSN returns a go-sql-driver DSN for the root user.
func (m *MySQL) DSN() string {
	return rootDSN(net.JoinHostPort(m.Host, strconv.Itoa(m.Port)), m.Password, m.Database)
}

// ConnParams returns the discrete connection settings for storage.Config.
func (m *MySQL) ConnParams() storage.ConnParams {
	return storage.ConnParams{
		Host:     m.Host,
		Port:     m.Port,
		User:     "root",
		Password: m.Password,
		Database: m.Database,
	}
}

func customizers(opts Options) []testcontainers.ContainerCustomizer {
	cs := []testcontainers.ContainerCustomizer{
		testcontainers.WithEnv(map[string]string{
			"MYSQL_ROOT_PASSWORD": opts.RootPassword,
			"MYSQL_DATABASE":      opts.Database,
		}),
		testcontainers.WithExposedPorts(string(mysqlPort)),
		testcontainers.WithWaitStrategy(
			wait.ForSQL(mysqlPort, "mysql", func(host string, port nat.Port) string {
				return rootDSN(net.JoinHostPort(host, port.Port()), opts.RootPassword, opts.Database)
			}).WithStartupTimeout(opts.StartupTimeout),
		),
	}
	if !opts.RandomPort {
		cs = append(cs, testcontainers.WithHostConfigModifier(func(hc *container.HostConfig) {
			hc.PortBindings = nat.PortMap{
				mysqlPort: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: strconv.Itoa(opts.HostPort)}},
			}
		}))
	}
	return cs
}

func rootDSN(addr, password, database string) string {
	c := mysql.NewConfig()
	c.User = "root"
	c.Passwd = password
	c.Net = "tcp"
	c.Addr = addr
	c.DBName = database
	c.ParseTime = true
	return c.FormatDSN()
}
