// Package sandbox runs a throwaway in-memory MySQL-protocol server seeded with
// a demo schema. It backs demos and the integration tests of the drivers.
package sandbox

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	sqle "github.com/dolthub/go-mysql-server"
	"github.com/dolthub/go-mysql-server/memory"
	"github.com/dolthub/go-mysql-server/server"
	"github.com/dolthub/go-mysql-server/sql"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/vitebski/dbsight/internal/utils"
	"github.com/vitebski/dbsight/pkg/models"
)

const (
	DefaultDatabase     = "shop"
	DefaultUser         = "root"
	DefaultReadyTimeout = 5 * time.Second

	host = "127.0.0.1"
)

// Options configures Start. Zero values pick a free port and the defaults.
type Options struct {
	Database     string
	Port         int
	ReadyTimeout time.Duration
	Logger       *logrus.Logger
}

// Server is a running sandbox
type Server struct {
	Database string
	Port     int

	srv    *server.Server
	logger *logrus.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// FreePort asks the kernel for an unused localhost TCP port
func FreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// Start launches the server and waits until it accepts connections. The
// server stops when ctx is canceled or Close is called.
func Start(ctx context.Context, opts Options) (*Server, error) {
	if opts.Database == "" {
		opts.Database = DefaultDatabase
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = DefaultReadyTimeout
	}
	if opts.Logger == nil {
		opts.Logger = utils.NopLogger()
	}
	if opts.Port == 0 {
		port, err := FreePort()
		if err != nil {
			return nil, fmt.Errorf("failed to get free port: %w", err)
		}
		opts.Port = port
	}

	// foreign keys need an index on the referenced primary key
	mdb := memory.NewDatabase(opts.Database)
	mdb.EnablePrimaryKeyIndexes()
	provider := memory.NewDBProvider(mdb)
	engine := sqle.NewDefault(provider)

	cfg := server.Config{
		Protocol: "tcp",
		Address:  net.JoinHostPort(host, strconv.Itoa(opts.Port)),
	}
	srv, err := server.NewServer(cfg, engine, sql.NewContext, memory.NewSessionBuilder(provider), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	s := &Server{
		Database: opts.Database,
		Port:     opts.Port,
		srv:      srv,
		logger:   opts.Logger,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go func() {
		if err := srv.Start(); err != nil {
			s.logger.Debugf("Sandbox server stopped: %v", err)
		}
	}()
	go func() {
		defer close(s.done)
		<-serverCtx.Done()
		if err := srv.Close(); err != nil {
			s.logger.Warnf("Failed to close sandbox server: %v", err)
		}
	}()

	if err := s.waitReady(ctx, opts.ReadyTimeout); err != nil {
		cancel()
		<-s.done
		return nil, err
	}

	s.logger.Infof("Sandbox MySQL server listening on %s (database %s)", s.Addr(), s.Database)
	return s, nil
}

func (s *Server) waitReady(ctx context.Context, timeout time.Duration) error {
	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-readyCtx.Done():
			return fmt.Errorf("sandbox server not ready on %s: %w", s.Addr(), readyCtx.Err())
		case <-ticker.C:
			conn, err := net.DialTimeout("tcp", s.Addr(), 100*time.Millisecond)
			if err == nil {
				conn.Close()
				return nil
			}
		}
	}
}

// Addr returns host:port
func (s *Server) Addr() string {
	return net.JoinHostPort(host, strconv.Itoa(s.Port))
}

// DSN returns a go-sql-driver/mysql connection string for the sandbox
// database
func (s *Server) DSN() string {
	cfg := gomysql.NewConfig()
	cfg.User = DefaultUser
	cfg.Net = "tcp"
	cfg.Addr = s.Addr()
	cfg.DBName = s.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ConnectionConfig returns a profile pointing at the sandbox
func (s *Server) ConnectionConfig(name string) models.ConnectionConfig {
	cfg := models.NewConnectionConfig(name, models.MySql, models.TCP(host, strconv.Itoa(s.Port)), false, DefaultUser)
	cfg.Database = s.Database
	return cfg
}

// Close stops the server. It is safe to call more than once.
func (s *Server) Close() error {
	s.cancel()
	<-s.done
	return nil
}
