// database/connection.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/masim/analysis/config"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // registers "sqlite"
)

var sqlOpen = sql.Open

// DSN builds the driver specific connection string for cfg.
func DSN(cfg config.DatabaseConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil
	}
	switch cfg.Driver {
	case "pgx":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.User, cfg.Password),
			Host:   net.JoinHostPort(cfg.Host, cfg.Port),
			Path:   "/" + cfg.DBName,
		}
		if cfg.ConnectTimeoutDuration > 0 {
			q := url.Values{}
			q.Set("connect_timeout", fmt.Sprintf("%d", int(cfg.ConnectTimeoutDuration.Seconds())))
			u.RawQuery = q.Encode()
		}
		return u.String(), nil
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
		mc.DBName = cfg.DBName
		mc.ParseTime = true
		mc.Timeout = cfg.ConnectTimeoutDuration
		return mc.FormatDSN(), nil
	case "sqlite":
		if cfg.DBName == "" {
			return "", fmt.Errorf("sqlite driver needs dbname to be a file path")
		}
		return cfg.DBName, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// Open connects to the simulation database and verifies the connection.
// The pipeline is single threaded, so the pool stays small.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	db, err := sqlOpen(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if cfg.ConnectTimeoutDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeoutDuration)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithFields(log.Fields{"driver": cfg.Driver, "host": cfg.Host, "dbname": cfg.DBName}).Info("Database: connected")
	return db, nil
}
