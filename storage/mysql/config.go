package mysql

import (
	"errors"
	"net"
	"strconv"
	"time"

	driver "github.com/go-sql-driver/mysql"
)

// Config holds source connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// Timeout bounds connection establishment.
	Timeout time.Duration
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("mysql config: Host is required")
	}
	if c.User == "" {
		return errors.New("mysql config: User is required")
	}
	if c.Database == "" {
		return errors.New("mysql config: Database is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.New("mysql config: Port out of range")
	}
	return nil
}

// DSN renders the driver data source name.
func (c *Config) DSN() string {
	port := c.Port
	if port == 0 {
		port = 3306
	}
	cfg := driver.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(port))
	cfg.DBName = c.Database
	cfg.ParseTime = true
	cfg.Timeout = c.Timeout
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return cfg.FormatDSN()
}
