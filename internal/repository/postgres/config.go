package postgres

import (
	"net"
	"net/url"
	"strconv"
)

// Config holds connection settings and the tables exposed as record types.
type Config struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	Schema   string
	Tables   []TableConfig
}

// TableConfig maps one table onto a record type.
type TableConfig struct {
	// Type is the record type name. Defaults to Table.
	Type  string
	Table string
	// PK is the primary key column. Defaults to "id".
	PK string
	// References lists columns that hold foreign keys; they are never searched.
	References []string
}

func (t TableConfig) typeName() string {
	if t.Type != "" {
		return t.Type
	}
	return t.Table
}

func (t TableConfig) pk() string {
	if t.PK != "" {
		return t.PK
	}
	return "id"
}

// ConnectionURL builds a postgres:// URL for the pgx driver.
func (c *Config) ConnectionURL() *url.URL {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	pgURL := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(port)),
		User:   url.UserPassword(c.User, c.Password),
		Path:   c.Name,
	}
	q := pgURL.Query()
	q.Add("sslmode", sslMode)
	pgURL.RawQuery = q.Encode()
	return pgURL
}

func (c *Config) schema() string {
	if c.Schema != "" {
		return c.Schema
	}
	return "public"
}
