package database

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds PostgreSQL connection parameters.
type Config struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Name            string `toml:"name"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	ConnTimeout     string `toml:"conn_timeout"`
	QueryTimeout    string `toml:"query_timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    string
	MaxIdleConns    string
	ConnMaxLifetime string
	ConnTimeout     string
	QueryTimeout    string
}

// ConnMaxLifetimeDuration returns ConnMaxLifetime as a time.Duration.
func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

// ConnTimeoutDuration returns ConnTimeout as a time.Duration.
func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
	return d
}

// QueryTimeoutDuration returns QueryTimeout as a time.Duration.
// Zero disables the per-statement timeout.
func (c *Config) QueryTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.QueryTimeout)
	return d
}

// Dsn returns a PostgreSQL connection string. A configured query timeout is
// applied server-side as statement_timeout.
func (c *Config) Dsn() string {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Name, c.User, c.Password, c.SSLMode,
	)
	if d := c.QueryTimeoutDuration(); d > 0 {
		dsn += fmt.Sprintf(" statement_timeout=%d", d.Milliseconds())
	}
	return dsn
}

// URL returns the connection string in postgres:// form for migration
// tooling. Credentials are escaped.
func (c *Config) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

type stringField struct {
	dst, env *string
	def      string
}

type intField struct {
	dst *int
	env *string
	def int
}

// fields pairs every setting with its variable name in env and its default.
// Name, User and Password have no default.
func (c *Config) fields(env *Env) ([]stringField, []intField) {
	if env == nil {
		env = &Env{}
	}
	strs := []stringField{
		{&c.Host, &env.Host, "localhost"},
		{&c.Name, &env.Name, ""},
		{&c.User, &env.User, ""},
		{&c.Password, &env.Password, ""},
		{&c.SSLMode, &env.SSLMode, "disable"},
		{&c.ConnMaxLifetime, &env.ConnMaxLifetime, "15m"},
		{&c.ConnTimeout, &env.ConnTimeout, "5s"},
		{&c.QueryTimeout, &env.QueryTimeout, "30s"},
	}
	ints := []intField{
		{&c.Port, &env.Port, 5432},
		{&c.MaxOpenConns, &env.MaxOpenConns, 25},
		{&c.MaxIdleConns, &env.MaxIdleConns, 5},
	}
	return strs, ints
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	dst, dstInts := c.fields(nil)
	src, srcInts := overlay.fields(nil)
	for i := range dst {
		if *src[i].dst != "" {
			*dst[i].dst = *src[i].dst
		}
	}
	for i := range dstInts {
		if *srcInts[i].dst != 0 {
			*dstInts[i].dst = *srcInts[i].dst
		}
	}
}

func (c *Config) loadDefaults() {
	strs, ints := c.fields(nil)
	for _, f := range strs {
		if *f.dst == "" {
			*f.dst = f.def
		}
	}
	for _, f := range ints {
		if *f.dst == 0 {
			*f.dst = f.def
		}
	}
}

func (c *Config) loadEnv(env *Env) {
	strs, ints := c.fields(env)
	for _, f := range strs {
		if v := lookupEnv(*f.env); v != "" {
			*f.dst = v
		}
	}
	for _, f := range ints {
		if n, err := strconv.Atoi(lookupEnv(*f.env)); err == nil {
			*f.dst = n
		}
	}
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

func (c *Config) validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("name required")
	case c.User == "":
		return fmt.Errorf("user required")
	case c.MaxIdleConns > c.MaxOpenConns:
		return fmt.Errorf("max_idle_conns %d exceeds max_open_conns %d", c.MaxIdleConns, c.MaxOpenConns)
	}
	for name, v := range map[string]string{
		"conn_max_lifetime": c.ConnMaxLifetime,
		"conn_timeout":      c.ConnTimeout,
		"query_timeout":     c.QueryTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}
