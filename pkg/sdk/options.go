package fallsearch

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/fallsearch/internal/usecase/rewrite"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver    string // "memory", "valkey" or "redis"
	addrs     []string
	password  string
	keyPrefix string
	fixtures  []byte
	seed      bool
	err       error

	rewriter       Rewriter
	policy         TermPolicy
	strict         bool
	rewriteTimeout time.Duration
	quota          *rewrite.QuotaLimits

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey stores records in a Valkey instance.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis stores records in a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix sets the key namespace for Valkey/Redis. Default: "fallsearch:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithFixtures loads record types and records from YAML. With the memory
// driver (the default) they become the whole data set; with Valkey/Redis
// they are written to the store on New.
func WithFixtures(yamlData []byte) Option {
	return optionFunc(func(c *clientConfig) {
		c.fixtures = yamlData
		c.seed = true
	})
}

// WithFixturesFile is WithFixtures reading from path.
func WithFixturesFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			c.err = err
			return
		}
		c.fixtures = data
		c.seed = true
	})
}

// WithRewriter enables the zero-hit fallback through r.
func WithRewriter(r Rewriter) Option {
	return optionFunc(func(c *clientConfig) {
		c.rewriter = r
	})
}

// WithTermPolicy selects how multiple query terms combine. Default: PolicyOverwrite.
func WithTermPolicy(p TermPolicy) Option {
	return optionFunc(func(c *clientConfig) {
		c.policy = p
	})
}

// WithStrictRewrite makes rewrite failures fail the search instead of
// returning the empty first pass.
func WithStrictRewrite() Option {
	return optionFunc(func(c *clientConfig) {
		c.strict = true
	})
}

// WithRewriteTimeout bounds a single rewrite call.
func WithRewriteTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.rewriteTimeout = d
	})
}

// WithRewriteQuota caps rewrite provider calls per UTC day and month (0 = unlimited).
// Once exhausted, searches that need a rewrite fail with ErrQuotaExceeded in
// strict mode and return the empty first pass otherwise. With Valkey or Redis
// the counters survive restarts.
func WithRewriteQuota(daily, monthly int64) Option {
	return optionFunc(func(c *clientConfig) {
		if daily < 0 || monthly < 0 {
			c.err = errors.New("rewrite quota must not be negative")
			return
		}
		c.quota = &rewrite.QuotaLimits{Daily: daily, Monthly: monthly, Action: rewrite.QuotaActionReject}
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK operation metrics in reg.
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
