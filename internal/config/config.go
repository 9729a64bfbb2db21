package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DatabaseSchemePostgres is the postgres database scheme identifier
	DatabaseSchemePostgres = "postgres"
)

// Config is the process-wide configuration, fixed at start-up.
type Config struct {
	RPCURL       string
	RPCUser      string
	RPCPass      string
	RPCTimeout   time.Duration
	RPCRateLimit float64 // forwarded calls per second, 0 disables limiting

	Port           int
	PollInterval   time.Duration
	BlockCacheSize int
	ConfigPath     string // JSON file holding the two payout addresses

	DefaultTonAddress string
	DefaultFeeAddress string

	// APIKey empty means every caller is authorized.
	APIKey        string
	AllowMutating bool

	DBDialect string // postgres only
	DBDsn     string // DSN string passed to GORM driver

	Debug bool
	TUI   bool
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using %d\n", key, v, def)
		return def
	}
	return n
}

func getenvFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		fmt.Fprintf(os.Stderr, "warning: invalid %s=%q, using %v\n", key, v, def)
		return def
	}
	return f
}

// parseDatabaseURL interprets DATABASE_URL and returns (dialect, dsn).
// Supported schemes: postgres, postgresql.
func parseDatabaseURL(databaseURL string) (string, string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", "", err
	}
	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case DatabaseSchemePostgres, "postgresql":
		// GORM postgres driver accepts URL DSN as-is
		return DatabaseSchemePostgres, databaseURL, nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %s", u.Scheme)
	}
}

func Load() Config {
	ton := os.Getenv("SOULVAN_TON_ADDRESS")
	cfg := Config{
		RPCURL:       getenv("SOULVAN_RPC_URL", "http://127.0.0.1:8332"),
		RPCUser:      getenv("SOULVAN_RPC_USER", "bitcoinrpc"),
		RPCPass:      getenv("SOULVAN_RPC_PASS", "rpcpass"),
		RPCTimeout:   time.Duration(getenvInt("RPC_TIMEOUT", 30)) * time.Second,
		RPCRateLimit: getenvFloat("RPC_RATE_LIMIT", 0),

		Port:           getenvInt("GATEWAY_PORT", 8080),
		PollInterval:   time.Duration(getenvInt("STATS_POLL_INTERVAL", 5)) * time.Second,
		BlockCacheSize: getenvInt("BLOCK_CACHE_SIZE", 256),
		ConfigPath:     getenv("CONFIG_PATH", "config.json"),

		DefaultTonAddress: ton,
		DefaultFeeAddress: getenv("SOULVAN_FEE_ADDRESS", ton),

		APIKey:        strings.TrimSpace(os.Getenv("SOULVAN_API_KEY")),
		AllowMutating: getenvBool("ALLOW_MUTATING_BLOCKCHAIN_RPC", false),

		Debug: getenvBool("DEBUG", false),
		TUI:   getenvBool("GATEWAY_TUI", false),
	}

	// A zero interval would spin the poller.
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.RPCTimeout <= 0 {
		cfg.RPCTimeout = 30 * time.Second
	}

	if dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL")); dbURL != "" {
		if dialect, dsn, err := parseDatabaseURL(dbURL); err == nil {
			cfg.DBDialect = dialect
			cfg.DBDsn = dsn
		} else {
			fmt.Fprintf(os.Stderr, "warning: invalid DATABASE_URL, disabling persistence: %v\n", err)
		}
	}

	return cfg
}

// ListenAddr is the address the HTTP server binds.
func (c Config) ListenAddr() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

func (c Config) String() string {
	return fmt.Sprintf("rpc=%s port=%d db=%s", c.RPCURL, c.Port, c.DBDialect)
}

// DebugString returns a human-friendly configuration string with masked secrets.
func (c Config) DebugString() string {
	return fmt.Sprintf(
		"rpc=%s rpc_user=%s rpc_pass=%s port=%d poll=%s api_key=%s allow_mutating=%t db=%s dsn=%s",
		c.RPCURL,
		c.RPCUser,
		mask(c.RPCPass),
		c.Port,
		c.PollInterval,
		apiKeyState(c.APIKey),
		c.AllowMutating,
		c.DBDialect,
		maskDSN(c.DBDialect, c.DBDsn),
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}

func apiKeyState(key string) string {
	if key == "" {
		return "disabled"
	}
	return "enabled"
}

func maskDSN(dialect, dsn string) string {
	switch strings.ToLower(dialect) {
	case DatabaseSchemePostgres:
		if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
			if u.User != nil {
				username := u.User.Username()
				u.User = url.User(username)
			}
			return u.String()
		}
		// Fallback for DSN as key-value list
		parts := strings.Fields(dsn)
		for i, p := range parts {
			lower := strings.ToLower(p)
			if strings.HasPrefix(lower, "password=") {
				parts[i] = "password=***"
			}
		}
		return strings.Join(parts, " ")
	default:
		return dsn
	}
}
