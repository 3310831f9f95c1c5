package config

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds runtime configuration for the API service.
type Config struct {
	ListenAddr         string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	DefaultScanLimit   int
	DefaultSearchLimit int
	MaxLimit           int
	AllowedOrigin      string

	LogLevel  string
	LogFormat string

	DBEnabled      bool
	DBDriver       string
	DBSQLitePath   string
	DBHost         string
	DBPort         int
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBConnTimeout  time.Duration
	DBQueryTimeout time.Duration

	CHEnabled        bool
	CHAPIKey         string
	CHBaseURL        string
	CHTimeout        time.Duration
	CHCacheTTL       time.Duration
	CHStructureDepth int
}

// FromEnv loads configuration from environment variables with sensible defaults.
func FromEnv() Config {
	loadConfigDefaultsFromFile()
	loadSecretsDefaultsFromFile()

	driver := strings.ToLower(getEnv("APP_DB_DRIVER", "sqlite"))
	return Config{
		ListenAddr:         getEnv("APP_LISTEN_ADDR", ":8000"),
		ReadTimeout:        time.Duration(getEnvInt("APP_READ_TIMEOUT_SEC", 10)) * time.Second,
		WriteTimeout:       time.Duration(getEnvInt("APP_WRITE_TIMEOUT_SEC", 20)) * time.Second,
		ShutdownTimeout:    time.Duration(getEnvInt("APP_SHUTDOWN_TIMEOUT_SEC", 10)) * time.Second,
		DefaultScanLimit:   getEnvInt("APP_DEFAULT_SCAN_LIMIT", 50),
		DefaultSearchLimit: getEnvInt("APP_DEFAULT_SEARCH_LIMIT", 10),
		MaxLimit:           getEnvInt("APP_MAX_LIMIT", 500),
		AllowedOrigin:      getEnv("APP_CORS_ALLOWED_ORIGIN", "*"),
		LogLevel:           getEnv("APP_LOG_LEVEL", "info"),
		LogFormat:          getEnv("APP_LOG_FORMAT", "json"),
		DBEnabled:          getEnvBool("APP_DB_ENABLED", true),
		DBDriver:           driver,
		DBSQLitePath:       getEnv("APP_DB_SQLITE_PATH", "vantage.db"),
		DBHost:             getEnv("APP_DB_HOST", "127.0.0.1"),
		DBPort:             getEnvInt("APP_DB_PORT", defaultPort(driver)),
		DBUser:             getEnv("APP_DB_USER", "vantage"),
		DBPassword:         getEnv("APP_DB_PASSWORD", ""),
		DBName:             getEnv("APP_DB_NAME", "vantage"),
		DBSSLMode:          getEnv("APP_DB_SSLMODE", "disable"),
		DBConnTimeout:      time.Duration(getEnvInt("APP_DB_CONN_TIMEOUT_SEC", 5)) * time.Second,
		DBQueryTimeout:     time.Duration(getEnvInt("APP_DB_QUERY_TIMEOUT_SEC", 10)) * time.Second,
		CHAPIKey:           getEnv("COMPANIES_HOUSE_KEY", getEnv("APP_CH_API_KEY", "")),
		CHEnabled:          getEnvBool("APP_CH_ENABLED", true),
		CHBaseURL:          getEnv("APP_CH_BASE_URL", "https://api.company-information.service.gov.uk"),
		CHTimeout:          time.Duration(getEnvInt("APP_CH_TIMEOUT_SEC", 8)) * time.Second,
		CHCacheTTL:         time.Duration(getEnvInt("APP_CH_CACHE_TTL_SEC", 900)) * time.Second,
		CHStructureDepth:   getEnvInt("APP_CH_STRUCTURE_DEPTH", 2),
	}
}

// RegistryEnabled reports whether the Companies House integration can be used.
func (c Config) RegistryEnabled() bool {
	return c.CHEnabled && strings.TrimSpace(c.CHAPIKey) != ""
}

func defaultPort(driver string) int {
	switch driver {
	case "postgres", "pgx":
		return 5432
	default:
		return 3306
	}
}

func loadConfigDefaultsFromFile() {
	bootstrapCandidates := []string{
		"./vantage.env",
		"./vantage-engine.env",
		"/etc/default/vantage",
	}

	for _, candidate := range bootstrapCandidates {
		abs := candidate
		if !filepath.IsAbs(candidate) {
			if wd, err := os.Getwd(); err == nil {
				abs = filepath.Join(wd, candidate)
			}
		}
		_ = applyEnvDefaultsFromFile(abs)
	}

	candidates := make([]string, 0, 2)
	if explicit := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	candidates = append(candidates, "/etc/vantage/config.env")

	for _, candidate := range candidates {
		if err := applyEnvDefaultsFromFile(candidate); err == nil {
			return
		}
	}
}

func loadSecretsDefaultsFromFile() {
	candidates := make([]string, 0, 3)
	if explicit := strings.TrimSpace(os.Getenv("APP_SECRETS_FILE")); explicit != "" {
		candidates = append(candidates, explicit)
	}
	if credDir := strings.TrimSpace(os.Getenv("CREDENTIALS_DIRECTORY")); credDir != "" {
		credName := strings.TrimSpace(os.Getenv("APP_SECRETS_CREDENTIAL_NAME"))
		if credName == "" {
			credName = "vantage-secrets"
		}
		candidates = append(candidates, filepath.Join(credDir, credName))
	}
	candidates = append(candidates, "/etc/vantage/secrets.env")
	for _, candidate := range candidates {
		if err := applyEnvDefaultsFromFile(candidate); err == nil {
			return
		}
	}
}

// applyEnvDefaultsFromFile sets KEY=VALUE pairs from path without overriding the real environment.
func applyEnvDefaultsFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if key == "" {
			continue
		}

		if len(val) >= 2 {
			if (val[0] == '"' && val[len(val)-1] == '"') || (val[0] == '\'' && val[len(val)-1] == '\'') {
				val = val[1 : len(val)-1]
			}
		}

		if os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}

	return scanner.Err()
}

// DSN returns the database/sql data source name for the configured driver.
func (c Config) DSN() (string, error) {
	switch c.DBDriver {
	case "sqlite":
		if strings.TrimSpace(c.DBSQLitePath) == "" {
			return "", fmt.Errorf("sqlite path required (set APP_DB_SQLITE_PATH)")
		}
		return c.DBSQLitePath, nil
	case "mysql":
		return c.MySQLDSN(), nil
	case "postgres", "pgx":
		return c.PostgresDSN(), nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
}

// MySQLDSN returns a mysql driver DSN with safe defaults for TCP access.
func (c Config) MySQLDSN() string {
	params := url.Values{}
	params.Set("parseTime", "true")
	params.Set("timeout", c.DBConnTimeout.String())
	params.Set("readTimeout", c.DBQueryTimeout.String())
	params.Set("writeTimeout", c.DBQueryTimeout.String())
	params.Set("charset", "utf8mb4")
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, params.Encode())
}

// PostgresDSN returns a pgx URL-style connection string.
func (c Config) PostgresDSN() string {
	params := url.Values{}
	params.Set("sslmode", c.DBSSLMode)
	params.Set("connect_timeout", strconv.Itoa(int(c.DBConnTimeout.Seconds())))
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: params.Encode(),
	}
	return u.String()
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvBool(key string, def bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return parsed
}
