package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"hotspot/internal/domain/constants"
	"hotspot/internal/domain/entity"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
	defaultWindowInterval     = time.Minute
	DefaultClaimTimeout       = 10 * time.Second
	defaultRefetchLookback    = 24 * time.Hour
	defaultTombstoneRetention = 24 * time.Hour
	defaultSlowQueryThreshold = 200 * time.Millisecond
	defaultStoreLogLevel      = "warn"
	defaultBackoffInitial     = time.Second
	defaultBackoffMax         = 30 * time.Second
	defaultBackoffMultiplier  = 2
	defaultStatsTTL           = 5 * time.Minute
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	// Store selects the remote store implementation
	Store StoreConfig `json:"store" yaml:"store"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	SecretKey struct {
		Access string `json:"access" yaml:"access"`
	} `json:"secretKey" yaml:"secretKey"`

	// Mirror configuration for the local mirror and its derived views
	Mirror MirrorConfig `json:"mirror" yaml:"mirror"`

	// Feed configuration for the remote change feed
	Feed FeedConfig `json:"feed" yaml:"feed"`

	// Firebase configuration for push notifications
	Firebase *FirebaseConfig `json:"firebase" yaml:"firebase"`

	// Redis configuration for the promotion stats cache
	Redis *RedisConfig `json:"redis" yaml:"redis"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// StoreConfig defines which remote store backs the mirror
type StoreConfig struct {
	// Driver: "postgres" or "memory"
	Driver string `json:"driver" yaml:"driver"`

	// AutoMigrate creates the mirrored tables on start (postgres driver only)
	AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate"`

	// Statements slower than this are logged as warnings
	SlowQueryThreshold time.Duration `json:"slowQueryThreshold" yaml:"slowQueryThreshold"`

	// SQL log level: silent, error, warn or info; env.debug forces info
	LogLevel string `json:"logLevel" yaml:"logLevel"`
}

// MirrorConfig defines the behaviour of the local mirror
type MirrorConfig struct {
	// Period of the live-post visibility re-evaluation
	WindowInterval time.Duration `json:"windowInterval" yaml:"windowInterval"`

	// How long a live post stays visible after creation
	LivePostTTL time.Duration `json:"livePostTTL" yaml:"livePostTTL"`

	// Going intentions a user may hold at once
	MaxGoingIntentions int `json:"maxGoingIntentions" yaml:"maxGoingIntentions"`

	// Caller-side timeout after which a pending claim is failed
	ClaimTimeout time.Duration `json:"claimTimeout" yaml:"claimTimeout"`

	// Live posts older than this are not re-fetched
	RefetchLookback time.Duration `json:"refetchLookback" yaml:"refetchLookback"`

	// How long a removed row keeps rejecting redelivered inserts
	TombstoneRetention time.Duration `json:"tombstoneRetention" yaml:"tombstoneRetention"`
}

// FeedConfig defines the change feed the mirror follows
type FeedConfig struct {
	// Provider type: "memory" for the in-process broker or "google" for Google Pub/Sub
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Subscription name is SubscriptionPrefix + relation (for google provider)
	SubscriptionPrefix string `json:"subscriptionPrefix" yaml:"subscriptionPrefix"`

	// Relations to watch; empty means every mirrored relation
	Relations []string `json:"relations" yaml:"relations"`

	// Verify the OIDC token of push requests
	VerifyPushAuth bool `json:"verifyPushAuth" yaml:"verifyPushAuth"`

	Backoff BackoffConfig `json:"backoff" yaml:"backoff"`
}

// BackoffConfig defines the reconnect backoff of broken relation streams
type BackoffConfig struct {
	Initial    time.Duration `json:"initial" yaml:"initial"`
	Max        time.Duration `json:"max" yaml:"max"`
	Multiplier float64       `json:"multiplier" yaml:"multiplier"`
}

// FirebaseConfig defines Firebase configuration for push notifications
type FirebaseConfig struct {
	ProjectID       string `json:"projectId" yaml:"projectId"`
	CredentialsPath string `json:"credentialsPath" yaml:"credentialsPath"`
}

// RedisConfig defines the Redis connection of the stats cache
type RedisConfig struct {
	Addr     string        `json:"addr" yaml:"addr"`
	Password string        `json:"password" yaml:"password"`
	DB       int           `json:"db" yaml:"db"`
	StatsTTL time.Duration `json:"statsTTL" yaml:"statsTTL"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	if cfg.Postgres != nil {
		// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = constants.StoreDriverPostgres
	}
	if cfg.Store.SlowQueryThreshold <= 0 {
		cfg.Store.SlowQueryThreshold = defaultSlowQueryThreshold
	}
	if cfg.Store.LogLevel == "" {
		cfg.Store.LogLevel = defaultStoreLogLevel
	}
	if cfg.Feed.Provider == "" {
		cfg.Feed.Provider = constants.FeedProviderMemory
	}

	mirror := &cfg.Mirror
	if mirror.WindowInterval <= 0 {
		mirror.WindowInterval = defaultWindowInterval
	}
	if mirror.LivePostTTL <= 0 {
		mirror.LivePostTTL = entity.DefaultLivePostTTL
	}
	if mirror.MaxGoingIntentions <= 0 {
		mirror.MaxGoingIntentions = entity.DefaultMaxGoingIntentions
	}
	if mirror.ClaimTimeout <= 0 {
		mirror.ClaimTimeout = DefaultClaimTimeout
	}
	if mirror.RefetchLookback <= 0 {
		mirror.RefetchLookback = defaultRefetchLookback
	}
	if mirror.TombstoneRetention <= 0 {
		mirror.TombstoneRetention = defaultTombstoneRetention
	}

	backoff := &cfg.Feed.Backoff
	if backoff.Initial <= 0 {
		backoff.Initial = defaultBackoffInitial
	}
	if backoff.Max <= 0 {
		backoff.Max = defaultBackoffMax
	}
	if backoff.Multiplier < 1 {
		backoff.Multiplier = defaultBackoffMultiplier
	}

	if cfg.Redis != nil && cfg.Redis.StatsTTL <= 0 {
		cfg.Redis.StatsTTL = defaultStatsTTL
	}
}

func (cfg *Config) validate() error {
	switch cfg.Store.Driver {
	case constants.StoreDriverPostgres:
		if cfg.Postgres == nil {
			return errors.New("postgres section is required for the postgres store driver")
		}
	case constants.StoreDriverMemory:
	default:
		return errors.Errorf("unknown store driver: %s", cfg.Store.Driver)
	}

	switch strings.ToLower(cfg.Store.LogLevel) {
	case "", "silent", "error", "warn", "info":
	default:
		return errors.Errorf("unknown store log level: %s", cfg.Store.LogLevel)
	}

	switch cfg.Feed.Provider {
	case constants.FeedProviderGoogle:
		if cfg.Feed.ProjectID == "" {
			return errors.New("project ID is required for google feed provider")
		}
	case constants.FeedProviderMemory:
	default:
		return errors.Errorf("unknown feed provider: %s", cfg.Feed.Provider)
	}

	for _, relation := range cfg.Feed.Relations {
		if _, ok := entity.ParseKind(relation); !ok {
			return errors.Errorf("unknown feed relation: %s", relation)
		}
	}

	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
