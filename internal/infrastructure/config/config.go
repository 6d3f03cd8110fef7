package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ryzan/ryzan_service/internal/domain/entities"
)

// Wallet provider kinds
const (
	WalletProviderNone = ""
	WalletProviderRPC  = "rpc"
	WalletProviderKey  = "key"
)

// Config holds all configuration for the application
type Config struct {
	Environment    string               `mapstructure:"environment"`
	LogLevel       string               `mapstructure:"log_level"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	JWT            JWTConfig            `mapstructure:"jwt"`
	Security       SecurityConfig       `mapstructure:"security"`
	Blockchain     BlockchainConfig     `mapstructure:"blockchain"`
	Wallet         WalletConfig         `mapstructure:"wallet"`
	Rates          RatesConfig          `mapstructure:"rates"`
	Reconciliation ReconciliationConfig `mapstructure:"reconciliation"`
	Email          EmailConfig          `mapstructure:"email"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string `mapstructure:"migrations_path"`
}

type RedisConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`
	AccessTTL  int    `mapstructure:"access_token_ttl"`
	RefreshTTL int    `mapstructure:"refresh_token_ttl"`
	Issuer     string `mapstructure:"issuer"`
}

type SecurityConfig struct {
	BcryptCost           int  `mapstructure:"bcrypt_cost"`
	PasswordMinLength    int  `mapstructure:"password_min_length"`
	EnableTokenBlacklist bool `mapstructure:"enable_token_blacklist"`
}

// BlockchainConfig selects the active network and optionally overrides the
// built-in network definitions.
type BlockchainConfig struct {
	ActiveNetwork string                   `mapstructure:"active_network"`
	Networks      map[string]NetworkConfig `mapstructure:"networks"`
}

type NetworkConfig struct {
	Name           string                 `mapstructure:"name"`
	ChainID        uint64                 `mapstructure:"chain_id"`
	RPCURLs        []string               `mapstructure:"rpc_urls"`
	WebSocket      string                 `mapstructure:"websocket"`
	Explorer       string                 `mapstructure:"explorer"`
	NativeCurrency CurrencyConfig         `mapstructure:"native_currency"`
	Tokens         map[string]TokenConfig `mapstructure:"tokens"`
	NativePriceUSD float64                `mapstructure:"native_price_usd"`
}

type CurrencyConfig struct {
	Name     string `mapstructure:"name"`
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
}

type TokenConfig struct {
	Address  string `mapstructure:"address"`
	Name     string `mapstructure:"name"`
	Decimals uint8  `mapstructure:"decimals"`
	Verified *bool  `mapstructure:"verified"`
}

// WalletConfig selects how the service obtains a signer.
// "rpc" forwards wallet requests to an external signer endpoint,
// "key" signs in-process with a configured private key.
type WalletConfig struct {
	Provider            string        `mapstructure:"provider"`
	SignerURL           string        `mapstructure:"signer_url"`
	PrivateKey          string        `mapstructure:"private_key"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	PollInterval        time.Duration `mapstructure:"poll_interval"`
}

type RatesConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// ReconciliationConfig controls the job that re-checks ledger records against receipts
type ReconciliationConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Schedule    string        `mapstructure:"schedule"`
	Lookback    time.Duration `mapstructure:"lookback"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
	BatchSize   int           `mapstructure:"batch_size"`
}

type EmailConfig struct {
	Provider  string `mapstructure:"provider"` // "sendgrid" or empty to disable
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email"`
	FromName  string `mapstructure:"from_name"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 120)
	viper.SetDefault("server.rate_limit_per_min", 100)

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "ryzan")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 50)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", 3600)
	viper.SetDefault("database.migrations_path", "file://migrations")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("jwt.access_token_ttl", 3600)     // 1 hour
	viper.SetDefault("jwt.refresh_token_ttl", 2592000) // 30 days
	viper.SetDefault("jwt.issuer", "ryzan_service")

	viper.SetDefault("security.bcrypt_cost", 12)
	viper.SetDefault("security.password_min_length", 8)
	viper.SetDefault("security.enable_token_blacklist", true)

	viper.SetDefault("blockchain.active_network", entities.NetworkFuji)

	viper.SetDefault("wallet.provider", WalletProviderNone)
	viper.SetDefault("wallet.confirmation_timeout", 2*time.Minute)
	viper.SetDefault("wallet.poll_interval", time.Second)

	viper.SetDefault("rates.base_url", "https://api.frankfurter.app")
	viper.SetDefault("rates.timeout", 10*time.Second)
	viper.SetDefault("rates.cache_ttl", 5*time.Minute)
	viper.SetDefault("rates.requests_per_second", 5)

	viper.SetDefault("reconciliation.enabled", true)
	viper.SetDefault("reconciliation.schedule", "*/10 * * * *")
	viper.SetDefault("reconciliation.lookback", 72*time.Hour)
	viper.SetDefault("reconciliation.grace_period", 30*time.Minute)
	viper.SetDefault("reconciliation.batch_size", 200)

	viper.SetDefault("email.provider", "")
	viper.SetDefault("email.from_email", "no-reply@ryzan.app")
	viper.SetDefault("email.from_name", "Ryzan")

	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.sample_rate", 0.1)
}

func overrideFromEnv() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	if jwtSecret := os.Getenv("JWT_SECRET"); jwtSecret != "" {
		viper.Set("jwt.secret", jwtSecret)
	}

	if network := os.Getenv("AVALANCHE_NETWORK"); network != "" {
		viper.Set("blockchain.active_network", strings.ToLower(network))
	}

	// Wallet signer
	if provider := os.Getenv("WALLET_PROVIDER"); provider != "" {
		viper.Set("wallet.provider", strings.ToLower(provider))
	}
	if signerURL := os.Getenv("WALLET_SIGNER_URL"); signerURL != "" {
		viper.Set("wallet.signer_url", signerURL)
	}
	if privateKey := os.Getenv("WALLET_PRIVATE_KEY"); privateKey != "" {
		viper.Set("wallet.private_key", privateKey)
	}

	if sendgridKey := os.Getenv("SENDGRID_API_KEY"); sendgridKey != "" {
		viper.Set("email.api_key", sendgridKey)
		viper.Set("email.provider", "sendgrid")
	}

	if collector := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); collector != "" {
		viper.Set("tracing.collector_url", collector)
		viper.Set("tracing.enabled", true)
	}
}

func validate(config *Config) error {
	if config.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}

	if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database configuration is incomplete")
	}

	if _, err := config.Blockchain.Network(); err != nil {
		return err
	}

	switch config.Wallet.Provider {
	case WalletProviderNone:
	case WalletProviderRPC:
		if config.Wallet.SignerURL == "" {
			return fmt.Errorf("wallet.signer_url is required for the rpc wallet provider")
		}
	case WalletProviderKey:
		if config.Wallet.PrivateKey == "" {
			return fmt.Errorf("wallet.private_key is required for the key wallet provider")
		}
	default:
		return fmt.Errorf("unknown wallet provider %q", config.Wallet.Provider)
	}

	return nil
}

// Network resolves the active network: the built-in definition overlaid with
// any configured overrides. Token addresses are validated here so a bad
// deployment fails at startup instead of on the first transfer.
func (b BlockchainConfig) Network() (entities.ChainConfig, error) {
	key := strings.ToLower(b.ActiveNetwork)
	if key == "" {
		key = entities.NetworkFuji
	}

	network, known := entities.DefaultNetworks()[key]
	override, overridden := b.Networks[key]
	if !known && !overridden {
		return entities.ChainConfig{}, fmt.Errorf("unknown network %q", key)
	}
	if !known {
		network = entities.ChainConfig{Key: key, Tokens: map[string]entities.TokenDescriptor{}}
	}

	if overridden {
		network = applyOverride(network, override)
	}

	if network.ChainID == 0 {
		return entities.ChainConfig{}, fmt.Errorf("network %q: chain_id is required", key)
	}
	if len(network.RPCURLs) == 0 {
		return entities.ChainConfig{}, fmt.Errorf("network %q: at least one rpc url is required", key)
	}
	for symbol, token := range network.Tokens {
		if !common.IsHexAddress(token.Address) {
			return entities.ChainConfig{}, fmt.Errorf("network %q: token %s has invalid address %q", key, symbol, token.Address)
		}
	}

	return network, nil
}

func applyOverride(network entities.ChainConfig, o NetworkConfig) entities.ChainConfig {
	if o.Name != "" {
		network.Name = o.Name
	}
	if o.ChainID != 0 {
		network.ChainID = o.ChainID
	}
	if len(o.RPCURLs) > 0 {
		network.RPCURLs = o.RPCURLs
	}
	if o.WebSocket != "" {
		network.WebSocketURL = o.WebSocket
	}
	if o.Explorer != "" {
		network.ExplorerURL = o.Explorer
	}
	if o.NativeCurrency.Symbol != "" {
		network.NativeCurrency = entities.NativeCurrency{
			Name:     o.NativeCurrency.Name,
			Symbol:   o.NativeCurrency.Symbol,
			Decimals: o.NativeCurrency.Decimals,
		}
	}
	if o.NativePriceUSD > 0 {
		network.NativePriceUSD = o.NativePriceUSD
	}

	tokens := make(map[string]entities.TokenDescriptor, len(network.Tokens)+len(o.Tokens))
	for symbol, t := range network.Tokens {
		tokens[symbol] = t
	}
	for symbol, t := range o.Tokens {
		symbol = strings.ToUpper(symbol)
		existing := tokens[symbol]
		existing.Symbol = symbol
		existing.Address = t.Address
		if t.Name != "" {
			existing.Name = t.Name
		}
		if t.Decimals != 0 {
			existing.Decimals = t.Decimals
		}
		// An address supplied by the operator counts as verified unless stated otherwise
		existing.Verified = t.Verified == nil || *t.Verified
		tokens[symbol] = existing
	}
	network.Tokens = tokens

	return network
}
