// Package config loads a cluster node's YAML configuration via viper,
// following the same AddConfigPath/mapstructure-tagged-struct/
// AutomaticEnv layering the orbas1-Synnergy pack repo's pkg/config uses,
// adapted to this node's own settings (cluster membership, storage,
// payments, preprocessing, and execution-engine limits) rather than a
// blockchain node's.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is a single node's full configuration.
type Config struct {
	Node struct {
		PartyID   uint32 `mapstructure:"party_id"`
		Threshold uint   `mapstructure:"threshold"`
		Listen    string `mapstructure:"listen"`
	} `mapstructure:"node"`

	Runtime struct {
		MaxConcurrentActions uint `mapstructure:"max_concurrent_actions"` // 0 == unlimited
		GRPC                 struct {
			BindEndpoint string `mapstructure:"bind_endpoint"`
			TLS          struct {
				Cert   string `mapstructure:"cert"`
				Key    string `mapstructure:"key"`
				CACert string `mapstructure:"ca_cert"`
			} `mapstructure:"tls"`
			RateLimit struct {
				Bucket      string `mapstructure:"bucket"` // "second", "minute", "hour"
				MaxPerBucket uint   `mapstructure:"max_per_bucket"`
			} `mapstructure:"rate_limit"`
		} `mapstructure:"grpc"`
	} `mapstructure:"runtime"`

	Cluster struct {
		Peers           []PeerConfig `mapstructure:"peers"`
		Leader          uint32       `mapstructure:"leader"`
		Prime           string       `mapstructure:"prime"` // "Safe64Bits", "Safe128Bits", "Safe256Bits"
		PolynomialDegree uint        `mapstructure:"polynomial_degree"`
		Kappa           uint         `mapstructure:"kappa"`
	} `mapstructure:"cluster"`

	Identity struct {
		PrivateKey struct {
			Kind string `mapstructure:"kind"` // "ed25519", "secp256k1"
			Seed string `mapstructure:"seed"`
			Hex  string `mapstructure:"key_hex"`
			Path string `mapstructure:"path"`
		} `mapstructure:"private_key"`
	} `mapstructure:"identity"`

	Storage struct {
		SqlitePath string `mapstructure:"sqlite_path"`
		DBURL      string `mapstructure:"db_url"`
		BlobKind   string `mapstructure:"blob_kind"` // "in_memory", "filesystem", "aws_s3"
		BlobPath   string `mapstructure:"blob_path"`
		S3Bucket   string `mapstructure:"s3_bucket"`
		S3Region   string `mapstructure:"s3_region"`
		S3Endpoint string `mapstructure:"s3_endpoint_url"`
		S3AllowHTTP bool  `mapstructure:"allow_http"`
	} `mapstructure:"storage"`

	Payments struct {
		RPCEndpoint                 string            `mapstructure:"rpc_endpoint"`
		QuoteTTL                    time.Duration      `mapstructure:"quote_ttl"`
		ReceiptTTL                  time.Duration      `mapstructure:"receipt_ttl"`
		MinimumAddFundsPayment      uint64             `mapstructure:"minimum_add_funds_payment"`
		AccountBalanceExpirationDays uint              `mapstructure:"account_balance_expiration_days"`
		PrefundedAccounts           []string           `mapstructure:"prefunded_accounts"`
		DollarTokenConversion       struct {
			CoingeckoAPIKey string `mapstructure:"coingecko_api_key"`
			CoinID          string `mapstructure:"coin_id"`
		} `mapstructure:"dollar_token_conversion"`
		DollarTokenConversionFixed float64           `mapstructure:"dollar_token_conversion_fixed"`
		Pricing                    map[string]uint64 `mapstructure:"pricing"`
	} `mapstructure:"payments"`

	Preprocessing struct {
		// Elements is keyed by ElementKind name (compare,
		// division_integer_secret, modulo, public_output_equality, truncpr,
		// trunc, equals_integer_secret, random_integer, random_boolean).
		Elements map[string]ElementPreprocessingConfig `mapstructure:"elements"`
	} `mapstructure:"network_preprocessing"`

	AuxiliaryMaterial struct {
		CGGMP21AuxInfo struct {
			Enabled bool   `mapstructure:"enabled"`
			Version string `mapstructure:"version"`
		} `mapstructure:"cggmp21_aux_info"`
	} `mapstructure:"network_auxiliary_material"`

	MaxPayloadSize uint64 `mapstructure:"network_max_payload_size"`

	ExecutionEngine struct {
		MaxProtocolMessagesCount uint `mapstructure:"max_protocol_messages_count"`
	} `mapstructure:"execution_engine"`

	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`

	Metrics struct {
		ListenAddr               string            `mapstructure:"listen_address"`
		ProcessCollectorInterval time.Duration     `mapstructure:"process_collector_interval"`
		StaticLabels             map[string]string `mapstructure:"static_labels"`
	} `mapstructure:"metrics"`
}

// ElementPreprocessingConfig tunes one ElementKind's batch generation.
type ElementPreprocessingConfig struct {
	BatchSize          uint64 `mapstructure:"batch_size"`
	GenerationThreshold uint64 `mapstructure:"generation_threshold"`
	TargetOffsetJump   uint64 `mapstructure:"target_offset_jump"`
}

// PeerConfig names one other cluster member.
type PeerConfig struct {
	PartyID uint32 `mapstructure:"party_id"`
	Addr    string `mapstructure:"addr"`
}

// AppConfig is the process-wide loaded configuration, populated by Load.
var AppConfig Config

func setDefaults() {
	viper.SetDefault("metrics.process_collector_interval", 30*time.Second)
	viper.SetDefault("payments.quote_ttl", 24*time.Hour)
	viper.SetDefault("payments.receipt_ttl", 24*time.Hour)
	viper.SetDefault("payments.minimum_add_funds_payment", 1000)
	viper.SetDefault("payments.account_balance_expiration_days", 30)
	viper.SetDefault("payments.dollar_token_conversion_fixed", 1.0)
	viper.SetDefault("network_max_payload_size", 6*1024*1024)
}

// Load reads config/default.yaml and, if env is non-empty, merges
// config/<env>.yaml on top of it, then applies environment variable
// overrides via viper.AutomaticEnv. Nested keys are addressed on the
// command line and in YAML with dots (runtime.grpc.rate_limit.bucket) and
// in the environment with double underscores
// (NILVM_RUNTIME__GRPC__RATE_LIMIT__BUCKET),
// per SPEC_FULL.md's env-override convention.
func Load(env string) (*Config, error) {
	setDefaults()

	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("loading default config: %w", err)
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merging %s config: %w", env, err)
		}
	}

	viper.SetEnvPrefix("NILVM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &AppConfig, nil
}
