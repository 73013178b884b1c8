package config

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	zerrors "github.com/zzenonn/zbucket/internal/errors"
)

const envPrefix = "ZBUCKET"

// Config holds the application configuration
type Config struct {
	LogLevel string `mapstructure:"log_level"`
	// LayoutType selects the layout strategy by tag.
	LayoutType string `mapstructure:"layout_type"`
	// LayoutBuckets is the bucket table length.
	LayoutBuckets int  `mapstructure:"layout_buckets"`
	LayoutDebug   bool `mapstructure:"layout_debug"`
	// Subvolumes is the ordered backend list ("s3://b", "gs://b", "mem://b").
	// Order decides routing, so every process must see the same list.
	Subvolumes    []string `mapstructure:"subvolumes"`
	DynamoDBTable string   `mapstructure:"dynamodb_table"`
	DataShards    int      `mapstructure:"data_shards"`
	ParityShards  int      `mapstructure:"parity_shards"`

	// SDK clients are created on first use so that a deployment that never
	// touches AWS or GCS never needs their credentials.
	awsOnce   sync.Once
	awsConfig aws.Config
	awsErr    error
	gcsOnce   sync.Once
	gcsClient *storage.Client
	gcsErr    error
}

// LoadConfig loads configuration from config.yaml, environment variables, or CLI flags
// Priority: CLI flags > Environment variables > config.yaml > defaults
func LoadConfig(configPath string, rootCmd *cobra.Command) (*Config, error) {
	v := viper.New()
	if err := setupViper(v, configPath, rootCmd); err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:      v.GetString("log_level"),
		LayoutType:    v.GetString("layout_type"),
		LayoutBuckets: v.GetInt("layout_buckets"),
		LayoutDebug:   v.GetBool("layout_debug"),
		Subvolumes:    v.GetStringSlice("subvolumes"),
		DynamoDBTable: v.GetString("dynamodb_table"),
		DataShards:    v.GetInt("data_shards"),
		ParityShards:  v.GetInt("parity_shards"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values the layout and the object service depend on.
func (c *Config) Validate() error {
	if c.LayoutType == "" {
		return zerrors.ConfigNotSetError("layout_type")
	}
	if len(c.Subvolumes) == 0 {
		return zerrors.ConfigNotSetError("subvolumes")
	}
	if c.DataShards <= 0 || c.ParityShards < 0 {
		return fmt.Errorf("invalid shard counts: %d data, %d parity", c.DataShards, c.ParityShards)
	}
	return nil
}

// setupViper configures Viper with defaults, paths, and bindings
func setupViper(v *viper.Viper, configPath string, rootCmd *cobra.Command) error {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if rootCmd != nil {
		flags := rootCmd.PersistentFlags()
		// Flags are declared with dashes; config keys use underscores.
		for _, key := range []string{"log_level", "layout_type", "layout_buckets", "layout_debug", "subvolumes", "dynamodb_table", "data_shards", "parity_shards"} {
			if f := flags.Lookup(strings.ReplaceAll(key, "_", "-")); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return fmt.Errorf("failed to bind flags: %w", err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("layout_type", "static-bucket")
	v.SetDefault("layout_buckets", 65536)
	v.SetDefault("layout_debug", false)
	v.SetDefault("subvolumes", []string{"mem://default"})
	v.SetDefault("dynamodb_table", "object_metadata")
	v.SetDefault("data_shards", 4)
	v.SetDefault("parity_shards", 2)
}

// AWSConfig loads AWS SDK configuration on first use.
func (c *Config) AWSConfig() (aws.Config, error) {
	c.awsOnce.Do(func() {
		c.awsConfig, c.awsErr = awsconfig.LoadDefaultConfig(context.Background())
		if c.awsErr != nil {
			c.awsErr = fmt.Errorf("unable to load AWS SDK config: %w", c.awsErr)
		}
	})
	return c.awsConfig, c.awsErr
}

// GCSClient creates the Google Cloud Storage client on first use.
func (c *Config) GCSClient() (*storage.Client, error) {
	c.gcsOnce.Do(func() {
		c.gcsClient, c.gcsErr = storage.NewClient(context.Background())
		if c.gcsErr != nil {
			c.gcsErr = fmt.Errorf("unable to create GCS client: %w", c.gcsErr)
		}
	})
	return c.gcsClient, c.gcsErr
}

// Close releases SDK clients that were created.
func (c *Config) Close() error {
	if c.gcsClient != nil {
		return c.gcsClient.Close()
	}
	return nil
}
