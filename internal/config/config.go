// Package config loads service configuration from an optional config file
// and GDT_-prefixed environment variables.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"logLevel"`

	SessionSecret string `mapstructure:"sessionSecret"`

	ScratchRoot     string        `mapstructure:"scratchRoot"`
	DatabasePath    string        `mapstructure:"databasePath"`
	MetadataTimeout time.Duration `mapstructure:"metadataTimeout"`
	AddReadyWindow  time.Duration `mapstructure:"addReadyWindow"`
	PushInterval    time.Duration `mapstructure:"pushInterval"`
	DisableDHT      bool          `mapstructure:"disableDHT"`

	Drive struct {
		Endpoint  string        `mapstructure:"endpoint"`
		AccessKey string        `mapstructure:"accessKey"`
		SecretKey string        `mapstructure:"secretKey"`
		Bucket    string        `mapstructure:"bucket"`
		Region    string        `mapstructure:"region"`
		Secure    bool          `mapstructure:"secure"`
		BrowseURL string        `mapstructure:"browseUrl"`
		Root      string        `mapstructure:"root"`
		OpTimeout time.Duration `mapstructure:"opTimeout"`
	} `mapstructure:"drive"`

	Auth struct {
		// Provider selects the identity collaborator; "static" signs every
		// login in as the configured dev user.
		Provider    string `mapstructure:"provider"`
		UserID      string `mapstructure:"userId"`
		DisplayName string `mapstructure:"displayName"`
	} `mapstructure:"auth"`

	Notify struct {
		WebhookURL    string `mapstructure:"webhookUrl"`
		PushbulletKey string `mapstructure:"pushbulletKey"`
	} `mapstructure:"notify"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`

	Janitor struct {
		Enabled  bool   `mapstructure:"enabled"`
		Schedule string `mapstructure:"schedule"`
	} `mapstructure:"janitor"`
}

// Load reads configuration. configFile may be empty, in which case defaults
// and environment variables apply.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("logLevel", "info")
	v.SetDefault("sessionSecret", "")
	v.SetDefault("scratchRoot", "/tmp/google-drive-torrent")
	v.SetDefault("databasePath", "data/google-drive-torrent.db")
	v.SetDefault("metadataTimeout", 5*time.Minute)
	v.SetDefault("addReadyWindow", 3*time.Second)
	v.SetDefault("pushInterval", time.Second)
	v.SetDefault("disableDHT", false)
	v.SetDefault("drive.secure", true)
	v.SetDefault("drive.bucket", "google-drive-torrent")
	v.SetDefault("drive.root", "torrents")
	v.SetDefault("drive.opTimeout", 10*time.Minute)
	v.SetDefault("auth.provider", "static")
	v.SetDefault("auth.userId", "dev")
	v.SetDefault("auth.displayName", "Developer")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("janitor.enabled", true)
	v.SetDefault("janitor.schedule", "@hourly")

	v.SetEnvPrefix("GDT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "could not read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal config")
	}
	return &cfg, nil
}
