package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "photomap.cfg.json"

// PhotosConfig holds photo search API settings
type PhotosConfig struct {
	Endpoint  string        `json:"endpoint" mapstructure:"endpoint"`
	ClientID  string        `json:"clientId" mapstructure:"clientId"`
	Radius    int           `json:"radius" mapstructure:"radius"`
	Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
	AutoClear time.Duration `json:"autoClear" mapstructure:"autoClear"`
}

// MapConfig holds the initial view and marker settings
type MapConfig struct {
	Lat              float64
	Lng              float64
	Zoom             int
	IconSize         int
	CancelSuperseded bool
}

// SurfaceConfig holds the map widget bridge settings
type SurfaceConfig struct {
	URL    string
	Secret string
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./photomaplogs")

	viper.SetDefault("photos.endpoint", "https://api.instagram.com/v1/media/search")
	viper.SetDefault("photos.clientId", "")
	viper.SetDefault("photos.radius", 5000)
	viper.SetDefault("photos.timeout", "30s")

	viper.SetDefault("notification.autoClear", "3s")

	viper.SetDefault("map.center.lat", 6.9255413357207045)
	viper.SetDefault("map.center.lng", 79.86969523291009)
	viper.SetDefault("map.zoom", 12)
	viper.SetDefault("map.iconSize", 75)
	viper.SetDefault("map.cancelSuperseded", false)

	viper.SetDefault("surface.url", "ws://localhost:8080/widget")
	viper.SetDefault("surface.secret", "")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "photomap-metrics")
	viper.SetDefault("influx.bucket", "photomap")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "photomap")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.interval", "5s")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value. Strings like "3s" are parsed.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetPhotosConfig returns the photo search settings.
func GetPhotosConfig() PhotosConfig {
	return PhotosConfig{
		Endpoint:  viper.GetString("photos.endpoint"),
		ClientID:  viper.GetString("photos.clientId"),
		Radius:    viper.GetInt("photos.radius"),
		Timeout:   viper.GetDuration("photos.timeout"),
		AutoClear: viper.GetDuration("notification.autoClear"),
	}
}

// GetMapConfig returns the map settings.
func GetMapConfig() MapConfig {
	return MapConfig{
		Lat:              viper.GetFloat64("map.center.lat"),
		Lng:              viper.GetFloat64("map.center.lng"),
		Zoom:             viper.GetInt("map.zoom"),
		IconSize:         viper.GetInt("map.iconSize"),
		CancelSuperseded: viper.GetBool("map.cancelSuperseded"),
	}
}

// GetSurfaceConfig returns the widget bridge settings.
func GetSurfaceConfig() SurfaceConfig {
	return SurfaceConfig{
		URL:    viper.GetString("surface.url"),
		Secret: viper.GetString("surface.secret"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
