// Package config loads cspdemo.cfg.json through viper and exposes typed
// views of its sections.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up by Load.
const FileName = "cspdemo.cfg.json"

// DemoConfig selects which pattern the demo runs and how.
type DemoConfig struct {
	Pattern     string        `json:"pattern" mapstructure:"pattern"`
	Count       int           `json:"count" mapstructure:"count"`
	ChainLength int           `json:"chainLength" mapstructure:"chainLength"`
	Producers   int           `json:"producers" mapstructure:"producers"`
	PerProducer int           `json:"perProducer" mapstructure:"perProducer"`
	Capacity    int           `json:"capacity" mapstructure:"capacity"`
	Executor    bool          `json:"executor" mapstructure:"executor"`
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
}

// MonitorConfig controls the channel status monitor.
type MonitorConfig struct {
	Enabled   bool          `json:"enabled" mapstructure:"enabled"`
	Interval  time.Duration `json:"interval" mapstructure:"interval"`
	StatusDir string        `json:"statusDir" mapstructure:"statusDir"`
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled        bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName    string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout   time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// InfluxConfig holds InfluxDB settings.
type InfluxConfig struct {
	Enabled    bool   `json:"enabled" mapstructure:"enabled"`
	Protocol   string `json:"protocol" mapstructure:"protocol"`
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Token      string `json:"token" mapstructure:"token"`
	Org        string `json:"org" mapstructure:"org"`
	BackupPath string `json:"backupPath" mapstructure:"backupPath"`
}

// GraylogConfig holds GELF output settings.
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./csplogs")

	viper.SetDefault("demo.pattern", "all")
	viper.SetDefault("demo.count", 10)
	viper.SetDefault("demo.chainLength", 1000)
	viper.SetDefault("demo.producers", 4)
	viper.SetDefault("demo.perProducer", 25)
	viper.SetDefault("demo.capacity", 8)
	viper.SetDefault("demo.executor", true)
	viper.SetDefault("demo.timeout", "30s")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusDir", "")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "cspdemo")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "10s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "csp")
	viper.SetDefault("influx.backupPath", "./csplogs/influx_backup.lp.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// GetDemoConfig returns the demo section.
func GetDemoConfig() DemoConfig {
	return DemoConfig{
		Pattern:     viper.GetString("demo.pattern"),
		Count:       viper.GetInt("demo.count"),
		ChainLength: viper.GetInt("demo.chainLength"),
		Producers:   viper.GetInt("demo.producers"),
		PerProducer: viper.GetInt("demo.perProducer"),
		Capacity:    viper.GetInt("demo.capacity"),
		Executor:    viper.GetBool("demo.executor"),
		Timeout:     viper.GetDuration("demo.timeout"),
	}
}

// GetMonitorConfig returns the monitor section.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:   viper.GetBool("monitor.enabled"),
		Interval:  viper.GetDuration("monitor.interval"),
		StatusDir: viper.GetString("monitor.statusDir"),
	}
}

// GetOTelConfig returns the otel section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetInfluxConfig returns the influx section.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Protocol:   viper.GetString("influx.protocol"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// GetGraylogConfig returns the graylog section.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
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
