package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/driftline/engine/pkg/core"
)

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds the embedded SQLite backend settings
type SQLiteConfig struct {
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the run storage backend
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// TrackConfig names the course to load and where course files live
type TrackConfig struct {
	Dir    string `json:"dir" mapstructure:"dir"`
	Course string `json:"course" mapstructure:"course"`
}

// TelemetryConfig controls per-run sample recording
type TelemetryConfig struct {
	Enabled     bool `json:"enabled" mapstructure:"enabled"`
	SampleEvery int  `json:"sampleEvery" mapstructure:"sampleEvery"`
}

// InfluxConfig holds the InfluxDB metrics sink settings
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
	Bucket   string `json:"bucket" mapstructure:"bucket"`
}

// URL assembles the server URL from protocol, host and port.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GraylogConfig holds the GELF log forwarding settings
type GraylogConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// OTelConfig holds the OpenTelemetry export settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// APIConfig holds the leaderboard server settings
type APIConfig struct {
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file. Any key can be
// overridden through the environment with the DRIFTLINE_ prefix, e.g.
// DRIFTLINE_STORAGE_TYPE=sqlite.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("vehicle.maxSpeed", 40.0)
	viper.SetDefault("vehicle.acceleration", 12.0)
	viper.SetDefault("vehicle.deceleration", 10.0)
	viper.SetDefault("vehicle.brakeForce", 20.0)
	viper.SetDefault("vehicle.steerSpeed", 5.0)
	viper.SetDefault("vehicle.maxSteerAngle", 0.05)
	viper.SetDefault("vehicle.friction", 6.0)
	viper.SetDefault("vehicle.driftFriction", 0.98)
	viper.SetDefault("vehicle.driftMultiplier", 2.5)

	viper.SetDefault("geometry.width", 1.8)
	viper.SetDefault("geometry.height", 1.3)
	viper.SetDefault("geometry.length", 4.2)
	viper.SetDefault("geometry.groundClearance", 0.15)

	viper.SetDefault("camera.distance", 9.0)
	viper.SetDefault("camera.height", 4.5)
	viper.SetDefault("camera.lookAhead", 6.0)
	viper.SetDefault("camera.smooth", 4.0)

	viper.SetDefault("track.dir", "./courses")
	viper.SetDefault("track.course", "demo")

	viper.SetDefault("input.bindings", map[string]string{})

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.sampleEvery", 6)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./runs")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "driftline")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "driftline-metrics")
	viper.SetDefault("influx.bucket", "driftline")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "driftline-engine")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetEnvPrefix("driftline")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName("driftline.cfg.json")
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

// GetVehicleTuning returns the handling model constants.
func GetVehicleTuning() core.VehicleTuning {
	return core.VehicleTuning{
		MaxSpeed:        float32(viper.GetFloat64("vehicle.maxSpeed")),
		Acceleration:    float32(viper.GetFloat64("vehicle.acceleration")),
		Deceleration:    float32(viper.GetFloat64("vehicle.deceleration")),
		BrakeForce:      float32(viper.GetFloat64("vehicle.brakeForce")),
		SteerSpeed:      float32(viper.GetFloat64("vehicle.steerSpeed")),
		MaxSteerAngle:   float32(viper.GetFloat64("vehicle.maxSteerAngle")),
		Friction:        float32(viper.GetFloat64("vehicle.friction")),
		DriftFriction:   float32(viper.GetFloat64("vehicle.driftFriction")),
		DriftMultiplier: float32(viper.GetFloat64("vehicle.driftMultiplier")),
	}
}

// GetVehicleGeometry returns the collision body, a box centered on the
// vehicle origin at ground level.
func GetVehicleGeometry() core.VehicleGeometry {
	w := float32(viper.GetFloat64("geometry.width"))
	h := float32(viper.GetFloat64("geometry.height"))
	l := float32(viper.GetFloat64("geometry.length"))
	return core.VehicleGeometry{
		BoundsMin:       core.Vec3{-w / 2, 0, -l / 2},
		BoundsMax:       core.Vec3{w / 2, h, l / 2},
		GroundClearance: float32(viper.GetFloat64("geometry.groundClearance")),
	}
}

// GetCameraTuning returns the chase camera constants.
func GetCameraTuning() core.CameraTuning {
	return core.CameraTuning{
		Distance:  float32(viper.GetFloat64("camera.distance")),
		Height:    float32(viper.GetFloat64("camera.height")),
		LookAhead: float32(viper.GetFloat64("camera.lookAhead")),
		Smooth:    float32(viper.GetFloat64("camera.smooth")),
	}
}

// GetTrackConfig returns the course selection settings.
func GetTrackConfig() TrackConfig {
	return TrackConfig{
		Dir:    viper.GetString("track.dir"),
		Course: viper.GetString("track.course"),
	}
}

// GetInputBindings returns the raw key -> control map from config.
// An empty map means the stock layout.
func GetInputBindings() map[string]string {
	return viper.GetStringMapString("input.bindings")
}

// GetTelemetryConfig returns the sample recording settings.
func GetTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:     viper.GetBool("telemetry.enabled"),
		SampleEvery: viper.GetInt("telemetry.sampleEvery"),
	}
}

// GetStorageConfig returns the run storage backend settings.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetInfluxConfig returns the InfluxDB metrics sink settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Protocol: viper.GetString("influx.protocol"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
	}
}

// GetGraylogConfig returns the GELF log forwarding settings.
func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry export settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetAPIConfig returns the leaderboard server settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}
