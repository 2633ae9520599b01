package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultRemoteURL = "http://localhost:8000/api/objects"

// Backend names
const (
	BackendHTTP     = "http"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Server ServerConfig `json:"server" yaml:"server"`
	Remote RemoteConfig `json:"remote" yaml:"remote"`
	Upload UploadConfig `json:"upload" yaml:"upload"`
	Render RenderConfig `json:"render" yaml:"render"`
	Output OutputConfig `json:"output" yaml:"output"`

	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// ServerConfig holds the HTTP listener settings
type ServerConfig struct {
	Addr        string   `json:"addr" yaml:"addr"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`

	// MaxWait caps long-poll requests on the image list
	MaxWait Duration `json:"max_wait" yaml:"max_wait"`
}

// RemoteConfig selects and configures the layout backend
type RemoteConfig struct {
	Backend string `json:"backend" yaml:"backend"`
	URL     string `json:"url" yaml:"url"`
	Model   string `json:"model,omitempty" yaml:"model,omitempty"`
	Token   string `json:"token,omitempty" yaml:"token,omitempty"`

	// RateLimit is the number of remote calls per minute, 0 for no limit
	RateLimit int `json:"rate_limit,omitempty" yaml:"rate_limit,omitempty"`

	Timeout Duration `json:"timeout" yaml:"timeout"`
}

// UploadConfig holds the upload limits
type UploadConfig struct {
	MaxFileSizeMB    int      `json:"max_file_size_mb" yaml:"max_file_size_mb"`
	SupportedFormats []string `json:"supported_formats" yaml:"supported_formats"`

	// MaxRequestSizeMB bounds a whole multipart upload request
	MaxRequestSizeMB int `json:"max_request_size_mb" yaml:"max_request_size_mb"`
}

// RenderConfig holds defaults for annotated previews
type RenderConfig struct {
	Width    int     `json:"width" yaml:"width"`
	Height   int     `json:"height" yaml:"height"`
	MinScale float64 `json:"min_scale" yaml:"min_scale"`
	MaxScale float64 `json:"max_scale" yaml:"max_scale"`
	Format   string  `json:"format" yaml:"format"`
	Quality  int     `json:"quality" yaml:"quality"`

	// MaxWidth and MaxHeight cap every rendered output, requested or not
	MaxWidth  int `json:"max_width" yaml:"max_width"`
	MaxHeight int `json:"max_height" yaml:"max_height"`
}

// OutputConfig holds configuration for batch output
type OutputConfig struct {
	Dir      string `json:"dir" yaml:"dir"`
	MediaDir string `json:"media_dir" yaml:"media_dir"`
}

// TelemetryConfig controls logging and the OTLP exporters
type TelemetryConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Debug   bool `json:"debug" yaml:"debug"`

	// Protocol is grpc or http; empty leaves it to OTEL_EXPORTER_OTLP_PROTOCOL
	Protocol string `json:"protocol,omitempty" yaml:"protocol,omitempty"`

	ServiceName    string   `json:"service_name,omitempty" yaml:"service_name,omitempty"`
	SampleRatio    float64  `json:"sample_ratio" yaml:"sample_ratio"`
	MetricInterval Duration `json:"metric_interval" yaml:"metric_interval"`
}

// Duration is a time.Duration written as "30s" in config files
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid duration %s", data)
		}
		*d = Duration(time.Duration(n) * time.Second)
		return nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}

	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	v, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}

	*d = Duration(v)
	return nil
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
			MaxWait:     Duration(30 * time.Second),
		},
		Remote: RemoteConfig{
			Backend: BackendHTTP,
			URL:     DefaultRemoteURL,
			Timeout: Duration(5 * time.Minute),
		},
		Upload: UploadConfig{
			MaxFileSizeMB:    25,
			SupportedFormats: []string{"jpg", "jpeg", "png", "gif", "webp"},
			MaxRequestSizeMB: 100,
		},
		Render: RenderConfig{
			Width:    1200,
			MinScale: 0.5,
			MaxScale: 5,
			Format:   "png",
			Quality:  90,

			MaxWidth:  4096,
			MaxHeight: 4096,
		},
		Output: OutputConfig{
			Dir:      "./output",
			MediaDir: "media",
		},
		Telemetry: TelemetryConfig{
			SampleRatio:    1,
			MetricInterval: Duration(10 * time.Second),
		},
	}
}

// LoadFromFile loads configuration from a JSON or YAML file on top of the
// defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()

	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON or YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error

	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides settings from LAYOUT_* environment variables
func (c *Config) ApplyEnv() {
	if v := os.Getenv("LAYOUT_API_URL"); v != "" {
		c.Remote.URL = v
	}

	if v := os.Getenv("LAYOUT_BACKEND"); v != "" {
		c.Remote.Backend = strings.ToLower(v)
	}

	if v := os.Getenv("LAYOUT_MODEL"); v != "" {
		c.Remote.Model = v
	}

	if v := os.Getenv("LAYOUT_TOKEN"); v != "" {
		c.Remote.Token = v
	}

	if v := os.Getenv("LAYOUT_ADDR"); v != "" {
		c.Server.Addr = v
	}

	if os.Getenv("TELEMETRY") != "" {
		c.Telemetry.Enabled = true
	}

	if os.Getenv("DEBUG") != "" {
		c.Telemetry.Debug = true
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !slices.Contains([]string{BackendHTTP, BackendOllama, BackendLlamaCpp}, c.Remote.Backend) {
		return fmt.Errorf("remote.backend must be one of http, ollama, llamacpp")
	}

	u, err := url.Parse(c.Remote.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("remote.url must be an absolute URL")
	}

	if c.Remote.RateLimit < 0 {
		return fmt.Errorf("remote.rate_limit cannot be negative")
	}

	if c.Upload.MaxFileSizeMB < 1 {
		return fmt.Errorf("upload.max_file_size_mb must be positive")
	}

	if c.Upload.MaxRequestSizeMB < c.Upload.MaxFileSizeMB {
		return fmt.Errorf("upload.max_request_size_mb cannot be below upload.max_file_size_mb")
	}

	if len(c.Upload.SupportedFormats) == 0 {
		return fmt.Errorf("upload.supported_formats cannot be empty")
	}

	if c.Render.Width < 0 || c.Render.Height < 0 {
		return fmt.Errorf("render.width and render.height cannot be negative")
	}

	if c.Render.MaxWidth <= 0 || c.Render.MaxHeight <= 0 {
		return fmt.Errorf("render.max_width and render.max_height must be positive")
	}

	if c.Render.Width > c.Render.MaxWidth || c.Render.Height > c.Render.MaxHeight {
		return fmt.Errorf("render.width and render.height cannot exceed render.max_width and render.max_height")
	}

	if c.Render.MinScale <= 0 || c.Render.MaxScale < c.Render.MinScale {
		return fmt.Errorf("render.min_scale must be positive and not above render.max_scale")
	}

	if !slices.Contains([]string{"png", "jpg", "jpeg", "webp"}, c.Render.Format) {
		return fmt.Errorf("render.format must be png, jpg or webp")
	}

	if c.Render.Quality < 1 || c.Render.Quality > 100 {
		return fmt.Errorf("render.quality must be between 1 and 100")
	}

	if !slices.Contains([]string{"", "grpc", "http"}, c.Telemetry.Protocol) {
		return fmt.Errorf("telemetry.protocol must be grpc or http")
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1")
	}

	if c.Telemetry.MetricInterval <= 0 {
		return fmt.Errorf("telemetry.metric_interval must be positive")
	}

	return nil
}

// MaxFileSize returns the upload limit in bytes
func (c *Config) MaxFileSize() int64 {
	return int64(c.Upload.MaxFileSizeMB) * 1024 * 1024
}

// MaxRequestSize returns the upload request limit in bytes
func (c *Config) MaxRequestSize() int64 {
	return int64(c.Upload.MaxRequestSizeMB) * 1024 * 1024
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(home, ".config", "layout-viewer", "config.yaml")
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}
