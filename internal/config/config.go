package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yegors/overhead/internal/classify"
	"github.com/yegors/overhead/internal/geo"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Observer ObserverConfig `toml:"observer"` // Where the observer stands and what counts as overhead
	Tracking TrackingConfig `toml:"tracking"` // Flight table ageing and callsign lookups
	Stream   StreamConfig   `toml:"stream"`   // Which position source feeds the engine
	ADSB     ADSBConfig     `toml:"adsb"`     // ADS-B JSON poller settings
	Replay   ReplayConfig   `toml:"replay"`   // Recorded stream settings
	Sinks    SinksConfig    `toml:"sinks"`    // Alert outputs
	Dispatch DispatchConfig `toml:"dispatch"` // Alert queueing and retry
	Server   ServerConfig   `toml:"server"`   // HTTP API and live feed
	Logging  LoggingConfig  `toml:"logging"`  // Application logging settings
	Storage  StorageConfig  `toml:"storage"`  // Alert journal

	// Source is the file the configuration was read from, empty for defaults
	Source string `toml:"-"`
}

// ObserverConfig describes the fixed observer. Latitude and longitude are
// required; a missing value is a configuration error, never 0.
type ObserverConfig struct {
	Latitude             *float64 `toml:"latitude"`               // Observer latitude in decimal degrees
	Longitude            *float64 `toml:"longitude"`              // Observer longitude in decimal degrees
	InterestingRadiusNM  float64  `toml:"interesting_radius_nm"`  // Radius to watch for flights (default 10)
	InterestingCeilingFt float64  `toml:"interesting_ceiling_ft"` // Highest altitude worth watching (default 15000)
	AlertRadiusNM        float64  `toml:"alert_radius_nm"`        // Radius to alert on approaching flights (default 3)
	Announce             bool     `toml:"announce"`               // Speak alerts aloud
}

// TrackingConfig contains flight table settings
type TrackingConfig struct {
	StaleAfterSecs    int    `toml:"stale_after_seconds"`    // Evict flights unheard for this long (default 600)
	SweepIntervalSecs int    `toml:"sweep_interval_seconds"` // Sweep at least this often on a quiet stream (default 30)
	AirlineDBPath     string `toml:"airline_db_path"`        // Optional OpenFlights airlines.json for extra callsigns
}

// Stream sources
const (
	StreamADSB   = "adsb"
	StreamReplay = "replay"
)

// StreamConfig selects the position source
type StreamConfig struct {
	Source string `toml:"source"` // "adsb" or "replay"
}

// ADSBConfig contains ADS-B aircraft tracking data source configuration
type ADSBConfig struct {
	// Allowed values:
	// - "local": a local receiver (dump1090 / readsb / tar1090 aircraft.json)
	// - "external-adsbexchangelike": center point + radius API (ADS-B Exchange style)
	SourceType        string  `toml:"source_type"`
	LocalSourceURL    string  `toml:"local_source_url"`    // e.g. http://192.168.1.10/tar1090/data/aircraft.json
	ExternalSourceURL string  `toml:"external_source_url"` // URL template with placeholders for lat, lon and distance
	APIHost           string  `toml:"api_host"`            // API host header value (e.g., for RapidAPI)
	APIKey            string  `toml:"api_key"`             // API key for the external service
	SearchRadiusNM    float64 `toml:"search_radius_nm"`    // External query radius (default: the interesting radius)
	FetchIntervalSecs int     `toml:"fetch_interval_seconds"`
	TimeoutSecs       int     `toml:"timeout_seconds"`
	CorrectMagnetic   bool    `toml:"correct_magnetic_heading"` // Derive true heading from mag_heading when missing
	IncludeGround     bool    `toml:"include_ground"`           // Keep targets reporting "ground"
}

// ReplayConfig contains settings for replaying a recorded stream
type ReplayConfig struct {
	Path  string  `toml:"path"`  // JSON lines file, "-" for stdin
	Speed float64 `toml:"speed"` // Pacing multiplier, 0 for as fast as possible
}

// SinksConfig lists the optional alert outputs. The console always runs.
type SinksConfig struct {
	Speech  SpeechConfig `toml:"speech"`
	Display HTTPSink     `toml:"display"`
	Webhook HTTPSink     `toml:"webhook"`
}

// SpeechConfig configures the speech command used when announcing
type SpeechConfig struct {
	Command []string `toml:"command"` // Argv prefix, the script is appended (default ["say", "-r", "200"])
}

// HTTPSink is an output that POSTs JSON. An empty URL disables it.
type HTTPSink struct {
	URL         string `toml:"url"`
	TimeoutSecs int    `toml:"timeout_seconds"` // default 10
}

// Timeout returns the request timeout
func (h HTTPSink) Timeout() time.Duration {
	return time.Duration(h.TimeoutSecs) * time.Second
}

// DispatchConfig tunes per-sink queues
type DispatchConfig struct {
	QueueSize   int `toml:"queue_size"`   // Alerts buffered per sink (default 32)
	MaxAttempts int `toml:"max_attempts"` // Delivery attempts per alert (default 3)
	BackoffMs   int `toml:"backoff_ms"`   // Base delay between attempts (default 500)
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Disabled           bool     `toml:"disabled"`              // Do not start the HTTP API
	Host               string   `toml:"host"`                  // Host address to bind to (default 127.0.0.1)
	Port               int      `toml:"port"`                  // HTTP port (default 8080)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // Origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level      string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format     string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
	File       string `toml:"file"`   // Optional file to also log to, rotated by size
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// StorageConfig contains alert journal configuration
type StorageConfig struct {
	JournalPath   string `toml:"journal_path"`   // SQLite alert journal, empty to disable
	RetentionDays int    `toml:"retention_days"` // Prune journal entries older than this, 0 keeps everything
	RecentAlerts  int    `toml:"recent_alerts"`  // Flights kept in the in-memory recent alert list (default 128)
}

// Load reads a configuration file
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}
	config.Source = path

	return &config, nil
}

// LoadWithFallback loads preferredPath if given, otherwise the first file
// found in configs/ or the working directory. When no path was given and no
// file exists an empty configuration is returned, so command-line flags can
// supply everything.
func LoadWithFallback(preferredPath string) (*Config, error) {
	if preferredPath != "" {
		return Load(preferredPath)
	}

	searchPaths := []string{
		"configs/overhead.toml",
		"overhead.toml",
	}
	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
			}
			return config, nil
		}
	}
	return &Config{}, nil
}

// Validate fills defaults and checks the configuration
func (c *Config) Validate() error {
	if err := c.ValidateObserver(); err != nil {
		return err
	}

	if c.Tracking.StaleAfterSecs < 0 || c.Tracking.SweepIntervalSecs < 0 {
		return errors.New("tracking intervals must not be negative")
	}
	if c.Tracking.StaleAfterSecs == 0 {
		c.Tracking.StaleAfterSecs = 600
	}
	if c.Tracking.SweepIntervalSecs == 0 {
		c.Tracking.SweepIntervalSecs = 30
	}

	if err := c.ValidateStream(); err != nil {
		return err
	}

	if len(c.Sinks.Speech.Command) == 0 {
		c.Sinks.Speech.Command = []string{"say", "-r", "200"}
	}
	for name, sink := range map[string]*HTTPSink{"display": &c.Sinks.Display, "webhook": &c.Sinks.Webhook} {
		if sink.URL != "" && !strings.HasPrefix(sink.URL, "http://") && !strings.HasPrefix(sink.URL, "https://") {
			return fmt.Errorf("invalid %s url: %q (must be http or https)", name, sink.URL)
		}
		if sink.TimeoutSecs <= 0 {
			sink.TimeoutSecs = 10
		}
	}

	if c.Dispatch.QueueSize <= 0 {
		c.Dispatch.QueueSize = 32
	}
	if c.Dispatch.MaxAttempts <= 0 {
		c.Dispatch.MaxAttempts = 3
	}
	if c.Dispatch.BackoffMs <= 0 {
		c.Dispatch.BackoffMs = 500
	}

	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSecs == 0 {
		c.Server.ReadTimeoutSecs = 15
	}
	if c.Server.IdleTimeoutSecs == 0 {
		c.Server.IdleTimeoutSecs = 60
	}

	switch c.Logging.Level {
	case "":
		c.Logging.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "":
		c.Logging.Format = "console"
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("invalid retention_days: %d", c.Storage.RetentionDays)
	}
	if c.Storage.RecentAlerts <= 0 {
		c.Storage.RecentAlerts = 128
	}

	return nil
}

// ValidateObserver checks the observer location and radii and fills the
// defaults the command-line tool has always used
func (c *Config) ValidateObserver() error {
	o := &c.Observer
	if o.Latitude == nil || o.Longitude == nil {
		return errors.New("observer latitude and longitude are required")
	}
	if p := (geo.Point{Lat: *o.Latitude, Lon: *o.Longitude}); !p.Valid() {
		return fmt.Errorf("invalid observer location: %v,%v", *o.Latitude, *o.Longitude)
	}

	if o.InterestingRadiusNM == 0 {
		o.InterestingRadiusNM = 10
	}
	if o.InterestingCeilingFt == 0 {
		o.InterestingCeilingFt = 15000
	}
	if o.AlertRadiusNM == 0 {
		o.AlertRadiusNM = 3
	}

	for name, v := range map[string]float64{
		"interesting_radius_nm":  o.InterestingRadiusNM,
		"interesting_ceiling_ft": o.InterestingCeilingFt,
		"alert_radius_nm":        o.AlertRadiusNM,
	} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("invalid %s: %v", name, v)
		}
	}
	if o.AlertRadiusNM > o.InterestingRadiusNM {
		return fmt.Errorf("alert_radius_nm (%v) must not exceed interesting_radius_nm (%v)", o.AlertRadiusNM, o.InterestingRadiusNM)
	}
	return nil
}

// ValidateStream checks the selected position source
func (c *Config) ValidateStream() error {
	switch c.Stream.Source {
	case "":
		c.Stream.Source = StreamADSB
	case StreamADSB, StreamReplay:
	default:
		return fmt.Errorf("invalid stream source: %s (must be 'adsb' or 'replay')", c.Stream.Source)
	}

	if c.Stream.Source == StreamReplay {
		if c.Replay.Path == "" {
			return errors.New("replay path is required when stream source is replay")
		}
		if c.Replay.Speed < 0 {
			return fmt.Errorf("invalid replay speed: %v", c.Replay.Speed)
		}
		return nil
	}

	if c.ADSB.SourceType == "" {
		c.ADSB.SourceType = "local"
	}
	switch c.ADSB.SourceType {
	case "local":
		if c.ADSB.LocalSourceURL == "" {
			return errors.New("local_source_url is required when source_type is local")
		}
	case "external-adsbexchangelike":
		if c.ADSB.ExternalSourceURL == "" {
			return errors.New("external_source_url is required when source_type is external-adsbexchangelike")
		}
		if c.ADSB.APIKey == "" {
			return errors.New("api_key is required when source_type is external-adsbexchangelike")
		}
		if c.ADSB.SearchRadiusNM == 0 {
			c.ADSB.SearchRadiusNM = c.Observer.InterestingRadiusNM
		}
		if c.ADSB.SearchRadiusNM < 0 {
			return fmt.Errorf("invalid search_radius_nm: %v", c.ADSB.SearchRadiusNM)
		}
	default:
		return fmt.Errorf("invalid ADSB source type: %s (must be 'local' or 'external-adsbexchangelike')", c.ADSB.SourceType)
	}

	if c.ADSB.FetchIntervalSecs <= 0 {
		c.ADSB.FetchIntervalSecs = 1
	}
	if c.ADSB.TimeoutSecs <= 0 {
		c.ADSB.TimeoutSecs = 10
	}
	return nil
}

// ObserverSettings returns the validated observer for the classifier
func (c *Config) ObserverSettings() classify.Observer {
	var loc geo.Point
	if c.Observer.Latitude != nil && c.Observer.Longitude != nil {
		loc = geo.Point{Lat: *c.Observer.Latitude, Lon: *c.Observer.Longitude}
	}
	return classify.Observer{
		Location:             loc,
		InterestingRadiusNM:  c.Observer.InterestingRadiusNM,
		InterestingCeilingFt: c.Observer.InterestingCeilingFt,
		AlertRadiusNM:        c.Observer.AlertRadiusNM,
		Announce:             c.Observer.Announce,
	}
}
