package config

import (
	"github.com/spf13/pflag"
)

// Flags are the command-line overrides. Only flags the user actually set
// replace values from the configuration file.
type Flags struct {
	fs *pflag.FlagSet

	ConfigFile         string
	Latitude           float64
	Longitude          float64
	InterestingRadius  float64
	InterestingCeiling float64
	AlertRadius        float64
	Announce           bool
	WebhookURL         string
	DisplayURL         string
	LogLevel           string
	Replay             string
	Help               bool
}

// NewFlags defines the command-line flags on a new flag set
func NewFlags(name string) *Flags {
	f := &Flags{fs: pflag.NewFlagSet(name, pflag.ContinueOnError)}
	fs := f.fs

	fs.StringVarP(&f.ConfigFile, "config-file", "c", "", "Config file name (default: configs/overhead.toml or overhead.toml)")
	fs.Float64Var(&f.Latitude, "latitude", 0, "Observer latitude in decimal degrees")
	fs.Float64Var(&f.Longitude, "longitude", 0, "Observer longitude in decimal degrees")
	fs.Float64Var(&f.InterestingRadius, "interesting-radius", 10, "Radius in nautical miles around location to watch for flights")
	fs.Float64Var(&f.InterestingCeiling, "interesting-ceiling", 15000, "Maximum altitude in feet to watch for flights")
	fs.Float64Var(&f.AlertRadius, "alert-radius", 3, "Radius in nautical miles around location to alert on approaching flights")
	fs.BoolVar(&f.Announce, "announce", false, "Aurally announce approaching aircraft")
	fs.StringVar(&f.WebhookURL, "webhook-url", "", "URL to optionally send alerting positions to")
	fs.StringVar(&f.DisplayURL, "display-url", "", "URL of the remote two-row display panel")
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.StringVar(&f.Replay, "replay", "", "Replay a recorded JSON lines stream instead of polling (- for stdin)")
	fs.BoolVarP(&f.Help, "help", "h", false, "Show help")
	return f
}

// Parse parses the arguments, without the program name
func (f *Flags) Parse(args []string) error {
	return f.fs.Parse(args)
}

// Usage prints the flag defaults
func (f *Flags) Usage() {
	f.fs.Usage()
}

// Apply copies every flag the user set onto c
func (f *Flags) Apply(c *Config) {
	changed := f.fs.Changed

	if changed("latitude") {
		lat := f.Latitude
		c.Observer.Latitude = &lat
	}
	if changed("longitude") {
		lon := f.Longitude
		c.Observer.Longitude = &lon
	}
	if changed("interesting-radius") {
		c.Observer.InterestingRadiusNM = f.InterestingRadius
	}
	if changed("interesting-ceiling") {
		c.Observer.InterestingCeilingFt = f.InterestingCeiling
	}
	if changed("alert-radius") {
		c.Observer.AlertRadiusNM = f.AlertRadius
	}
	if changed("announce") {
		c.Observer.Announce = f.Announce
	}
	if changed("webhook-url") {
		c.Sinks.Webhook.URL = f.WebhookURL
	}
	if changed("display-url") {
		c.Sinks.Display.URL = f.DisplayURL
	}
	if changed("log-level") {
		c.Logging.Level = f.LogLevel
	}
	if changed("replay") {
		c.Stream.Source = StreamReplay
		c.Replay.Path = f.Replay
	}
}
