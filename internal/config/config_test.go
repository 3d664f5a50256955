package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/yegors/overhead/internal/classify"
	"github.com/yegors/overhead/internal/geo"
)

const sampleConfig = `
[observer]
latitude = 37.6188
longitude = -122.375
interesting_radius_nm = 12
alert_radius_nm = 4

[adsb]
source_type = "local"
local_source_url = "http://localhost/tar1090/data/aircraft.json"

[sinks.display]
url = "http://panel.local:8000/"

[logging]
level = "debug"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "overhead.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	want := classify.Observer{
		Location:             geo.Point{Lat: 37.6188, Lon: -122.375},
		InterestingRadiusNM:  12,
		InterestingCeilingFt: 15000,
		AlertRadiusNM:        4,
	}
	if diff := cmp.Diff(want, cfg.ObserverSettings()); diff != "" {
		t.Errorf("observer (-want +got):\n%s", diff)
	}
	if cfg.Stream.Source != StreamADSB || cfg.ADSB.FetchIntervalSecs != 1 {
		t.Errorf("stream defaults not applied: %+v %+v", cfg.Stream, cfg.ADSB)
	}
	if diff := cmp.Diff([]string{"say", "-r", "200"}, cfg.Sinks.Speech.Command); diff != "" {
		t.Errorf("speech command (-want +got):\n%s", diff)
	}
	if cfg.Sinks.Display.TimeoutSecs != 10 || cfg.Server.Addr() != "127.0.0.1:8080" {
		t.Errorf("sink/server defaults not applied")
	}
	if cfg.Tracking.StaleAfterSecs != 600 || cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("unexpected tracking/logging %+v %+v", cfg.Tracking, cfg.Logging)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		config string
		errHas string
	}{
		{"missing observer", "[adsb]\nlocal_source_url = \"http://x\"\n", "latitude and longitude are required"},
		{"latitude out of range", "[observer]\nlatitude = 91.0\nlongitude = 0.0\n", "invalid observer location"},
		{"negative radius", "[observer]\nlatitude = 1.0\nlongitude = 1.0\ninteresting_radius_nm = -1.0\n", "invalid interesting_radius_nm"},
		{"alert beyond interest", "[observer]\nlatitude = 1.0\nlongitude = 1.0\nalert_radius_nm = 20.0\n", "must not exceed"},
		{"local without url", "[observer]\nlatitude = 1.0\nlongitude = 1.0\n", "local_source_url is required"},
		{"bad source type", "[observer]\nlatitude = 1.0\nlongitude = 1.0\n[adsb]\nsource_type = \"opensky\"\n", "invalid ADSB source type"},
		{"replay without path", "[observer]\nlatitude = 1.0\nlongitude = 1.0\n[stream]\nsource = \"replay\"\n", "replay path is required"},
		{"bad webhook", "[observer]\nlatitude = 1.0\nlongitude = 1.0\n[replay]\npath = \"-\"\n[stream]\nsource = \"replay\"\n[sinks.webhook]\nurl = \"ftp://x\"\n", "invalid webhook url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.config))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			err = cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errHas) {
				t.Errorf("Validate = %v, want error containing %q", err, tt.errHas)
			}
		})
	}
}

func TestLoadWithFallback(t *testing.T) {
	if _, err := LoadWithFallback(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("an explicit missing path should fail")
	}

	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := LoadWithFallback("")
	if err != nil || cfg.Source != "" {
		t.Fatalf("no file: cfg=%+v err=%v", cfg, err)
	}

	os.MkdirAll("configs", 0o755)
	os.WriteFile(filepath.Join("configs", "overhead.toml"), []byte(sampleConfig), 0o644)
	cfg, err = LoadWithFallback("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source != filepath.Join("configs", "overhead.toml") {
		t.Errorf("Source = %q", cfg.Source)
	}
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatal(err)
	}

	f := NewFlags("overhead")
	if err := f.Parse([]string{"--latitude", "40.5", "--announce", "--replay", "-", "-c", "other.toml"}); err != nil {
		t.Fatal(err)
	}
	f.Apply(cfg)

	if *cfg.Observer.Latitude != 40.5 || *cfg.Observer.Longitude != -122.375 {
		t.Errorf("location = %v,%v", *cfg.Observer.Latitude, *cfg.Observer.Longitude)
	}
	if cfg.Observer.InterestingRadiusNM != 12 {
		t.Errorf("unset flag default overrode the file: radius %v", cfg.Observer.InterestingRadiusNM)
	}
	if !cfg.Observer.Announce || cfg.Stream.Source != StreamReplay || cfg.Replay.Path != "-" {
		t.Errorf("flags not applied: %+v %+v", cfg.Observer, cfg.Replay)
	}
	if f.ConfigFile != "other.toml" {
		t.Errorf("ConfigFile = %q", f.ConfigFile)
	}
}

func TestFlagsSupplyObserverWithoutFile(t *testing.T) {
	cfg := &Config{}
	f := NewFlags("overhead")
	f.Parse([]string{"--latitude=1", "--longitude=2", "--replay=rec.jsonl"})
	f.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Observer.AlertRadiusNM != 3 || cfg.Observer.InterestingRadiusNM != 10 {
		t.Errorf("defaults not applied: %+v", cfg.Observer)
	}
}
