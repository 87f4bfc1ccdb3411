package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address         string `yaml:"address"`
		Password        string `yaml:"password"`
		DB              int    `yaml:"db"`
		CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
	} `yaml:"redis"`

	Calendar struct {
		Enabled         bool   `yaml:"enabled"`
		CalendarID      string `yaml:"calendar_id"`
		CredentialsFile string `yaml:"credentials_file"`
		Location        string `yaml:"location"` // event location text
	} `yaml:"calendar"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		StoragePath   string `yaml:"storage_path"`
		IntervalHours int    `yaml:"interval_hours"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Scheduling Scheduling `yaml:"scheduling"`

	Sync struct {
		IntervalSeconds int     `yaml:"interval_seconds"`
		RatePerSecond   float64 `yaml:"rate_per_second"`
		Burst           int     `yaml:"burst"`
		MaxAttempts     int     `yaml:"max_attempts"`
	} `yaml:"sync"`
}

// Scheduling holds the business rules for slot computation and booking.
// It is immutable after Load; components receive it by value.
type Scheduling struct {
	Timezone           string `yaml:"timezone"`     // IANA name, e.g. America/Los_Angeles
	DaysOfWeek         []int  `yaml:"days_of_week"` // 1=Monday .. 7=Sunday
	OpenTime           string `yaml:"open_time"`    // "09:00"
	CloseTime          string `yaml:"close_time"`   // "18:00"
	SlotMinutes        int    `yaml:"slot_minutes"`
	GranularityMinutes int    `yaml:"granularity_minutes"`
	HorizonDays        int    `yaml:"horizon_days"`
	MaxDates           int    `yaml:"max_dates"`          // 0 = scan full horizon
	MaxSlotsPerDay     int    `yaml:"max_slots_per_day"`  // response cap, 0 = unlimited
	LockTimeoutSeconds int    `yaml:"lock_timeout_seconds"`

	loc *time.Location
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/frontdesk.db"
	}
	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	if err = cfg.Scheduling.Normalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Normalize fills defaults, validates the rules and resolves the timezone.
// Load calls it; tests constructing Scheduling directly should too.
func (s *Scheduling) Normalize() error {
	if s.Timezone == "" {
		s.Timezone = "UTC"
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", s.Timezone, err)
	}
	s.loc = loc

	if len(s.DaysOfWeek) == 0 {
		s.DaysOfWeek = []int{1, 2, 3, 4, 5} // Mon-Fri
	}
	if s.OpenTime == "" {
		s.OpenTime = "09:00"
	}
	if s.CloseTime == "" {
		s.CloseTime = "18:00"
	}
	for _, clock := range []string{s.OpenTime, s.CloseTime} {
		if _, _, err := parseClock(clock); err != nil {
			return err
		}
	}

	if s.SlotMinutes <= 0 {
		s.SlotMinutes = 60
	}
	if s.GranularityMinutes <= 0 {
		s.GranularityMinutes = 30
	}
	if s.SlotMinutes%s.GranularityMinutes != 0 {
		return fmt.Errorf("slot_minutes %d is not a multiple of granularity_minutes %d",
			s.SlotMinutes, s.GranularityMinutes)
	}
	if s.HorizonDays <= 0 {
		s.HorizonDays = 14
	}
	return nil
}

// Location returns the business timezone.
func (s Scheduling) Location() *time.Location {
	if s.loc == nil {
		return time.UTC
	}
	return s.loc
}

// IsBusinessDay reports whether the weekday is an open day.
func (s Scheduling) IsBusinessDay(d time.Weekday) bool {
	// config uses 1=Monday..7=Sunday
	iso := int(d)
	if iso == 0 {
		iso = 7
	}
	for _, day := range s.DaysOfWeek {
		if day == iso {
			return true
		}
	}
	return false
}

// DayWindow returns the open and close instants for the given calendar date,
// in the business timezone.
func (s Scheduling) DayWindow(date time.Time) (open, closeAt time.Time) {
	date = date.In(s.Location())
	oh, om, _ := parseClock(s.OpenTime)
	ch, cm, _ := parseClock(s.CloseTime)
	open = time.Date(date.Year(), date.Month(), date.Day(), oh, om, 0, 0, s.Location())
	closeAt = time.Date(date.Year(), date.Month(), date.Day(), ch, cm, 0, 0, s.Location())
	return open, closeAt
}

// SlotDuration returns the default appointment length.
func (s Scheduling) SlotDuration() time.Duration {
	return time.Duration(s.SlotMinutes) * time.Minute
}

// Granularity returns the minimum increment at which slots may start.
func (s Scheduling) Granularity() time.Duration {
	return time.Duration(s.GranularityMinutes) * time.Minute
}

// LockTimeout is how long a booking attempt may wait for the date lock.
func (s Scheduling) LockTimeout() time.Duration {
	if s.LockTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(s.LockTimeoutSeconds) * time.Second
}

func parseClock(clock string) (hour, minute int, err error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format: %s", clock)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", clock)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", clock)
	}
	return hour, minute, nil
}
