package service

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/EpicMandM/station-booking/internal/models"
)

// CalendarConfig holds configuration for Google Calendar integration
type CalendarConfig struct {
	CalendarID         string `toml:"calendar_id"`
	ServiceAccountPath string `toml:"service_account_path"`
}

// Enabled reports whether accepted reservations should be published.
func (c CalendarConfig) Enabled() bool {
	return c.CalendarID != ""
}

// StationConfig seeds one station into the registry at startup.
type StationConfig struct {
	ID            string  `toml:"id"`
	Name          string  `toml:"name"`
	OwnerID       string  `toml:"owner_id"`
	RatePerMinute float64 `toml:"rate_per_minute"`
	Status        string  `toml:"status"` // Optional: defaults to AVAILABLE
}

// FeatureConfig holds user-facing feature configurations.
// These are non-sensitive settings that operators can change without
// redeployment.
// Source: TOML configuration file
type FeatureConfig struct {
	Calendar CalendarConfig  `toml:"calendar"`
	Stations []StationConfig `toml:"stations"`
}

// LoadFeatureConfig loads feature configuration from a TOML file
func LoadFeatureConfig(path string) (*FeatureConfig, error) {
	var cfg FeatureConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load feature config: %w", err)
	}
	if _, err := cfg.StationModels(); err != nil {
		return nil, fmt.Errorf("failed to load feature config: %w", err)
	}
	return &cfg, nil
}

// StationModels validates the seed list and converts it to registry entries.
func (c *FeatureConfig) StationModels() ([]*models.Station, error) {
	seen := make(map[string]bool, len(c.Stations))
	out := make([]*models.Station, 0, len(c.Stations))
	for i, sc := range c.Stations {
		if sc.ID == "" {
			return nil, fmt.Errorf("stations[%d]: id is required", i)
		}
		if seen[sc.ID] {
			return nil, fmt.Errorf("stations[%d]: duplicate id %q", i, sc.ID)
		}
		seen[sc.ID] = true
		if sc.OwnerID == "" {
			return nil, fmt.Errorf("station %s: owner_id is required", sc.ID)
		}
		if sc.RatePerMinute < 0 {
			return nil, fmt.Errorf("station %s: rate_per_minute cannot be negative", sc.ID)
		}
		status := models.StationAvailable
		if sc.Status != "" {
			st, err := models.ParseStationStatus(sc.Status)
			if err != nil {
				return nil, fmt.Errorf("station %s: %w", sc.ID, err)
			}
			status = st
		}
		out = append(out, &models.Station{
			ID:            sc.ID,
			Name:          sc.Name,
			Status:        status,
			OwnerID:       sc.OwnerID,
			RatePerMinute: sc.RatePerMinute,
		})
	}
	return out, nil
}

// LoadServiceAccountToken reads the service account JSON. SERVICE_ACCOUNT_PATH
// overrides the configured path.
func (c *CalendarConfig) LoadServiceAccountToken() ([]byte, error) {
	path := c.ServiceAccountPath
	if env := os.Getenv("SERVICE_ACCOUNT_PATH"); env != "" {
		path = env
	}
	if path == "" {
		return nil, fmt.Errorf("service_account_path is not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}
	return data, nil
}
