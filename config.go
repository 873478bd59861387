package skycore

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ConfigEnv is the environment variable holding the directory of conf.toml.
const ConfigEnv = "SKYCORE_CONFIG"

// Config is the configuration of the position pipeline.
type Config struct {
	LightTime           bool
	LightTimeIterations int
	LogLevel            string

	VSOP87    bool
	VSOP87Dir string

	CatalogueDir    string
	CatalogueLayers []string

	EarthRotationOverride bool

	SatelliteKernel  string
	SatelliteGravity string

	Metrics bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("general.light_travel_time", true)
	v.SetDefault("general.light_time_iterations", 1)
	v.SetDefault("general.log_level", "info")
	v.SetDefault("VSOP87.enabled", false)
	v.SetDefault("VSOP87.directory", "")
	v.SetDefault("catalogue.directory", "data")
	v.SetDefault("catalogue.layers", StandardLayers)
	v.SetDefault("compat.earth_rotation_override", false)
	v.SetDefault("satellite.kernel", "vallado")
	v.SetDefault("satellite.gravity", "wgs72")
	v.SetDefault("metrics.enabled", false)
}

// DefaultConfig returns the configuration used when no file is provided.
func DefaultConfig() Config {
	v := viper.New()
	setDefaults(v)
	cfg, _ := configFrom(v)
	return cfg
}

// LoadConfig reads the provided TOML file. If the path is empty, conf.toml is read from the
// directory set in $SKYCORE_CONFIG, and the defaults are returned if that variable is not set.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	if path == "" {
		dir := os.Getenv(ConfigEnv)
		if dir == "" {
			return configFrom(v)
		}
		path = filepath.Join(dir, "conf.toml")
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrapf(err, "could not read %s", path)
	}
	return configFrom(v)
}

func configFrom(v *viper.Viper) (Config, error) {
	cfg := Config{
		LightTime:             v.GetBool("general.light_travel_time"),
		LightTimeIterations:   v.GetInt("general.light_time_iterations"),
		LogLevel:              v.GetString("general.log_level"),
		VSOP87:                v.GetBool("VSOP87.enabled"),
		VSOP87Dir:             v.GetString("VSOP87.directory"),
		CatalogueDir:          v.GetString("catalogue.directory"),
		CatalogueLayers:       v.GetStringSlice("catalogue.layers"),
		EarthRotationOverride: v.GetBool("compat.earth_rotation_override"),
		SatelliteKernel:       v.GetString("satellite.kernel"),
		SatelliteGravity:      v.GetString("satellite.gravity"),
		Metrics:               v.GetBool("metrics.enabled"),
	}
	if cfg.VSOP87 && cfg.VSOP87Dir == "" {
		return cfg, errors.New("VSOP87 is enabled but VSOP87.directory is empty")
	}
	if cfg.LightTimeIterations < 1 {
		return cfg, errors.Errorf("general.light_time_iterations must be at least 1, got %d", cfg.LightTimeIterations)
	}
	if cfg.SatelliteKernel != "vallado" {
		return cfg, errors.Errorf("unknown satellite.kernel %q", cfg.SatelliteKernel)
	}
	switch cfg.SatelliteGravity {
	case "wgs72", "wgs84":
	default:
		return cfg, errors.Errorf("unknown satellite.gravity %q", cfg.SatelliteGravity)
	}
	return cfg, nil
}

// Options returns the System options matching this configuration.
func (c Config) Options() ([]Option, error) {
	dir := ""
	if c.VSOP87 {
		dir = c.VSOP87Dir
	}
	eph, err := NewEphemeris(dir)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithEphemeris(eph),
		WithLightTime(c.LightTime, c.LightTimeIterations),
		WithEarthRotationOverride(c.EarthRotationOverride),
	}, nil
}

// Layers returns the catalogue layers to load.
func (c Config) Layers() []Layer {
	return FileLayers(c.CatalogueDir, c.CatalogueLayers...)
}
