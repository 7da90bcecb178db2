// Package config loads settings from an optional YAML file, a .env file and
// the environment.
package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tendant/simple-detection-data/internal/geometry"
	"github.com/tendant/simple-detection-data/internal/imageio"
	"github.com/tendant/simple-detection-data/internal/records"
)

// EnvPrefix prefixes every environment override, e.g. DETECTION_SERVER_ADDR
const EnvPrefix = "DETECTION"

type Config struct {
	Model    ModelConfig    `mapstructure:"model"`
	Input    InputConfig    `mapstructure:"input"`
	Datasets DatasetsConfig `mapstructure:"datasets"`
	Records  RecordsConfig  `mapstructure:"records"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ModelConfig struct {
	PixelMean  []float64 `mapstructure:"pixel_mean"`
	PixelStd   []float64 `mapstructure:"pixel_std"`
	MaskFormat string    `mapstructure:"mask_format"`
}

type InputConfig struct {
	MaxSizeTrain int  `mapstructure:"max_size_train"`
	MaxSizeTest  int  `mapstructure:"max_size_test"`
	CropEnabled  bool `mapstructure:"crop_enabled"`
	// Seed fixes the augmentation RNG; 0 seeds from the clock
	Seed int64 `mapstructure:"seed"`
}

type DatasetsConfig struct {
	Train []string `mapstructure:"train"`
	// CategoryMapping maps dataset name to raw id to contiguous id
	CategoryMapping map[string]map[int]int `mapstructure:"category_mapping"`
	// Policies names the augmentation policy of a dataset ("default" or
	// "identity"); unlisted datasets use the default
	Policies map[string]string `mapstructure:"policies"`
}

type RecordsConfig struct {
	// Variant is "csv" or "masks"
	Variant       string                `mapstructure:"variant"`
	Root          string                `mapstructure:"root"`
	Dir           string                `mapstructure:"dir"`
	Dataset       string                `mapstructure:"dataset"`
	Suffix        string                `mapstructure:"suffix"`
	Scaling       bool                  `mapstructure:"scaling"`
	ErosionMode   string                `mapstructure:"erosion_mode"`
	ErosionFactor float64               `mapstructure:"erosion_factor"`
	DoMapping     bool                  `mapstructure:"do_mapping"`
	MaskChannels  []records.MaskChannel `mapstructure:"mask_channels"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// Mode "release" selects the production logger
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// Load reads configPath when it is not empty, then applies environment
// overrides. A .env file in the working directory is loaded first if present.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind env: %w", err)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(cfg.Records.MaskChannels) == 0 {
		cfg.Records.MaskChannels = append([]records.MaskChannel(nil), records.DefaultMaskChannels...)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model.pixel_mean", []float64{0, 0, 0})
	v.SetDefault("model.pixel_std", []float64{1, 1, 1})
	v.SetDefault("model.mask_format", "bitmask")

	v.SetDefault("input.max_size_train", 1333)
	v.SetDefault("input.max_size_test", 1333)
	v.SetDefault("input.crop_enabled", false)
	v.SetDefault("input.seed", 0)

	v.SetDefault("datasets.train", []string{})
	v.SetDefault("datasets.category_mapping", map[string]map[int]int{})
	v.SetDefault("datasets.policies", map[string]string{})

	v.SetDefault("records.variant", records.VariantCSV)
	v.SetDefault("records.root", "./data")
	v.SetDefault("records.dir", "train")
	v.SetDefault("records.dataset", "default")
	v.SetDefault("records.suffix", "")
	v.SetDefault("records.scaling", true)
	v.SetDefault("records.erosion_mode", "width")
	v.SetDefault("records.erosion_factor", 0.5)
	v.SetDefault("records.do_mapping", true)
	v.SetDefault("records.mask_channels", []records.MaskChannel{})

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.url", "")
}

// Eroder returns the box eroder described by the records settings
func (r RecordsConfig) Eroder() (geometry.Eroder, error) {
	mode, err := geometry.ParseErosionMode(r.ErosionMode)
	if err != nil {
		return geometry.Eroder{}, err
	}
	e := geometry.NewEroder(mode)
	if r.ErosionFactor > 0 {
		e.Factor = r.ErosionFactor
	}
	return e, nil
}

// RawInputs reports whether images should be rescaled to float intensities
func (m ModelConfig) RawInputs() bool {
	return imageio.UsesRawInputs(m.PixelMean, m.PixelStd)
}
