package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Oracle  Oracle  `yaml:"oracle"`
	Input   Input   `yaml:"input"`
	Output  Output  `yaml:"output"`
	Server  Server  `yaml:"server"`
	Logging Logging `yaml:"logging"`
}

type Oracle struct {
	Provider           string  `yaml:"provider"`
	Model              string  `yaml:"model"`
	BaseURL            string  `yaml:"base_url"`
	OllamaURL          string  `yaml:"ollama_url"`
	APIKeyEnv          string  `yaml:"api_key_env"`
	PrimaryMaxTokens   int     `yaml:"primary_max_tokens"`
	SecondaryMaxTokens int     `yaml:"secondary_max_tokens"`
	Temperature        float64 `yaml:"temperature"`
	Concurrency        int     `yaml:"concurrency"`
}

// Input maps spreadsheet columns to record fields.
type Input struct {
	KeyColumn     string  `yaml:"key_column"`
	AddressColumn string  `yaml:"address_column"`
	CityColumn    string  `yaml:"city_column"`
	StateColumn   string  `yaml:"state_column"`
	ZipColumn     string  `yaml:"zip_column"`
	Primary       Field   `yaml:"primary"`
	Areas         []Field `yaml:"areas"`
}

// Field names one narrative column and the label used for it in reports.
type Field struct {
	Name   string `yaml:"name"`
	Column string `yaml:"column"`
}

type Output struct {
	DataDir   string `yaml:"data_dir"`
	ExportDir string `yaml:"export_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// DefaultAreas are the per-area narrative columns of the property export.
var DefaultAreas = []Field{
	{Name: "Kitchen Condition", Column: "Kitchen Condition"},
	{Name: "Bathrooms Condition", Column: "Bathrooms Condition"},
	{Name: "Interior Appearance Condition", Column: "Interior Appearance Condition"},
}

// ConfigDir returns the XDG config directory for condrater.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "condrater")
}

// DataDir returns the XDG data directory for condrater.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "condrater")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/condrater/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'condrater init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default config: %v", err))
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Oracle: Oracle{
			Provider:           "openai",
			Model:              "mistral-7b-instruct-v0.1",
			BaseURL:            "http://127.0.0.1:1234/v1",
			OllamaURL:          "http://localhost:11434",
			APIKeyEnv:          "OPENAI_API_KEY",
			PrimaryMaxTokens:   256,
			SecondaryMaxTokens: 64,
			Temperature:        0.3,
			Concurrency:        1,
		},
		Input: Input{
			KeyColumn:     "Loan Number",
			AddressColumn: "Address",
			CityColumn:    "City",
			StateColumn:   "State",
			ZipColumn:     "Zip Code",
			Primary:       Field{Name: "BPO", Column: "BPO_NOTES"},
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.Input.Areas) == 0 {
		cfg.Input.Areas = append([]Field(nil), DefaultAreas...)
	}
	if cfg.Oracle.Concurrency < 1 {
		cfg.Oracle.Concurrency = 1
	}

	return cfg, cfg.Validate()
}

// Validate checks the settings that the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Input.KeyColumn == "" {
		return fmt.Errorf("input.key_column must be set")
	}
	if c.Input.Primary.Column == "" {
		return fmt.Errorf("input.primary.column must be set")
	}
	if c.Input.Primary.Name == "" {
		c.Input.Primary.Name = "Primary"
	}
	seen := make(map[string]bool, len(c.Input.Areas))
	for i, a := range c.Input.Areas {
		if a.Column == "" {
			return fmt.Errorf("input.areas[%d].column must be set", i)
		}
		if a.Name == "" {
			c.Input.Areas[i].Name = a.Column
		}
		name := c.Input.Areas[i].Name
		if seen[name] || name == c.Input.Primary.Name {
			return fmt.Errorf("duplicate field name %q", name)
		}
		seen[name] = true
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// GetExportDir returns where result sheets are written.
func (c *Config) GetExportDir() string {
	if c.Output.ExportDir != "" {
		return c.Output.ExportDir
	}
	return "."
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
