package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Config struct {
	Creatio    CreatioConfig    `yaml:"creatio"`
	SentrySkin SentrySkinConfig `yaml:"sentryskin"`
	Analysis   AnalysisConfig   `yaml:"analysis"`
	Dashboard  DashboardConfig  `yaml:"dashboard"`
	Files      FilesConfig      `yaml:"files"`
	Mappings   Mappings         `yaml:"mappings"`
}

type CreatioConfig struct {
	TokenURL     string `yaml:"token_url"`
	ODataURL     string `yaml:"odata_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

type SentrySkinConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	WorkflowID string `yaml:"workflow_id"`
	PageSize   int    `yaml:"page_size"`
}

type AnalysisConfig struct {
	StartDate  string `yaml:"start_date"`
	CutoffDate string `yaml:"cutoff_date"`
}

type DashboardConfig struct {
	Port           int           `yaml:"port"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	RefreshTimeout time.Duration `yaml:"refresh_timeout"`
}

// FilesConfig names the flat-file artifacts the pipeline stages write and the
// dashboard reads.
type FilesConfig struct {
	Dir            string `yaml:"dir"`
	LeadsExport    string `yaml:"leads_export"`
	RawExecutions  string `yaml:"raw_executions"`
	Extracted      string `yaml:"extracted"`
	UserAnalysis   string `yaml:"user_analysis"`
	WindowedReport string `yaml:"windowed_report"`
}

// Mappings holds the Creatio GUID to display-name lookup tables.
type Mappings struct {
	Language       map[string]string `yaml:"language"`
	Location       map[string]string `yaml:"location"`
	RegisterMethod map[string]string `yaml:"register_method"`
	Status         map[string]string `yaml:"status"`
}

// Secrets are credential overrides taken from the environment so API keys do
// not have to live in the config file.
type Secrets struct {
	CreatioClientID     string `envconfig:"CREATIO_CLIENT_ID"`
	CreatioClientSecret string `envconfig:"CREATIO_CLIENT_SECRET"`
	SentrySkinAPIKey    string `envconfig:"SENTRYSKIN_API_KEY"`
}

// Load reads config from path, or the embedded defaults when path is empty.
// Environment variables are expanded inside the YAML before unmarshalling,
// and credential env vars override whatever the file carries.
func Load(path string) (*Config, error) {
	data := defaultYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		data = b
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var secrets Secrets
	if err := envconfig.Process("", &secrets); err != nil {
		return nil, fmt.Errorf("read secrets: %w", err)
	}
	if secrets.CreatioClientID != "" {
		cfg.Creatio.ClientID = secrets.CreatioClientID
	}
	if secrets.CreatioClientSecret != "" {
		cfg.Creatio.ClientSecret = secrets.CreatioClientSecret
	}
	if secrets.SentrySkinAPIKey != "" {
		cfg.SentrySkin.APIKey = secrets.SentrySkinAPIKey
	}

	if cfg.SentrySkin.PageSize <= 0 {
		cfg.SentrySkin.PageSize = 100
	}
	if cfg.Dashboard.Port == 0 {
		cfg.Dashboard.Port = 8501
	}
	if cfg.Dashboard.CacheTTL == 0 {
		cfg.Dashboard.CacheTTL = 5 * time.Minute
	}
	if cfg.Dashboard.RefreshTimeout == 0 {
		cfg.Dashboard.RefreshTimeout = 5 * time.Minute
	}

	return &cfg, nil
}

// StartDate returns the parsed analysis window lower bound.
func (c *AnalysisConfig) Start() (time.Time, error) {
	return time.Parse(time.RFC3339, c.StartDate)
}

// Cutoff returns the parsed active-user cutoff instant.
func (c *AnalysisConfig) Cutoff() (time.Time, error) {
	return time.Parse(time.RFC3339, c.CutoffDate)
}

// Path joins the artifact directory with a file name.
func (f *FilesConfig) Path(name string) string {
	if f.Dir == "" || f.Dir == "." {
		return name
	}
	return f.Dir + string(os.PathSeparator) + name
}
