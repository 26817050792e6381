package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level project configuration.
type Config struct {
	CRM         CRMConfig         `yaml:"crm"`
	LLM         LLMConfig         `yaml:"llm"`
	SLA         SLAConfig         `yaml:"sla"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Report      ReportConfig      `yaml:"report"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Server      ServerConfig      `yaml:"server"`
}

// CRMConfig selects and configures the deal source.
type CRMConfig struct {
	Provider string         `yaml:"provider"` // "kommo" or "postgres"
	MaxDeals int            `yaml:"max_deals"`
	Kommo    KommoConfig    `yaml:"kommo"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// KommoConfig configures the Kommo v4 API client.
type KommoConfig struct {
	BaseURL     string `yaml:"base_url"`
	AccessToken string `yaml:"access_token"`
	PageLimit   int    `yaml:"page_limit"`
	FetchNotes  bool   `yaml:"fetch_notes"`
}

// PostgresConfig configures the snapshot table source.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Table    string `yaml:"table"`
}

// LLMConfig configures the explanation model endpoint.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// SLAConfig holds per-stage duration limits and the global inactivity
// threshold. Shared read-only across all scoring calls within a run.
type SLAConfig struct {
	StageDays               map[string]int `yaml:"stage_days"`
	DefaultStageDays        int            `yaml:"default_stage_days"`
	InactivityThresholdDays int            `yaml:"inactivity_threshold_days"`
}

// MaxDaysForStage returns the configured SLA for a stage, falling back to the
// default when the stage has no explicit entry.
func (s SLAConfig) MaxDaysForStage(stage string) int {
	if d, ok := s.StageDays[stage]; ok {
		return d
	}
	return s.DefaultStageDays
}

// ScoringConfig holds the named weights and tier thresholds of the risk
// scorer. All values are tuning parameters, not contracts.
type ScoringConfig struct {
	StageOverdueMax     float64 `yaml:"stage_overdue_max"`
	InactivityMax       float64 `yaml:"inactivity_max"`
	NegativeReplyPoints float64 `yaml:"negative_reply_points"`
	LowAmountPoints     float64 `yaml:"low_amount_points"`
	OwnerOverloadPoints float64 `yaml:"owner_overload_points"`
	LowAmountFloor      float64 `yaml:"low_amount_floor"`
	EffortDays          int     `yaml:"effort_days"`
	MaxOwnerOpenDeals   int     `yaml:"max_owner_open_deals"`
	RedThreshold        float64 `yaml:"red_threshold"`
	YellowThreshold     float64 `yaml:"yellow_threshold"`
}

// Validate checks that the tier thresholds are totally ordered and cover
// [0,100] with no gaps.
func (s ScoringConfig) Validate() error {
	if s.YellowThreshold <= 0 || s.RedThreshold > 100 {
		return fmt.Errorf("tier thresholds out of range: yellow=%v red=%v", s.YellowThreshold, s.RedThreshold)
	}
	if s.YellowThreshold >= s.RedThreshold {
		return fmt.Errorf("yellow threshold (%v) must be below red threshold (%v)", s.YellowThreshold, s.RedThreshold)
	}
	return nil
}

// ReportConfig configures the aggregated output.
type ReportConfig struct {
	TopN       int    `yaml:"top_n"`
	OutputFile string `yaml:"output_file"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig bounds explanation calls against the LLM endpoint.
type ConcurrencyConfig struct {
	QPS     int `yaml:"qps"`
	RPM     int `yaml:"rpm"`
	Workers int `yaml:"workers"`
}

// ServerConfig configures the HTTP display server.
type ServerConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

// HTTPConfig holds HTTP listener settings.
type HTTPConfig struct {
	Addr    string `yaml:"addr"`
	Timeout string `yaml:"timeout"`
}

// LoadConfig reads and validates the configuration at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Scoring.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scoring config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills unset tuning values with the reference defaults.
func (c *Config) applyDefaults() {
	if c.CRM.MaxDeals == 0 {
		c.CRM.MaxDeals = 200
	}
	if c.CRM.Kommo.PageLimit == 0 {
		c.CRM.Kommo.PageLimit = 100
	}
	if c.CRM.Postgres.Table == "" {
		c.CRM.Postgres.Table = "open_deals"
	}
	if c.SLA.DefaultStageDays == 0 {
		c.SLA.DefaultStageDays = 10
	}
	if c.SLA.InactivityThresholdDays == 0 {
		c.SLA.InactivityThresholdDays = 7
	}
	if c.Scoring.StageOverdueMax == 0 {
		c.Scoring.StageOverdueMax = 40
	}
	if c.Scoring.InactivityMax == 0 {
		c.Scoring.InactivityMax = 30
	}
	if c.Scoring.NegativeReplyPoints == 0 {
		c.Scoring.NegativeReplyPoints = 20
	}
	if c.Scoring.LowAmountPoints == 0 {
		c.Scoring.LowAmountPoints = 15
	}
	if c.Scoring.OwnerOverloadPoints == 0 {
		c.Scoring.OwnerOverloadPoints = 10
	}
	if c.Scoring.EffortDays == 0 {
		c.Scoring.EffortDays = 21
	}
	if c.Scoring.MaxOwnerOpenDeals == 0 {
		c.Scoring.MaxOwnerOpenDeals = 15
	}
	if c.Scoring.RedThreshold == 0 {
		c.Scoring.RedThreshold = 70
	}
	if c.Scoring.YellowThreshold == 0 {
		c.Scoring.YellowThreshold = 40
	}
	if c.Report.TopN == 0 {
		c.Report.TopN = 20
	}
	if c.Report.OutputFile == "" {
		c.Report.OutputFile = "output/report.html"
	}
	if c.Concurrency.QPS == 0 {
		c.Concurrency.QPS = 2
	}
	if c.Concurrency.RPM == 0 {
		c.Concurrency.RPM = 60
	}
	if c.Concurrency.Workers == 0 {
		c.Concurrency.Workers = 4
	}
}
