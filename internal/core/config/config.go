package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"SERVER"`
	Database   DatabaseConfig   `mapstructure:"DATABASE"`
	Federation FederationConfig `mapstructure:"FEDERATION"`
	Privacy    PrivacyConfig    `mapstructure:"PRIVACY"`
	AWS        AWSConfig        `mapstructure:"AWS"`
	Monitor    MonitorConfig    `mapstructure:"MONITOR"`
}

type ServerConfig struct {
	Host     string `mapstructure:"HOST"`
	Port     string `mapstructure:"PORT"`
	Endpoint string `mapstructure:"ENDPOINT"`
}

type DatabaseConfig struct {
	Username     string `mapstructure:"USERNAME"`
	Password     string `mapstructure:"PASSWORD"`
	Host         string `mapstructure:"HOST"`
	Port         string `mapstructure:"PORT"`
	DatabaseName string `mapstructure:"DATABASE_NAME"`
}

// FederationConfig holds the tunable protocol parameters of the round
// coordinator and aggregation engine.
type FederationConfig struct {
	AggregationMethod          string  `mapstructure:"AGGREGATION_METHOD"`
	MinClientsPerRound         int     `mapstructure:"MIN_CLIENTS_PER_ROUND"`
	ClientSampleRate           float64 `mapstructure:"CLIENT_SAMPLE_RATE"`
	RoundsPerGlobalUpdate      int     `mapstructure:"ROUNDS_PER_GLOBAL_UPDATE"`
	SecureAggregationThreshold int     `mapstructure:"SECURE_AGGREGATION_THRESHOLD"`
	RoundTimeoutSeconds        int     `mapstructure:"ROUND_TIMEOUT_SECONDS"`
	AcceptUnsolicitedUpdates   bool    `mapstructure:"ACCEPT_UNSOLICITED_UPDATES"`
	ModalityWeightsRaw         string  `mapstructure:"MODALITY_WEIGHTS"`

	modalityWeights map[string]float64
}

type PrivacyConfig struct {
	NoiseMultiplier             float64 `mapstructure:"NOISE_MULTIPLIER"`
	MaxGradNorm                 float64 `mapstructure:"MAX_GRAD_NORM"`
	BudgetCostPerRound          float64 `mapstructure:"BUDGET_COST_PER_ROUND"`
	ModalityNoiseMultipliersRaw string  `mapstructure:"MODALITY_NOISE_MULTIPLIERS"`

	modalityNoiseMultipliers map[string]float64
}

type AWSConfig struct {
	Region          string `mapstructure:"REGION"`
	BucketName      string `mapstructure:"BUCKET_NAME"`
	AccessKeyID     string `mapstructure:"ACCESS_KEY_ID"`
	SecretAccessKey string `mapstructure:"SECRET_ACCESS_KEY"`
}

type MonitorConfig struct {
	SweepIntervalSeconds int `mapstructure:"SWEEP_INTERVAL_SECONDS"`
}

func (fc *FederationConfig) RoundTimeout() time.Duration {
	return time.Duration(fc.RoundTimeoutSeconds) * time.Second
}

// ModalityWeights returns the parsed fusion weight table, e.g.
// "image=0.3,time_series=0.4,sensor=0.2,text=0.1".
func (fc *FederationConfig) ModalityWeights() map[string]float64 {
	return fc.modalityWeights
}

func (pc *PrivacyConfig) ModalityNoiseMultipliers() map[string]float64 {
	return pc.modalityNoiseMultipliers
}

func (mc *MonitorConfig) SweepInterval() time.Duration {
	return time.Duration(mc.SweepIntervalSeconds) * time.Second
}

func (dc *DatabaseConfig) GetConnectionURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dc.Username,
		dc.Password,
		dc.Host,
		dc.Port,
		dc.DatabaseName,
	)
}

type ConfigManager struct {
	config     *Config
	configPath string
	mutex      sync.RWMutex
}

var (
	instance *ConfigManager
	once     sync.Once
)

func GetConfigManager() *ConfigManager {
	once.Do(func() {
		instance = &ConfigManager{
			configPath: ".env",
		}
	})
	return instance
}

func (cm *ConfigManager) SetConfigPath(path string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	cm.configPath = path
	cm.config = nil
}

func (cm *ConfigManager) GetConfig() (*Config, error) {
	cm.mutex.RLock()
	if cm.config != nil {
		defer cm.mutex.RUnlock()
		return cm.config, nil
	}
	cm.mutex.RUnlock()

	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.config != nil {
		return cm.config, nil
	}

	var err error
	cm.config, err = loadConfigFile(cm.configPath)
	return cm.config, err
}

func (cm *ConfigManager) ReloadConfig() (*Config, error) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	var err error
	cm.config, err = loadConfigFile(cm.configPath)
	return cm.config, err
}

func (cm *ConfigManager) GetConfigPath() string {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return cm.configPath
}

func loadConfigFile(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	v.SetDefault("SERVER", map[string]interface{}{
		"HOST":     v.GetString("SERVER_HOST"),
		"PORT":     v.GetString("SERVER_PORT"),
		"ENDPOINT": v.GetString("SERVER_ENDPOINT"),
	})

	v.SetDefault("DATABASE", map[string]interface{}{
		"USERNAME":      v.GetString("DATABASE_USERNAME"),
		"PASSWORD":      v.GetString("DATABASE_PASSWORD"),
		"HOST":          v.GetString("DATABASE_HOST"),
		"PORT":          v.GetString("DATABASE_PORT"),
		"DATABASE_NAME": v.GetString("DATABASE_DATABASE_NAME"),
	})

	v.SetDefault("FEDERATION", map[string]interface{}{
		"AGGREGATION_METHOD":           stringOrDefault(v, "FEDERATION_AGGREGATION_METHOD", "uniform_average"),
		"MIN_CLIENTS_PER_ROUND":        intOrDefault(v, "FEDERATION_MIN_CLIENTS_PER_ROUND", 2),
		"CLIENT_SAMPLE_RATE":           floatOrDefault(v, "FEDERATION_CLIENT_SAMPLE_RATE", 1.0),
		"ROUNDS_PER_GLOBAL_UPDATE":     intOrDefault(v, "FEDERATION_ROUNDS_PER_GLOBAL_UPDATE", 1),
		"SECURE_AGGREGATION_THRESHOLD": intOrDefault(v, "FEDERATION_SECURE_AGGREGATION_THRESHOLD", 1),
		"ROUND_TIMEOUT_SECONDS":        intOrDefault(v, "FEDERATION_ROUND_TIMEOUT_SECONDS", 300),
		"ACCEPT_UNSOLICITED_UPDATES":   v.GetBool("FEDERATION_ACCEPT_UNSOLICITED_UPDATES"),
		"MODALITY_WEIGHTS":             stringOrDefault(v, "FEDERATION_MODALITY_WEIGHTS", "image=0.3,time_series=0.4,sensor=0.2,text=0.1"),
	})

	v.SetDefault("PRIVACY", map[string]interface{}{
		"NOISE_MULTIPLIER":           floatOrDefault(v, "PRIVACY_NOISE_MULTIPLIER", 0.1),
		"MAX_GRAD_NORM":              floatOrDefault(v, "PRIVACY_MAX_GRAD_NORM", 1.0),
		"BUDGET_COST_PER_ROUND":      floatOrDefault(v, "PRIVACY_BUDGET_COST_PER_ROUND", 0.05),
		"MODALITY_NOISE_MULTIPLIERS": v.GetString("PRIVACY_MODALITY_NOISE_MULTIPLIERS"),
	})

	v.SetDefault("AWS", map[string]interface{}{
		"REGION":            v.GetString("AWS_REGION"),
		"BUCKET_NAME":       v.GetString("AWS_BUCKET_NAME"),
		"ACCESS_KEY_ID":     v.GetString("AWS_ACCESS_KEY_ID"),
		"SECRET_ACCESS_KEY": v.GetString("AWS_SECRET_ACCESS_KEY"),
	})

	v.SetDefault("MONITOR", map[string]interface{}{
		"SWEEP_INTERVAL_SECONDS": intOrDefault(v, "MONITOR_SWEEP_INTERVAL_SECONDS", 30),
	})

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}

	if config.Database.Username == "" || config.Database.Password == "" ||
		config.Database.Host == "" || config.Database.Port == "" ||
		config.Database.DatabaseName == "" {
		return nil, fmt.Errorf("missing required database configuration")
	}

	if err := config.Federation.parseAndValidate(); err != nil {
		return nil, fmt.Errorf("invalid federation configuration: %w", err)
	}
	if err := config.Privacy.parseAndValidate(); err != nil {
		return nil, fmt.Errorf("invalid privacy configuration: %w", err)
	}

	return &config, nil
}

func (fc *FederationConfig) parseAndValidate() error {
	switch fc.AggregationMethod {
	case "", "uniform_average", "fedprox", "coordinate_median":
	default:
		return fmt.Errorf("unknown aggregation method %q", fc.AggregationMethod)
	}
	if fc.AggregationMethod == "" {
		fc.AggregationMethod = "uniform_average"
	}
	if fc.MinClientsPerRound < 1 {
		return fmt.Errorf("min clients per round must be >= 1, got %d", fc.MinClientsPerRound)
	}
	if fc.ClientSampleRate <= 0 || fc.ClientSampleRate > 1 {
		return fmt.Errorf("client sample rate must be in (0,1], got %f", fc.ClientSampleRate)
	}
	if fc.RoundsPerGlobalUpdate < 1 {
		return fmt.Errorf("rounds per global update must be >= 1, got %d", fc.RoundsPerGlobalUpdate)
	}
	if fc.SecureAggregationThreshold < 1 {
		return fmt.Errorf("secure aggregation threshold must be >= 1, got %d", fc.SecureAggregationThreshold)
	}
	if fc.RoundTimeoutSeconds <= 0 {
		return fmt.Errorf("round timeout must be positive, got %d", fc.RoundTimeoutSeconds)
	}

	weights, err := parseWeightTable(fc.ModalityWeightsRaw)
	if err != nil {
		return fmt.Errorf("modality weights: %w", err)
	}
	fc.modalityWeights = weights
	return nil
}

func (pc *PrivacyConfig) parseAndValidate() error {
	if pc.NoiseMultiplier < 0 {
		return fmt.Errorf("noise multiplier must be >= 0, got %f", pc.NoiseMultiplier)
	}
	if pc.MaxGradNorm <= 0 {
		return fmt.Errorf("max grad norm must be > 0, got %f", pc.MaxGradNorm)
	}
	if pc.BudgetCostPerRound < 0 {
		return fmt.Errorf("budget cost per round must be >= 0, got %f", pc.BudgetCostPerRound)
	}

	multipliers, err := parseWeightTable(pc.ModalityNoiseMultipliersRaw)
	if err != nil {
		return fmt.Errorf("modality noise multipliers: %w", err)
	}
	pc.modalityNoiseMultipliers = multipliers
	return nil
}

// SetModalityWeights replaces the parsed weight table. Intended for wiring
// configs in tests and embedded use.
func (fc *FederationConfig) SetModalityWeights(weights map[string]float64) {
	fc.modalityWeights = weights
}

func (pc *PrivacyConfig) SetModalityNoiseMultipliers(multipliers map[string]float64) {
	pc.modalityNoiseMultipliers = multipliers
}

// parseWeightTable parses "key=value,key=value" tables used for modality
// weights and per-modality noise multipliers.
func parseWeightTable(raw string) (map[string]float64, error) {
	table := make(map[string]float64)
	if strings.TrimSpace(raw) == "" {
		return table, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed entry %q", pair)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("malformed value in %q: %w", pair, err)
		}
		if value < 0 {
			return nil, fmt.Errorf("negative weight in %q", pair)
		}
		table[strings.TrimSpace(parts[0])] = value
	}
	return table, nil
}

func stringOrDefault(v *viper.Viper, key, fallback string) string {
	if s := v.GetString(key); s != "" {
		return s
	}
	return fallback
}

func intOrDefault(v *viper.Viper, key string, fallback int) int {
	if v.IsSet(key) {
		return v.GetInt(key)
	}
	return fallback
}

func floatOrDefault(v *viper.Viper, key string, fallback float64) float64 {
	if v.IsSet(key) {
		return v.GetFloat64(key)
	}
	return fallback
}
