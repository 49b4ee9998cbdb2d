package cli

import (
	"fmt"
	"os"

	"github.com/drone/envsubst"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config mirrors the flags of the `poll` command. Flags and
// SUBSTREAMS_POLL_* environment variables take precedence over it.
type Config struct {
	Endpoint    string   `yaml:"endpoint"`
	TokenEnvVar string   `yaml:"token_envvar"`
	Insecure    bool     `yaml:"insecure"`
	Plaintext   bool     `yaml:"plaintext"`
	Package     string   `yaml:"package"`
	Modules     []string `yaml:"modules"`
	StartBlock  int64    `yaml:"start_block"`
	StopBlock   uint64   `yaml:"stop_block"`

	Policy PolicyConfig `yaml:"policy"`
}

type PolicyConfig struct {
	InitialSnapshot       bool   `yaml:"initial_snapshot"`
	ReturnFirstResult     bool   `yaml:"return_first_result"`
	Match                 string `yaml:"match"`
	ProgressDriven        bool   `yaml:"progress_driven"`
	HighestProcessedBlock uint64 `yaml:"highest_processed_block"`
	CatchUpThreshold      uint64 `yaml:"catch_up_threshold"`
	Strict                bool   `yaml:"strict"`
}

func LoadConfig(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %q: %w", path, err)
	}

	return DecodeConfig(string(content))
}

func DecodeConfig(content string) (*Config, error) {
	expanded, err := envsubst.EvalEnv(content)
	if err != nil {
		return nil, fmt.Errorf("expanding environment variables: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	return config, nil
}

// ApplyDefaults registers the config values as defaults of their flags.
func (c *Config) ApplyDefaults() {
	setDefault := func(key string, value interface{}, isSet bool) {
		if isSet {
			viper.SetDefault(key, value)
		}
	}

	setDefault("endpoint", c.Endpoint, c.Endpoint != "")
	setDefault("substreams-api-token-envvar", c.TokenEnvVar, c.TokenEnvVar != "")
	setDefault("insecure", c.Insecure, c.Insecure)
	setDefault("plaintext", c.Plaintext, c.Plaintext)
	setDefault("package", c.Package, c.Package != "")
	setDefault("modules", c.Modules, len(c.Modules) > 0)
	setDefault("start-block", c.StartBlock, c.StartBlock != 0)
	setDefault("stop-block", c.StopBlock, c.StopBlock != 0)

	setDefault("initial-snapshot", c.Policy.InitialSnapshot, c.Policy.InitialSnapshot)
	setDefault("first-result", c.Policy.ReturnFirstResult, c.Policy.ReturnFirstResult)
	setDefault("match", c.Policy.Match, c.Policy.Match != "")
	setDefault("progress-driven", c.Policy.ProgressDriven, c.Policy.ProgressDriven)
	setDefault("highest-processed-block", c.Policy.HighestProcessedBlock, c.Policy.HighestProcessedBlock != 0)
	setDefault("catch-up-threshold", c.Policy.CatchUpThreshold, c.Policy.CatchUpThreshold != 0)
	setDefault("strict", c.Policy.Strict, c.Policy.Strict)
}
