package payment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Processor names.
const (
	CyberSource = "cybersource"
	PayPal      = "paypal"
	Stripe      = "stripe"
	IOSIAP      = "ios-iap"
	AndroidIAP  = "android-iap"
)

// Config maps site key to processor name to processor settings.
type Config struct {
	Sites map[string]map[string]ProcessorConfig `yaml:"sites"`
}

// ProcessorConfig is the union of settings used by the processors; each
// processor reads the fields it needs.
type ProcessorConfig struct {
	Mode               string `yaml:"mode"`
	APIURL             string `yaml:"api_url"`
	ClientID           string `yaml:"client_id"`
	ClientSecret       string `yaml:"client_secret"`
	ProfileID          string `yaml:"profile_id"`
	AccessKey          string `yaml:"access_key"`
	SecretKey          string `yaml:"secret_key"`
	PublishableKey     string `yaml:"publishable_key"`
	SharedSecret       string `yaml:"shared_secret"`
	PackageName        string `yaml:"package_name"`
	AccessToken        string `yaml:"access_token"`
	CancelCheckoutPath string `yaml:"cancel_checkout_path"`
	ErrorPath          string `yaml:"error_path"`
	RetryAttempts      int    `yaml:"retry_attempts"`
}

// LoadConfig reads a YAML payment configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read payment config: %w", err)
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse payment config: %w", err)
	}
	for site, processors := range cfg.Sites {
		for name := range processors {
			switch name {
			case CyberSource, PayPal, Stripe, IOSIAP, AndroidIAP:
			default:
				return Config{}, fmt.Errorf("parse payment config: site %s: %w: %s", site, ErrUnknownProcessor, name)
			}
		}
	}
	return cfg, nil
}

// Lookup returns the settings of one processor for one site.
func (c Config) Lookup(siteKey, name string) (ProcessorConfig, bool) {
	processors, ok := c.Sites[siteKey]
	if !ok {
		return ProcessorConfig{}, false
	}
	pc, ok := processors[name]
	return pc, ok
}
