package litdrive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AutoWireConfig contains the configuration for the backend autowire.
type AutoWireConfig struct {
	Drives    map[string]ProviderConfig
	Providers map[string]BackendProvider
}

// ProviderConfig is the configuration for the backends of a single protocol.
type ProviderConfig struct {
	Provider string
	Config   map[string]interface{}
}

// NewAutoWire returns a new autowire configuration. The given registration
// functions add the available providers (e.g. memory.Register, s3.Register).
func NewAutoWire(registrations ...func(AutoWireConfig)) AutoWireConfig {
	cfg := AutoWireConfig{
		Drives:    make(map[string]ProviderConfig),
		Providers: make(map[string]BackendProvider),
	}

	for _, register := range registrations {
		register(cfg)
	}

	return cfg
}

// RegisterProvider registers a backend provider under a provider name.
func (cfg AutoWireConfig) RegisterProvider(name string, provider BackendProvider) {
	cfg.Providers[name] = provider
}

// Configure binds a protocol to a provider.
func (cfg AutoWireConfig) Configure(protocol, provider string, config map[string]interface{}) {
	if config == nil {
		config = make(map[string]interface{})
	}

	cfg.Drives[normalizeProtocol(protocol)] = ProviderConfig{
		Provider: provider,
		Config:   config,
	}
}

// NewRegistry builds a Registry from the configured protocol bindings.
// Backends themselves are created lazily on first use of a drive identity,
// so configuration errors inside a provider surface on the first operation
// against a drive of that protocol.
func (cfg AutoWireConfig) NewRegistry() (*Registry, error) {
	r := NewRegistry()

	for protocol, providercfg := range cfg.Drives {
		provider, ok := cfg.Providers[providercfg.Provider]
		if !ok {
			return nil, UnknownProviderError{Provider: providercfg.Provider}
		}

		if err := r.Register(protocol, provider, WithProviderConfig(providercfg.Config), Replace()); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// UnknownProviderError means the configuration references a provider that
// was not registered with the autowire.
type UnknownProviderError struct {
	Provider string
}

func (err UnknownProviderError) Error() string {
	return fmt.Sprintf("unknown storage provider '%s'", err.Provider)
}

// Load loads the drive configuration from a file.
// It checks against provided file extensions and
// returns an error if the filetype is unsupported.
func (cfg AutoWireConfig) Load(path string) error {
	ext := filepath.Ext(path)

	switch ext {
	case ".yml":
		fallthrough
	case ".yaml":
		return cfg.LoadYAML(path)
	default:
		return fmt.Errorf("unknown file extension for drive configuration '%s'", ext)
	}
}

// LoadYAML loads the drive configuration from a YAML file.
func (cfg AutoWireConfig) LoadYAML(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return cfg.LoadYAMLReader(f)
}

// LoadYAMLReader loads the drive configuration from the YAML in r.
func (cfg AutoWireConfig) LoadYAMLReader(r io.Reader) error {
	var yamlcfg autowireYamlConfig
	if err := yaml.NewDecoder(r).Decode(&yamlcfg); err != nil {
		return err
	}

	return yamlcfg.apply(cfg)
}

// map[PROTOCOL]map[CONFIGKEY]interface{}
type autowireYamlConfig map[string]map[string]interface{}

func (cfg autowireYamlConfig) apply(config AutoWireConfig) error {
	drives := make(map[string]ProviderConfig)

	for protocol, drivecfg := range cfg {
		protocol = normalizeProtocol(protocol)

		if _, ok := drives[protocol]; ok {
			return DuplicateDriveConfigError{Protocol: protocol}
		}

		provider, ok := drivecfg["provider"].(string)
		if !ok {
			return InvalidConfigValueError{
				Protocol:  protocol,
				ConfigKey: "provider",
				Expected:  "",
				Provided:  drivecfg["provider"],
			}
		}

		varcfg := make(map[string]interface{})

		if ivarcfg, ok := drivecfg["config"]; ok {
			tcfg, ok := ivarcfg.(map[string]interface{})
			if !ok {
				return InvalidConfigValueError{
					Protocol:  protocol,
					ConfigKey: "config",
					Expected:  new(map[string]interface{}),
					Provided:  ivarcfg,
				}
			}
			varcfg = tcfg
		}

		drives[protocol] = ProviderConfig{
			Provider: provider,
			Config:   varcfg,
		}
	}

	for protocol, providercfg := range drives {
		config.Configure(protocol, providercfg.Provider, providercfg.Config)
	}

	return nil
}

// DuplicateDriveConfigError means the YAML configuration contains multiple
// configurations for a protocol.
type DuplicateDriveConfigError struct {
	Protocol string
}

func (err DuplicateDriveConfigError) Error() string {
	return fmt.Sprintf("duplicate configuration for protocol '%s'", err.Protocol)
}

// InvalidConfigValueError means a configuration value for a protocol has a
// wrong type.
type InvalidConfigValueError struct {
	Protocol  string
	ConfigKey string
	Expected  interface{}
	Provided  interface{}
}

func (err InvalidConfigValueError) Error() string {
	return fmt.Sprintf(
		"invalid config value for protocol '%s': '%s' must be a '%T' but is a '%T'",
		err.Protocol, err.ConfigKey, err.Expected, err.Provided,
	)
}
