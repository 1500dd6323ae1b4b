package processor

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/un-ts/sh-syntax/runtime"
)

// Config defines how the processor obtains and runs the engine module.
type Config struct {
	// Path to the engine module file. It may be empty when a Provider is
	// given or when the native runtime is selected.
	Path string `mapstructure:"path"`

	// Runtime is the configuration of the WASM runtime.
	Runtime runtime.Config `mapstructure:"runtime"`
}

// Default fills zero fields.
func (cfg *Config) Default() {
	cfg.Runtime.Default()
}

// Validate validates the configuration
func (cfg *Config) Validate() error {
	return cfg.Runtime.Validate()
}

// DecodeConfig builds a Config from a generic map, such as one read from
// a YAML or JSON document.
func DecodeConfig(m map[string]any) (Config, error) {
	var cfg Config
	if err := decodeMap(m, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", runtime.ErrInvalidConfiguration, err)
	}
	return cfg, nil
}

// DecodeOptions builds Options from a generic map, starting from
// DefaultOptions. Keys match field tags in snake_case or camelCase
// ("keep_comments" or "keepComments"); values are converted weakly, so
// "true" and "4" are accepted for booleans and numbers. Variant accepts
// names such as "posix" as well as numbers.
func DecodeOptions(m map[string]any) (Options, error) {
	opts := DefaultOptions()
	if err := decodeMap(m, &opts); err != nil {
		return Options{}, &UsageError{Option: "options", Reason: err.Error()}
	}
	if err := opts.validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func decodeMap(m map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.TextUnmarshallerHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		MatchName:        matchName,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(m)
}

func matchName(mapKey, fieldName string) bool {
	return strings.EqualFold(strings.ReplaceAll(mapKey, "_", ""), strings.ReplaceAll(fieldName, "_", ""))
}
