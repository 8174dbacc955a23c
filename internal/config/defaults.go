package config

import (
	"bytes"
	_ "embed"

	"github.com/spf13/viper"
)

// DefaultTOML is the embedded default configuration document. It must
// always parse and validate; the loader falls back to it when no config
// file exists anywhere in the search chain.
//
//go:embed default.toml
var DefaultTOML string

// Default returns the configuration produced by the embedded default
// document. Panics if the embedded document is broken, since that is a
// build defect rather than a runtime condition.
func Default() *Config {
	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewReader([]byte(DefaultTOML))); err != nil {
		panic("config: embedded default.toml does not parse: " + err.Error())
	}
	cfg, err := unmarshal(v)
	if err != nil {
		panic("config: embedded default.toml does not decode: " + err.Error())
	}
	return cfg
}
