// Package config loads streamer configuration from YAML.
//
// ${VAR} references are expanded from the environment before parsing.
// LoadAndValidate is the usual entry point: it applies defaults for every
// optional field and then validates the result.
package config
