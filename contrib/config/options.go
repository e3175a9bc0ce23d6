package config

import (
	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Option is config option.
type Option func(*options)

type options struct {
	sources []Source
}

// WithSource appends config sources; later sources win on overlap.
func WithSource(s ...Source) Option {
	return func(o *options) {
		o.sources = append(o.sources, s...)
	}
}

type Unmarshal func(data []byte, v any) error

func toUnmarshal(format string) Unmarshal {
	switch format {
	case "yaml", "yml":
		return yaml.Unmarshal
	default:
		return json.Unmarshal
	}
}
