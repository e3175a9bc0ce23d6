// Package pathmap translates mount-local file paths into link-server
// paths and decides which paths bypass the shim entirely.
package pathmap

import "strings"

type Mapper struct {
	prefixRemove string
	prefixAdd    string
	ignore       []string
}

func New(prefixRemove, prefixAdd string, ignore []string) *Mapper {
	return &Mapper{
		prefixRemove: strings.TrimSuffix(prefixRemove, "/"),
		prefixAdd:    strings.TrimSuffix(prefixAdd, "/"),
		ignore:       ignore,
	}
}

// Map strips the configured mount prefix and prepends the link prefix.
func (m *Mapper) Map(path string) string {
	if m.prefixRemove != "" && strings.HasPrefix(path, m.prefixRemove) {
		path = path[len(m.prefixRemove):]
	}
	if m.prefixAdd != "" {
		path = m.prefixAdd + path
	}
	return path
}

// Bypass reports whether the path is served by the metadata server
// directly instead of going through the link server.
func (m *Mapper) Bypass(path string) bool {
	for _, prefix := range m.ignore {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
