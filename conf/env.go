package conf

import (
	"os"
	"strings"

	"github.com/zsbai/embytoalist/pkg/mapstruct"
)

// envBindings maps recognized environment variables onto config fields,
// expressed as dotted paths into the Bootstrap json structure.
var envBindings = map[string]string{
	"LISTEN_ADDR":              "server.addr",
	"LOG_LEVEL":                "logger.level",
	"EMBY_SERVER":              "emby.server",
	"EMBY_API_KEY":             "emby.api_key",
	"ALIST_SERVER":             "alist.server",
	"ALIST_API_KEY":            "alist.api_key",
	"MOUNT_PATH_PREFIX_REMOVE": "path.prefix_remove",
	"MOUNT_PATH_PREFIX_ADD":    "path.prefix_add",
	"IGNORE_PATH":              "path.ignore",
	"CACHE_ENABLE":             "cache.enabled",
	"CACHE_PATH":               "cache.path",
	"CACHE_NEXT_EPISODE":       "cache.next_episode",
	"FORCE_CLIENT_RECONNECT":   "cache.force_reconnect",
	"CACHE_CLIENT_BLACKLIST":   "cache.client_blacklist",
}

// list-valued variables are split on commas before decoding.
var envLists = map[string]struct{}{
	"IGNORE_PATH":            {},
	"CACHE_CLIENT_BLACKLIST": {},
}

// ApplyEnv overlays recognized environment variables onto bc.
// Unset variables leave the current value alone.
func (bc *Bootstrap) ApplyEnv() error {
	return bc.applyEnv(os.LookupEnv)
}

func (bc *Bootstrap) applyEnv(lookup func(string) (string, bool)) error {
	overlay := make(map[string]any)

	for name, path := range envBindings {
		raw, ok := lookup(name)
		if !ok {
			continue
		}

		var value any = raw
		if _, isList := envLists[name]; isList {
			parts := strings.Split(raw, ",")
			items := make([]string, 0, len(parts))
			for _, p := range parts {
				if p = strings.TrimSpace(p); p != "" {
					items = append(items, p)
				}
			}
			value = items
		}

		target := overlay
		keys := strings.Split(path, ".")
		for _, k := range keys[:len(keys)-1] {
			sub, ok := target[k].(map[string]any)
			if !ok {
				sub = make(map[string]any)
				target[k] = sub
			}
			target = sub
		}
		target[keys[len(keys)-1]] = value
	}

	if len(overlay) == 0 {
		return nil
	}
	return mapstruct.Decode(overlay, bc)
}
