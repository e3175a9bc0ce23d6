package conf

import (
	"time"
)

// Bootstrap is the root configuration, assembled from defaults, an optional
// config file and the environment. Environment values always win.
type Bootstrap struct {
	Hostname string  `json:"hostname" yaml:"hostname"`
	PidFile  string  `json:"pidfile" yaml:"pidfile"`
	Logger   *Logger `json:"logger" yaml:"logger"`
	Server   *Server `json:"server" yaml:"server"`
	Emby     *Emby   `json:"emby" yaml:"emby"`
	Alist    *Alist  `json:"alist" yaml:"alist"`
	Path     *Path   `json:"path" yaml:"path"`
	Cache    *Cache  `json:"cache" yaml:"cache"`
}

type Logger struct {
	Level      string `json:"level" yaml:"level"`
	Path       string `json:"path" yaml:"path"`
	AccessPath string `json:"access_path" yaml:"access_path"`
	MaxSize    int    `json:"max_size" yaml:"max_size"`
	MaxAge     int    `json:"max_age" yaml:"max_age"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	Compress   bool   `json:"compress" yaml:"compress"`
}

type Server struct {
	Addr              string        `json:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `json:"read_header_timeout" yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout" yaml:"idle_timeout"`
	MaxHeaderBytes    int           `json:"max_header_bytes" yaml:"max_header_bytes"`
	StopTimeout       time.Duration `json:"stop_timeout" yaml:"stop_timeout"`
	// LocalAPIAllowHosts extends the host names that may reach the
	// internal mux (metrics, probes, version).
	LocalAPIAllowHosts []string     `json:"local_api_allow_hosts" yaml:"local_api_allow_hosts"`
	PProf              *ServerPProf `json:"pprof" yaml:"pprof"`
}

type ServerPProf struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// Emby is the metadata server backend.
type Emby struct {
	Server string `json:"server" yaml:"server"`
	APIKey string `json:"api_key" yaml:"api_key"`
}

// Alist is the link server backend.
type Alist struct {
	Server string        `json:"server" yaml:"server"`
	APIKey string        `json:"api_key" yaml:"api_key"`
	TTL    time.Duration `json:"ttl" yaml:"ttl"`
}

// Path controls mount-path to link-path translation.
type Path struct {
	PrefixRemove string   `json:"prefix_remove" yaml:"prefix_remove"`
	PrefixAdd    string   `json:"prefix_add" yaml:"prefix_add"`
	Ignore       []string `json:"ignore" yaml:"ignore"`
}

type Cache struct {
	Enabled         bool     `json:"enabled" yaml:"enabled"`
	Path            string   `json:"path" yaml:"path"`
	NextEpisode     bool     `json:"next_episode" yaml:"next_episode"`
	ForceReconnect  bool     `json:"force_reconnect" yaml:"force_reconnect"`
	ClientBlacklist []string `json:"client_blacklist" yaml:"client_blacklist"`
}

// Default returns a Bootstrap carrying every default value; file and
// environment sources are merged on top of it.
func Default() *Bootstrap {
	return &Bootstrap{
		Logger: &Logger{
			Level:      "info",
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		},
		Server: &Server{
			Addr:              ":60001",
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
			StopTimeout:       120 * time.Second,
		},
		Emby:  &Emby{Server: "http://127.0.0.1:8096"},
		Alist: &Alist{Server: "http://127.0.0.1:5244", TTL: 600 * time.Second},
		Path:  &Path{},
		Cache: &Cache{Path: "./cache"},
	}
}
