// Package types defines common types used across the chat proxy and client.
package types

// LogLevel for HTTP stream logging.
type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelBasic
	LogLevelHeaders
	LogLevelBody
	LogLevelDebug
)

// Identity carries the fixed routing identifiers the run service expects on
// every request.
type Identity struct {
	TenantID  string `toml:"tenant_id" json:"tenant_id"`
	ProjectID string `toml:"project_id" json:"project_id"`
	GraphID   string `toml:"graph_id" json:"graph_id"`
}

// Config holds the application configuration.
type Config struct {
	Listen        string `toml:"listen" json:"listen"`
	UpstreamURL   string `toml:"upstream_url" json:"upstream_url"` // run service base URL, e.g. "http://localhost:3003"
	HealthURL     string `toml:"health_url" json:"health_url"`     // base URL probed by /api/health; defaults to UpstreamURL
	APIKey        string `toml:"api_key" json:"-"`
	UpstreamProxy string `toml:"upstream_proxy" json:"upstream_proxy"` // e.g., "http://127.0.0.1:7890" or "socks5://127.0.0.1:1080"

	Identity Identity `toml:"identity" json:"identity"`

	// Stream tap options
	LogLevel    LogLevel `toml:"log_level" json:"log_level"`         // traffic logging verbosity
	RecordFile  string   `toml:"record_file" json:"record_file"`     // JSONL file for tapped stream events
	LogAllParts bool     `toml:"log_all_parts" json:"log_all_parts"` // mirror every data part into the raw capture

	// ProxyURL is where the chat client reaches the proxy.
	ProxyURL string `toml:"proxy_url" json:"proxy_url"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:3000",
		UpstreamURL: "http://localhost:3003",
		Identity: Identity{
			TenantID:  "default",
			ProjectID: "default",
			GraphID:   "weather-graph",
		},
		LogLevel: LogLevelBasic,
		ProxyURL: "http://127.0.0.1:3000",
	}
}

// HealthBase returns the base URL probed by the health endpoint.
func (c *Config) HealthBase() string {
	if c.HealthURL != "" {
		return c.HealthURL
	}
	return c.UpstreamURL
}
