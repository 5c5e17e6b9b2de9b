package config

// Server configures the collab_server binary.
type Server struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`
	Cors struct {
		Origins []string `mapstructure:"origins"`
	} `mapstructure:"cors"`
}

// Client configures the collab_client binary.
type Client struct {
	Server struct {
		URL string `mapstructure:"url"`
	} `mapstructure:"server"`
	Node struct {
		ID string `mapstructure:"id"`
	} `mapstructure:"node"`
	Reconnect struct {
		DelaySeconds int `mapstructure:"delay_seconds"`
	} `mapstructure:"reconnect"`
	Cursor struct {
		Threshold  int `mapstructure:"threshold"`
		IntervalMS int `mapstructure:"interval_ms"`
	} `mapstructure:"cursor"`
}
