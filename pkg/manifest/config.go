package manifest

// Config is the top-level manifest: one embedded-runtime bridge and the routes it serves.
type Config struct {
	Bridge Bridge  `toml:"bridge"`
	Routes []Route `toml:"route"`
}

// Bridge is the initialization descriptor. Module and Bootstrap are checked by
// bridge.Init so a missing one is reported through its abort channel.
type Bridge struct {
	Module          string   `toml:"module"`
	Bootstrap       string   `toml:"bootstrap"`
	CriticalSection bool     `toml:"critical_section"`
	ScriptPath      []string `toml:"script_path"`
	// Debug forwards the bridge's diagnostic lines to the callback's Log.
	Debug bool `toml:"debug"`
}

// Validate normalizes the routes and checks each of them.
func (c *Config) Validate() error {
	return c.validateRoutes()
}

// UsesAuthTrans reports whether any route runs the AuthTrans stage.
func (c *Config) UsesAuthTrans() bool {
	for _, r := range c.Routes {
		if r.AuthTrans != nil {
			return true
		}
	}
	return false
}
