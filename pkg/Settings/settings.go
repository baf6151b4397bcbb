package Settings

import "github.com/BurntSushi/toml"

var config Config

func GetConfig() Config {
	return config
}

// ReadConfig loads the toml config file. An empty path keeps the
// built-in defaults, so the server can run without a config file.
func ReadConfig(configPath string) error {
	if configPath != "" {
		if _, err := toml.DecodeFile(configPath, &config); err != nil {
			return err
		}
	}
	config.fixup()
	return nil
}
