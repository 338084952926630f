package paths

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	appName = "eosimg"

	// Name of the defaults file inside the config directory.
	configFileName = "config.json"
)

// Path to the configuration directory.
//
//	Linux:   $XDG_CONFIG_HOME/eosimg or ~/.config/eosimg
//	macOS:   ~/Library/Application Support/eosimg
func Config() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// Path to the JSON file holding flag defaults.
//
//	Linux:   $XDG_CONFIG_HOME/eosimg/config.json
//	macOS:   ~/Library/Application Support/eosimg/config.json
func ConfigFile() string {
	return filepath.Join(Config(), configFileName)
}
