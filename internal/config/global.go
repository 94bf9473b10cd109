// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces the platform lookup in ConfigDir. It exists for
// tests of config.cue handling, where HOME and XDG_CONFIG_HOME cannot steer
// os.UserHomeDir on every platform.
var configDirOverride string

// SetConfigDirOverride makes ConfigDir return dir until restore is called.
// Tests using it must not run in parallel.
func SetConfigDirOverride(dir string) (restore func()) {
	prev := configDirOverride
	configDirOverride = dir
	return func() { configDirOverride = prev }
}
