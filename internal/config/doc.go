// Package config manages the devolo-plc CLI configuration file.
//
// The file is YAML and remembers devices seen by scans and connections,
// keyed by serial number, together with user preferences such as the scan
// timeout and the default log level. Devices can be referred to by IP
// address, serial number or nickname; Lookup resolves all three.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/devolo-plc/config.yaml or $HOME/.config/devolo-plc/config.yaml
//   - macOS: $HOME/.config/devolo-plc/config.yaml
//   - Windows: %LOCALAPPDATA%\devolo-plc\config.yaml
//
// DEVOLO_PLC_CONFIG overrides the location.
//
// # Security
//
// Device passwords are never written to the file.
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	registry.SetDeviceNickname("1234567890123456", "Office")
//	if err := registry.Save(); err != nil {
//	    log.Fatal(err)
//	}
package config
