// Devolo-plc controls devolo powerline and WiFi devices on the local network.
//
// It discovers devices via mDNS, shows their details and drives the device
// and powerline APIs they offer: LED, guest WiFi, firmware updates, restarts,
// pairing and the powerline network overview.
//
// Usage:
//
//	devolo-plc [command] [flags]
//
// Devices are chosen with --device, which takes an IP address, a serial
// number or a nickname remembered from an earlier scan. Without --device the
// network is scanned and the single device found is used.
// See 'devolo-plc --help' for available commands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/2Fake/devolo-plc-api/internal/config"
	"github.com/2Fake/devolo-plc-api/internal/logging"
	"github.com/2Fake/devolo-plc-api/internal/version"
)

// PasswordEnvVar supplies the device password when --password is not given.
const PasswordEnvVar = "DEVOLO_PLC_PASSWORD"

// Global flags
var (
	deviceRef    string
	password     string
	logLevel     string
	outputFormat string
)

// registry is loaded before every command.
var registry *config.Registry

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()

	if err != nil {
		printError(os.Stderr, outputFormat, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "devolo-plc",
	Short: "Control devolo powerline devices",
	Long: `A command line client for devolo powerline and WiFi devices.

Devices are found via mDNS. Their device API (LED, WiFi, firmware, restart)
and powerline API (network overview, pairing, identification) are used
depending on what each device offers.`,
	Version:           version.Full(),
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVarP(&deviceRef, "device", "d", "", "Device IP address, serial number or nickname (skips scanning)")
	rootCmd.PersistentFlags().StringVarP(&password, "password", "p", "", "Device password (default $"+PasswordEnvVar+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent if unset")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "", "Output format (detailed, json)")

	rootCmd.AddCommand(versionCmd)
}

// setup initializes logging, the registry and the defaults of global flags.
func setup(cmd *cobra.Command, args []string) error {
	reg, err := config.LoadRegistry()
	if err != nil {
		reg = config.NewRegistry()
		defer logging.Warn("Ignoring unreadable configuration", zap.Error(err))
	}
	registry = reg

	if logLevel == "" && os.Getenv(logging.LogLevelEnvVar) == "" {
		logLevel = registry.Preferences.LogLevel
	}
	if err := logging.Initialize(logLevel); err != nil {
		return err
	}

	if outputFormat == "" {
		outputFormat = registry.Preferences.Format
	}
	switch outputFormat {
	case "", formatDetailed:
		outputFormat = formatDetailed
	case formatJSON:
	default:
		return fmt.Errorf("unknown output format %q (use %s or %s)", outputFormat, formatDetailed, formatJSON)
	}

	if password == "" {
		password = os.Getenv(PasswordEnvVar)
	}

	logging.Debug("Starting", zap.String("command", cmd.CommandPath()), zap.String("version", version.Version))
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "devolo-plc %s (commit: %s)\n", version.Version, version.Commit)
	},
}
