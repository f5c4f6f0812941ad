package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/2Fake/devolo-plc-api/internal/ui"
	"github.com/2Fake/devolo-plc-api/pkg/device"
	"github.com/2Fake/devolo-plc-api/pkg/deviceapi"
)

// Command flags
var (
	scanTimeout      int
	guestDuration    time.Duration
	firmwareUpdate   bool
	resetConfirmed   bool
	supportOutputDir string
)

func init() {
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(nicknameCmd)
	rootCmd.AddCommand(ledCmd)
	rootCmd.AddCommand(guestWifiCmd)
	rootCmd.AddCommand(wifiCmd)
	rootCmd.AddCommand(firmwareCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(supportCmd)
}

// scanCmd discovers devices on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for devolo devices on the network",
	Long: `Scan for devolo devices using mDNS/DNS-SD discovery.

Every device answering during the scan is listed and remembered, so that it
can later be selected with --device <serial> or by nickname.`,
	Example: `  # Scan with the configured timeout (default 3 seconds)
  devolo-plc scan

  # Longer scan for busy networks
  devolo-plc scan --timeout 10`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", 0, "Scan timeout in seconds (default from configuration)")
}

type scannedDevice struct {
	SerialNumber string `json:"serial_number"`
	IP           string `json:"ip"`
	MTNumber     string `json:"mt_number"`
	Nickname     string `json:"nickname,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanTimeout > 0 {
		registry.Preferences.ScanTimeout = scanTimeout
	}

	devices, err := scan(cmd.Context())
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	if len(devices) == 0 {
		return p.warning("No devices found", []ui.Detail{
			{Key: "Timeout", Value: registry.Preferences.ScanTimeoutDuration().String()},
			{Key: "Hint", Value: "Try a longer --timeout or pass --device"},
		}, []scannedDevice{})
	}

	found := make([]scannedDevice, 0, len(devices))
	for serial, d := range devices {
		entry := scannedDevice{SerialNumber: serial, IP: d.IP.String(), MTNumber: d.MTNumber}
		if known := registry.GetDevice(serial); known != nil {
			entry.Nickname = known.Nickname
		}
		found = append(found, entry)
	}
	sort.Slice(found, func(i, j int) bool { return found[i].IP < found[j].IP })

	rows := make([][]string, 0, len(found))
	for _, d := range found {
		rows = append(rows, []string{d.SerialNumber, d.IP, d.MTNumber, d.Nickname})
	}
	return p.table(fmt.Sprintf("Found %d device(s)", len(found)),
		[]string{"Serial", "IP", "MT", "Nickname"}, rows, found)
}

// infoCmd shows what a device announces about itself
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show device details",
	Long: `Connect to a device and show its details: product, firmware, powerline
MAC address and technology, and the APIs and features it offers.`,
	Example: `  devolo-plc info --device 192.168.1.100
  devolo-plc info --device office --format json`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

type deviceInfo struct {
	IP              string   `json:"ip"`
	SerialNumber    string   `json:"serial_number"`
	MTNumber        string   `json:"mt_number"`
	Product         string   `json:"product,omitempty"`
	MAC             string   `json:"mac,omitempty"`
	Technology      string   `json:"technology,omitempty"`
	FirmwareVersion string   `json:"firmware_version,omitempty"`
	FirmwareDate    string   `json:"firmware_date"`
	Hostname        string   `json:"hostname,omitempty"`
	Multicast       bool     `json:"multicast"`
	DeviceAPI       string   `json:"device_api,omitempty"`
	PlcNetAPI       string   `json:"plcnet_api,omitempty"`
	Features        []string `json:"features,omitempty"`
	Uptime          string   `json:"uptime,omitempty"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	return withDevice(cmd.Context(), func(d *device.Device) error {
		info := describe(d)

		if d.DeviceAPI != nil && d.DeviceAPI.HasFeature(deviceapi.FeatureRestart) {
			if uptime, err := d.DeviceAPI.Uptime(cmd.Context()); err == nil {
				info.Uptime = uptime.String()
			}
		}

		details := []ui.Detail{
			{Key: "IP", Value: info.IP},
			{Key: "Serial number", Value: info.SerialNumber},
			{Key: "MT number", Value: info.MTNumber},
			{Key: "Product", Value: info.Product},
			{Key: "Firmware", Value: info.FirmwareVersion},
			{Key: "Firmware date", Value: info.FirmwareDate},
			{Key: "Hostname", Value: info.Hostname},
		}
		if info.MAC != "" {
			details = append(details,
				ui.Detail{Key: "PLC MAC", Value: info.MAC},
				ui.Detail{Key: "Technology", Value: info.Technology},
			)
		}
		if info.DeviceAPI != "" {
			details = append(details,
				ui.Detail{Key: "Device API", Value: info.DeviceAPI},
				ui.Detail{Key: "Features", Value: strings.Join(info.Features, ", ")},
			)
		}
		if info.PlcNetAPI != "" {
			details = append(details, ui.Detail{Key: "PLC net API", Value: info.PlcNetAPI})
		}
		if info.Uptime != "" {
			details = append(details, ui.Detail{Key: "Uptime", Value: info.Uptime})
		}
		if info.Multicast {
			details = append(details, ui.Detail{Key: "Discovery", Value: "multicast"})
		}

		return newPrinter(cmd.OutOrStdout()).result(nameOf(d), details, info)
	})
}

func describe(d *device.Device) deviceInfo {
	info := deviceInfo{
		IP:              d.IP.String(),
		SerialNumber:    d.SerialNumber,
		MTNumber:        d.MTNumber,
		Product:         d.Product,
		MAC:             d.MAC,
		Technology:      d.Technology,
		FirmwareVersion: d.FirmwareVersion,
		FirmwareDate:    d.FirmwareDate.Format(time.DateOnly),
		Hostname:        d.Hostname,
		Multicast:       d.Multicast(),
	}
	if d.DeviceAPI != nil {
		info.DeviceAPI = d.DeviceAPI.URL()
		info.Features = d.DeviceAPI.Features()
	}
	if d.PlcNet != nil {
		info.PlcNetAPI = d.PlcNet.URL()
	}
	return info
}

// nameOf returns the nickname of d or its product name.
func nameOf(d *device.Device) string {
	if known := registry.GetDevice(d.SerialNumber); known != nil && known.Nickname != "" {
		return known.Nickname
	}
	if d.Product != "" {
		return d.Product
	}
	return d.IP.String()
}

// nicknameCmd stores a local name for a device
var nicknameCmd = &cobra.Command{
	Use:   "nickname <name>",
	Short: "Remember a nickname for a device",
	Long: `Store a nickname for the selected device in the local configuration.
The nickname can then be used with --device. Use 'rename' to change the
name the device shows in the powerline network.`,
	Example: `  devolo-plc nickname office --device 192.168.1.100
  devolo-plc info --device office`,
	Args: cobra.ExactArgs(1),
	RunE: runNickname,
}

func runNickname(cmd *cobra.Command, args []string) error {
	serial := ""
	if deviceRef != "" {
		_, serial, _ = registry.Lookup(deviceRef)
	}
	if serial == "" {
		err := withDevice(cmd.Context(), func(d *device.Device) error {
			serial = d.SerialNumber
			return nil
		})
		if err != nil {
			return err
		}
	}
	if serial == "" || serial == "0" {
		return fmt.Errorf("the device did not announce a serial number")
	}

	registry.SetDeviceNickname(serial, args[0])
	if err := registry.Save(); err != nil {
		return err
	}
	return newPrinter(cmd.OutOrStdout()).result("Nickname saved", []ui.Detail{
		{Key: "Serial number", Value: serial},
		{Key: "Nickname", Value: args[0]},
	}, map[string]string{"serial_number": serial, "nickname": args[0]})
}

// ledCmd shows or switches the LEDs
var ledCmd = &cobra.Command{
	Use:   "led [on|off]",
	Short: "Show or switch the device LEDs",
	Example: `  devolo-plc led --device office
  devolo-plc led off --device office`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLED,
}

func runLED(cmd *cobra.Command, args []string) error {
	var enable bool
	if len(args) == 1 {
		var err error
		if enable, err = parseOnOff(args[0]); err != nil {
			return err
		}
	}

	return withDevice(cmd.Context(), func(d *device.Device) error {
		if err := requireDeviceAPI(d, "led"); err != nil {
			return err
		}
		ctx := cmd.Context()
		p := newPrinter(cmd.OutOrStdout())

		if len(args) == 0 {
			on, err := d.DeviceAPI.LEDSetting(ctx)
			if err != nil {
				return err
			}
			return p.result("LED status", []ui.Detail{{Key: "LED", Value: onOff(on)}}, map[string]bool{"enabled": on})
		}

		ok, err := d.DeviceAPI.SetLEDSetting(ctx, enable)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("the device rejected the LED setting")
		}
		return p.result("LED switched "+onOff(enable), []ui.Detail{{Key: "Device", Value: nameOf(d)}}, map[string]bool{"enabled": enable})
	})
}

// guestWifiCmd shows or switches the guest WiFi
var guestWifiCmd = &cobra.Command{
	Use:   "guest-wifi [on|off]",
	Short: "Show or switch the guest WiFi",
	Long: `Show the guest WiFi settings of a WiFi device or switch the guest network.
The guest network can be enabled for a limited time with --duration.`,
	Example: `  devolo-plc guest-wifi --device office
  devolo-plc guest-wifi on --duration 2h --device office
  devolo-plc guest-wifi off --device office`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGuestWifi,
}

func init() {
	guestWifiCmd.Flags().DurationVar(&guestDuration, "duration", 0, "Switch the guest WiFi off again after this time (minute resolution)")
}

type guestWifi struct {
	Enabled   bool   `json:"enabled"`
	SSID      string `json:"ssid"`
	Key       string `json:"key,omitempty"`
	Remaining string `json:"remaining,omitempty"`
	URI       string `json:"uri"`
}

func runGuestWifi(cmd *cobra.Command, args []string) error {
	var enable bool
	if len(args) == 1 {
		var err error
		if enable, err = parseOnOff(args[0]); err != nil {
			return err
		}
	}

	return withDevice(cmd.Context(), func(d *device.Device) error {
		if err := requireDeviceAPI(d, "guest-wifi"); err != nil {
			return err
		}
		ctx := cmd.Context()
		p := newPrinter(cmd.OutOrStdout())

		if len(args) == 1 {
			ok, err := d.DeviceAPI.SetWifiGuestAccess(ctx, enable, guestDuration)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("the device rejected the guest WiFi setting")
			}
		}

		guest, err := d.DeviceAPI.WifiGuestAccess(ctx)
		if err != nil {
			return err
		}
		out := guestWifi{
			Enabled: guest.Enabled,
			SSID:    guest.SSID,
			Key:     guest.Key,
			URI:     guest.WifiURI(),
		}
		if guest.RemainingDuration > 0 {
			out.Remaining = (time.Duration(guest.RemainingDuration) * time.Minute).String()
		}

		details := []ui.Detail{
			{Key: "Guest WiFi", Value: onOff(out.Enabled)},
			{Key: "SSID", Value: out.SSID},
			{Key: "Key", Value: out.Key},
		}
		if out.Remaining != "" {
			details = append(details, ui.Detail{Key: "Remaining", Value: out.Remaining})
		}
		details = append(details, ui.Detail{Key: "Join URI", Value: out.URI})

		title := "Guest WiFi"
		if len(args) == 1 {
			title = "Guest WiFi switched " + onOff(enable)
		}
		return p.result(title, details, out)
	})
}

// wifiCmd groups the WiFi commands
var wifiCmd = &cobra.Command{
	Use:   "wifi",
	Short: "WiFi clients, neighbors, repeaters and WPS",
}

func init() {
	wifiCmd.AddCommand(
		&cobra.Command{
			Use:   "stations",
			Short: "List connected WiFi clients",
			Args:  cobra.NoArgs,
			RunE:  runWifiStations,
		},
		&cobra.Command{
			Use:   "neighbors",
			Short: "List neighboring access points (takes a while)",
			Args:  cobra.NoArgs,
			RunE:  runWifiNeighbors,
		},
		&cobra.Command{
			Use:   "repeaters",
			Short: "List repeated access points and the mesh state",
			Args:  cobra.NoArgs,
			RunE:  runWifiRepeaters,
		},
		&cobra.Command{
			Use:   "wps",
			Short: "Start WPS pairing",
			Args:  cobra.NoArgs,
			RunE:  runWifiWPS,
		},
		&cobra.Command{
			Use:   "clone",
			Short: "Start WPS clone to copy the WiFi settings of a router",
			Args:  cobra.NoArgs,
			RunE:  runWifiClone,
		},
	)
}

type wifiStation struct {
	MAC    string `json:"mac"`
	Type   string `json:"type"`
	Band   string `json:"band"`
	RxRate uint32 `json:"rx_rate"`
	TxRate uint32 `json:"tx_rate"`
}

func runWifiStations(cmd *cobra.Command, args []string) error {
	return withDevice(cmd.Context(), func(d *device.Device) error {
		if err := requireDeviceAPI(d, "wifi stations"); err != nil {
			return err
		}
		stations, err := d.DeviceAPI.WifiConnectedStations(cmd.Context())
		if err != nil {
			return err
		}

		out := make([]wifiStation, 0, len(stations))
		rows := make([][]string, 0, len(stations))
		for _, s := range stations {
			out = append(out, wifiStation{MAC: s.MACAddress, Type: s.VAPType.String(), Band: s.Band.String(), RxRate: s.RxRate, TxRate: s.TxRate})
			rows = append(rows, []string{s.MACAddress, s.VAPType.String(), s.Band.String(), strconv.FormatUint(uint64(s.RxRate), 10), strconv.FormatUint(uint64(s.TxRate), 10)})
		}
		return newPrinter(cmd.OutOrStdout()).table(fmt.Sprintf("%d connected station(s)", len(out)),
			[]string{"MAC", "Access point", "Band", "Rx Mbps", "Tx Mbps"}, rows, out)
	})
}

type neighborAP struct {
	MAC     string `json:"mac"`
	SSID    string `json:"ssid"`
	Band    string `json:"band"`
	Channel uint32 `json:"channel"`
	Signal  int32  `json:"signal"`
}

func runWifiNeighbors(cmd *cobra.Command, args []string) error {
	return withDevice(cmd.Context(), func(d *device.Device) error {
		if err := requireDeviceAPI(d, "wifi neighbors"); err != nil {
			return err
		}

		var aps []deviceapi.NeighborAP
		err := ui.RunWithSpinner(cmd.Context(), os.Stderr, "Scanning for neighboring access points", func(ctx context.Context) error {
			var err error
			aps, err = d.DeviceAPI.WifiNeighborAccessPoints(ctx)
			return err
		})
		if err != nil {
			return err
		}

		out := make([]neighborAP, 0, len(aps))
		rows := make([][]string, 0, len(aps))
		for _, ap := range aps {
			out = append(out, neighborAP{MAC: ap.MACAddress, SSID: ap.SSID, Band: ap.Band.String(), Channel: ap.Channel, Signal: ap.Signal})
			rows = append(rows, []string{ap.SSID, ap.MACAddress, ap.Band.String(), strconv.FormatUint(uint64(ap.Channel), 10), strconv.Itoa(int(ap.Signal))})
		}
		return newPrinter(cmd.OutOrStdout()).table(fmt.Sprintf("%d neighbor access point(s)", len(out)),
			[]string{"SSID", "MAC", "Band", "Channel", "Signal dBm"}, rows, out)
	})
}

type repeaters struct {
	MeshEnabled  bool         `json:"mesh_enabled"`
	ControllerIP string       `json:"controller_ip,omitempty"`
	Repeated     []repeatedAP `json:"repeated"`
}

type repeatedAP struct {
	MAC     string `json:"mac"`
	SSID    string `json:"ssid"`
	Band    string `json:"band"`
	Channel uint32 `json:"channel"`
}

func runWifiRepeaters(cmd *cobra.Command, args []string) error {
	return withDevice(cmd.Context(), func(d *device.Device) error {
		if err := requireDeviceAPI(d, "wifi repeaters"); err != nil {
			return err
		}
		ctx := cmd.Context()
		out := repeaters{Repeated: []repeatedAP{}}

		if d.DeviceAPI.HasFeature(deviceapi.FeatureMultiAP) {
			multiAP, err := d.DeviceAPI.WifiMultiAP(ctx)
			if err != nil {
				return err
			}
			out.MeshEnabled = multiAP.Enabled
			out.ControllerIP = multiAP.ControllerIP
		}

		aps, err := d.DeviceAPI.WifiRepeatedAccessPoints(ctx)
		if err != nil {
			return err
		}
		rows := make([][]string, 0, len(aps))
		for _, ap := range aps {
			out.Repeated = append(out.Repeated, repeatedAP{MAC: ap.MACAddress, SSID: ap.SSID, Band: ap.Band.String(), Channel: ap.Channel})
			rows = append(rows, []string{ap.SSID, ap.MACAddress, ap.Band.String(), strconv.FormatUint(uint64(ap.Channel), 10)})
		}

		title := fmt.Sprintf("%d repeated access point(s)", len(aps))
		if out.MeshEnabled {
			title += ", mesh controller " + out.ControllerIP
		}
		return newPrinter(cmd.OutOrStdout()).table(title, []string{"SSID", "MAC", "Band", "Channel"}, rows, out)
	})
}

func runWifiWPS(cmd *cobra.Command, args []string) error {
	return simpleAction(cmd, "wifi wps", "WPS started", func(ctx context.Context, d *device.Device) (bool, error) {
		return d.DeviceAPI.StartWPS(ctx)
	})
}

func runWifiClone(cmd *cobra.Command, args []string) error {
	return simpleAction(cmd, "wifi clone", "WPS clone started", func(ctx context.Context, d *device.Device) (bool, error) {
		return d.DeviceAPI.StartWPSClone(ctx)
	})
}

// simpleAction runs a device API call that only reports success.
func simpleAction(cmd *cobra.Command, name, title string, call func(context.Context, *device.Device) (bool, error)) error {
	return withDevice(cmd.Context(), func(d *device.Device) error {
		if err := requireDeviceAPI(d, name); err != nil {
			return err
		}
		ok, err := call(cmd.Context(), d)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("the device rejected %q", name)
		}
		return newPrinter(cmd.OutOrStdout()).result(title, []ui.Detail{{Key: "Device", Value: nameOf(d)}}, map[string]bool{"success": true})
	})
}

// firmwareCmd checks for and starts firmware updates
var firmwareCmd = &cobra.Command{
	Use:   "firmware",
	Short: "Check for a firmware update",
	Long: `Ask the device whether a firmware update is available. With --update the
update is started right away; the device restarts when it is done.`,
	Example: `  devolo-plc firmware --device office
  devolo-plc firmware --update --device office`,
	Args: cobra.NoArgs,
	RunE: runFirmware,
}

func init() {
	firmwareCmd.Flags().BoolVar(&firmwareUpdate, "update", false, "Start the update if one is available")
}

type firmwareStatus struct {
	Current   string `json:"current"`
	Available bool   `json:"available"`
	New       string `json:"new,omitempty"`
	Started   bool   `json:"started"`
}

func runFirmware(cmd *cobra.Command, args []string) error {
	return withDevice(cmd.Context(), func(d *device.Device) error {
		if err := requireDeviceAPI(d, "firmware"); err != nil {
			return err
		}

		var check *deviceapi.FirmwareCheck
		err := ui.RunWithSpinner(cmd.Context(), os.Stderr, "Checking for firmware updates", func(ctx context.Context) error {
			var err error
			check, err = d.DeviceAPI.CheckFirmwareAvailable(ctx)
			return err
		})
		if err != nil {
			return err
		}
		if check.Result == deviceapi.UpdateCheckFailed {
			return fmt.Errorf("the device could not check for updates")
		}

		status := firmwareStatus{
			Current:   d.FirmwareVersion,
			Available: check.Result == deviceapi.UpdateAvailable,
			New:       check.NewFirmwareVersion,
		}
		p := newPrinter(cmd.OutOrStdout())
		details := []ui.Detail{{Key: "Installed", Value: status.Current}}

		if !status.Available {
			return p.result("Firmware is up to date", details, status)
		}
		details = append(details, ui.Detail{Key: "Available", Value: status.New})
		if !firmwareUpdate {
			details = append(details, ui.Detail{Key: "Install", Value: "run again with --update"})
			return p.warning("Firmware update available", details, status)
		}

		started, err := d.DeviceAPI.StartFirmwareUpdate(cmd.Context())
		if err != nil {
			return err
		}
		if !started {
			return fmt.Errorf("the device did not start the firmware update")
		}
		status.Started = true
		return p.result("Firmware update started", details, status)
	})
}

// restartCmd restarts a device
var restartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the device",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return simpleAction(cmd, "restart", "Restarting", func(ctx context.Context, d *device.Device) (bool, error) {
			return d.DeviceAPI.Restart(ctx)
		})
	},
}

// resetCmd resets a device to factory defaults
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset the device to factory defaults",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "Do not ask for confirmation")
}

func runReset(cmd *cobra.Command, args []string) error {
	return withDevice(cmd.Context(), func(d *device.Device) error {
		if err := requireDeviceAPI(d, "reset"); err != nil {
			return err
		}
		if !resetConfirmed && !ui.FactoryResetConfirmation(cmd.InOrStdin(), cmd.ErrOrStderr(), nameOf(d)) {
			return fmt.Errorf("factory reset cancelled")
		}
		ok, err := d.DeviceAPI.FactoryReset(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("the device rejected the factory reset")
		}
		return newPrinter(cmd.OutOrStdout()).result("Factory reset started", []ui.Detail{{Key: "Device", Value: nameOf(d)}}, map[string]bool{"success": true})
	})
}

// supportCmd downloads the support information
var supportCmd = &cobra.Command{
	Use:   "support",
	Short: "Download the support information of the device",
	Long: `Download the support information the device collects for devolo support.
The files are written to --output, one file per item.`,
	Example: `  devolo-plc support --device office --output ./support`,
	Args:    cobra.NoArgs,
	RunE:    runSupport,
}

func init() {
	supportCmd.Flags().StringVarP(&supportOutputDir, "output", "o", ".", "Directory to write the files to")
}

func runSupport(cmd *cobra.Command, args []string) error {
	return withDevice(cmd.Context(), func(d *device.Device) error {
		if err := requireDeviceAPI(d, "support"); err != nil {
			return err
		}

		var info *deviceapi.SupportInfo
		err := ui.RunWithSpinner(cmd.Context(), os.Stderr, "Collecting support information", func(ctx context.Context) error {
			var err error
			info, err = d.DeviceAPI.SupportInfo(ctx)
			return err
		})
		if err != nil {
			return err
		}

		if err := os.MkdirAll(supportOutputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		written := make([]string, 0, len(info.Items))
		details := make([]ui.Detail, 0, len(info.Items))
		for _, item := range info.Items {
			path := filepath.Join(supportOutputDir, filepath.Base(item.Label))
			if err := os.WriteFile(path, item.Content, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			written = append(written, path)
			details = append(details, ui.Detail{Key: item.Label, Value: fmt.Sprintf("%d bytes", len(item.Content))})
		}
		return newPrinter(cmd.OutOrStdout()).result(fmt.Sprintf("%d support file(s) written", len(written)), details, written)
	})
}
