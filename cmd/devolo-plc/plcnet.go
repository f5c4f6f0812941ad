package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/2Fake/devolo-plc-api/internal/ui"
	"github.com/2Fake/devolo-plc-api/pkg/device"
)

func init() {
	rootCmd.AddCommand(networkCmd)
	rootCmd.AddCommand(identifyCmd)
	rootCmd.AddCommand(pairCmd)
	rootCmd.AddCommand(renameCmd)
}

// networkCmd shows the powerline network
var networkCmd = &cobra.Command{
	Use:   "network",
	Short: "Show the powerline network",
	Long: `Show the powerline network as seen by the selected adapter: every adapter
in the same logical network and the data rates between them.`,
	Example: `  devolo-plc network --device office
  devolo-plc network --device office --format json`,
	Args: cobra.NoArgs,
	RunE: runNetwork,
}

type plcDevice struct {
	Name       string   `json:"name"`
	Product    string   `json:"product"`
	MAC        string   `json:"mac"`
	IP         string   `json:"ip,omitempty"`
	Topology   string   `json:"topology"`
	Technology string   `json:"technology"`
	Firmware   string   `json:"firmware"`
	Router     bool     `json:"attached_to_router"`
	Bridged    []string `json:"bridged_devices,omitempty"`
}

type plcRate struct {
	From   string  `json:"from"`
	To     string  `json:"to"`
	RxRate float64 `json:"rx_rate"`
	TxRate float64 `json:"tx_rate"`
}

type plcNetwork struct {
	Devices   []plcDevice `json:"devices"`
	DataRates []plcRate   `json:"data_rates"`
}

func runNetwork(cmd *cobra.Command, args []string) error {
	return withDevice(cmd.Context(), func(d *device.Device) error {
		if err := requirePlcNet(d, "network"); err != nil {
			return err
		}
		overview, err := d.PlcNet.NetworkOverview(cmd.Context())
		if err != nil {
			return err
		}

		out := plcNetwork{Devices: []plcDevice{}, DataRates: []plcRate{}}
		names := make(map[string]string, len(overview.Devices))
		deviceRows := make([][]string, 0, len(overview.Devices))
		for _, dev := range overview.Devices {
			entry := plcDevice{
				Name:       dev.UserDeviceName,
				Product:    dev.ProductName,
				MAC:        dev.MACAddress,
				IP:         dev.IPv4Address,
				Topology:   dev.Topology.String(),
				Technology: dev.Technology.String(),
				Firmware:   dev.FriendlyVersion,
				Router:     dev.AttachedToRouter,
				Bridged:    dev.BridgedDevices,
			}
			out.Devices = append(out.Devices, entry)

			name := entry.Name
			if name == "" {
				name = entry.Product
			}
			names[entry.MAC] = name
			router := ""
			if entry.Router {
				router = ui.SuccessMarker
			}
			deviceRows = append(deviceRows, []string{name, entry.MAC, entry.IP, entry.Topology, entry.Technology, entry.Firmware, router})
		}

		rateRows := make([][]string, 0, len(overview.DataRates))
		for _, rate := range overview.DataRates {
			out.DataRates = append(out.DataRates, plcRate{From: rate.MACAddressFrom, To: rate.MACAddressTo, RxRate: rate.RxRate, TxRate: rate.TxRate})
			rateRows = append(rateRows, []string{
				labelMAC(names, rate.MACAddressFrom),
				labelMAC(names, rate.MACAddressTo),
				fmt.Sprintf("%.1f", rate.TxRate),
				fmt.Sprintf("%.1f", rate.RxRate),
			})
		}

		p := newPrinter(cmd.OutOrStdout())
		if p.format == formatJSON {
			return p.json(out)
		}
		if err := p.table(fmt.Sprintf("%d powerline adapter(s)", len(out.Devices)),
			[]string{"Name", "MAC", "IP", "Topology", "Technology", "Firmware", "Router"}, deviceRows, out); err != nil {
			return err
		}
		if len(rateRows) == 0 {
			return nil
		}
		return p.table("Data rates (Mbps)", []string{"From", "To", "Tx", "Rx"}, rateRows, out)
	})
}

func labelMAC(names map[string]string, mac string) string {
	if name := names[mac]; name != "" {
		return name + " (" + mac + ")"
	}
	return mac
}

// identifyCmd makes the PLC LED blink
var identifyCmd = &cobra.Command{
	Use:   "identify [start|stop]",
	Short: "Make the powerline LED blink to find the adapter",
	Example: `  devolo-plc identify --device office
  devolo-plc identify stop --device office`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"start", "stop"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 && args[0] == "stop" {
			return plcAction(cmd, "identify", "Identification stopped", func(ctx context.Context, d *device.Device) (bool, error) {
				return d.PlcNet.IdentifyDeviceStop(ctx)
			})
		}
		if len(args) == 1 && args[0] != "start" {
			return fmt.Errorf("invalid value %q (use start or stop)", args[0])
		}
		return plcAction(cmd, "identify", "Identification started", func(ctx context.Context, d *device.Device) (bool, error) {
			return d.PlcNet.IdentifyDeviceStart(ctx)
		})
	},
}

// pairCmd starts pairing
var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Start powerline pairing",
	Long: `Start pairing on the selected adapter. Press the pairing button of the
new adapter within two minutes to join it to the network.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return plcAction(cmd, "pair", "Pairing started", func(ctx context.Context, d *device.Device) (bool, error) {
			return d.PlcNet.PairDevice(ctx)
		})
	},
}

// renameCmd sets the name shown in the powerline network
var renameCmd = &cobra.Command{
	Use:     "rename <name>",
	Short:   "Set the name of the adapter in the powerline network",
	Example: `  devolo-plc rename "Living room" --device office`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.TrimSpace(args[0])
		if name == "" {
			return fmt.Errorf("the name must not be empty")
		}
		return plcAction(cmd, "rename", "Adapter renamed to "+name, func(ctx context.Context, d *device.Device) (bool, error) {
			return d.PlcNet.SetUserDeviceName(ctx, name)
		})
	},
}

// plcAction runs a plcnet API call that only reports success.
func plcAction(cmd *cobra.Command, name, title string, call func(context.Context, *device.Device) (bool, error)) error {
	return withDevice(cmd.Context(), func(d *device.Device) error {
		if err := requirePlcNet(d, name); err != nil {
			return err
		}
		ok, err := call(cmd.Context(), d)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("the device rejected %q", name)
		}
		return newPrinter(cmd.OutOrStdout()).result(title, []ui.Detail{
			{Key: "Device", Value: nameOf(d)},
			{Key: "PLC MAC", Value: d.PlcNet.MAC()},
		}, map[string]bool{"success": true})
	})
}
