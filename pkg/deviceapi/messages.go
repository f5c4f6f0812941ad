package deviceapi

import (
	"strings"

	"github.com/2Fake/devolo-plc-api/internal/pb"
)

// LEDState is the state of the device LEDs.
type LEDState uint64

const (
	LEDOn LEDState = iota
	LEDOff
)

// Result is the generic outcome code of device API commands.
type Result uint64

const (
	ResultSuccess Result = iota
	ResultFailed
)

// WifiResult is the outcome code of wifi commands.
type WifiResult uint64

const (
	WifiSuccess WifiResult = iota
	WifiFailed
)

// WifiBand is a wifi frequency band.
type WifiBand uint64

const (
	WifiBandNone WifiBand = iota
	WifiBand2G
	WifiBand5G
)

// String returns the band name
func (b WifiBand) String() string {
	switch b {
	case WifiBand2G:
		return "2.4 GHz"
	case WifiBand5G:
		return "5 GHz"
	default:
		return "unknown"
	}
}

// WifiVAPType is the virtual access point a station is connected to.
type WifiVAPType uint64

const (
	WifiVAPMainAP WifiVAPType = iota
	WifiVAPGuestAP
	WifiVAPStation
)

// String returns the access point type name
func (v WifiVAPType) String() string {
	switch v {
	case WifiVAPMainAP:
		return "main"
	case WifiVAPGuestAP:
		return "guest"
	case WifiVAPStation:
		return "station"
	default:
		return "unknown"
	}
}

// WPAMode is the encryption of a wifi network.
type WPAMode uint64

const (
	WPANone WPAMode = iota
	WPA2
	WPA3
)

// UpdateResult is the outcome of a firmware check or start.
type UpdateResult uint64

const (
	UpdateNotAvailable UpdateResult = iota
	UpdateAvailable
	UpdateCheckFailed
)

const (
	UpdateStarted UpdateResult = iota
	UpdateNotStarted
)

// LedSettings is both the LedSettingsGet response and the LedSettingsSet request.
type LedSettings struct {
	State LEDState
}

func (m *LedSettings) Marshal() []byte {
	return pb.AppendUint(nil, 1, uint64(m.State))
}

func (m *LedSettings) Unmarshal(b []byte) error {
	*m = LedSettings{}
	return pb.Range(b, func(f pb.Field) error {
		if f.Num == 1 {
			m.State = LEDState(f.Varint)
		}
		return nil
	})
}

// ResultResponse is the response of commands that only report success.
type ResultResponse struct {
	Result Result
}

func (m *ResultResponse) Marshal() []byte {
	return pb.AppendUint(nil, 1, uint64(m.Result))
}

func (m *ResultResponse) Unmarshal(b []byte) error {
	*m = ResultResponse{}
	return pb.Range(b, func(f pb.Field) error {
		if f.Num == 1 {
			m.Result = Result(f.Varint)
		}
		return nil
	})
}

// WifiResultResponse is the response of wifi commands.
type WifiResultResponse struct {
	Result WifiResult
}

func (m *WifiResultResponse) Marshal() []byte {
	return pb.AppendUint(nil, 1, uint64(m.Result))
}

func (m *WifiResultResponse) Unmarshal(b []byte) error {
	*m = WifiResultResponse{}
	return pb.Range(b, func(f pb.Field) error {
		if f.Num == 1 {
			m.Result = WifiResult(f.Varint)
		}
		return nil
	})
}

// WifiMultiAP describes the mesh state of the device.
type WifiMultiAP struct {
	Enabled      bool
	ControllerID string
	ControllerIP string
}

func (m *WifiMultiAP) Marshal() []byte {
	var b []byte
	b = pb.AppendBool(b, 1, m.Enabled)
	b = pb.AppendString(b, 2, m.ControllerID)
	b = pb.AppendString(b, 3, m.ControllerIP)
	return b
}

func (m *WifiMultiAP) Unmarshal(b []byte) error {
	*m = WifiMultiAP{}
	return pb.Range(b, func(f pb.Field) error {
		switch f.Num {
		case 1:
			m.Enabled = f.Bool()
		case 2:
			m.ControllerID = f.String()
		case 3:
			m.ControllerIP = f.String()
		}
		return nil
	})
}

// RepeatedAP is an access point repeated by the device.
type RepeatedAP struct {
	MACAddress string
	SSID       string
	Band       WifiBand
	Channel    uint32
	RxRate     uint32
	TxRate     uint32
}

func (m *RepeatedAP) Marshal() []byte {
	var b []byte
	b = pb.AppendString(b, 1, m.MACAddress)
	b = pb.AppendString(b, 2, m.SSID)
	b = pb.AppendUint(b, 3, uint64(m.Band))
	b = pb.AppendUint(b, 4, uint64(m.Channel))
	b = pb.AppendUint(b, 5, uint64(m.RxRate))
	b = pb.AppendUint(b, 6, uint64(m.TxRate))
	return b
}

func (m *RepeatedAP) Unmarshal(b []byte) error {
	*m = RepeatedAP{}
	return pb.Range(b, func(f pb.Field) error {
		switch f.Num {
		case 1:
			m.MACAddress = f.String()
		case 2:
			m.SSID = f.String()
		case 3:
			m.Band = WifiBand(f.Varint)
		case 4:
			m.Channel = uint32(f.Varint)
		case 5:
			m.RxRate = uint32(f.Varint)
		case 6:
			m.TxRate = uint32(f.Varint)
		}
		return nil
	})
}

// RepeatedAPs is the WifiRepeatedAPsGet response.
type RepeatedAPs struct {
	RepeatedAPs []RepeatedAP
}

func (m *RepeatedAPs) Marshal() []byte {
	var b []byte
	for i := range m.RepeatedAPs {
		b = pb.AppendMessage(b, 1, &m.RepeatedAPs[i])
	}
	return b
}

func (m *RepeatedAPs) Unmarshal(b []byte) error {
	*m = RepeatedAPs{}
	return pb.Range(b, func(f pb.Field) error {
		if f.Num != 1 {
			return nil
		}
		var ap RepeatedAP
		if err := ap.Unmarshal(f.Bytes); err != nil {
			return err
		}
		m.RepeatedAPs = append(m.RepeatedAPs, ap)
		return nil
	})
}

// Uptime is the UptimeGet response.
type Uptime struct {
	Uptime uint64
}

func (m *Uptime) Marshal() []byte {
	return pb.AppendUint(nil, 1, m.Uptime)
}

func (m *Uptime) Unmarshal(b []byte) error {
	*m = Uptime{}
	return pb.Range(b, func(f pb.Field) error {
		if f.Num == 1 {
			m.Uptime = f.Varint
		}
		return nil
	})
}

// SupportInfoItem is one file of a support dump.
type SupportInfoItem struct {
	Label   string
	Content []byte
}

func (m *SupportInfoItem) Marshal() []byte {
	var b []byte
	b = pb.AppendString(b, 1, m.Label)
	b = pb.AppendBytes(b, 2, m.Content)
	return b
}

func (m *SupportInfoItem) Unmarshal(b []byte) error {
	*m = SupportInfoItem{}
	return pb.Range(b, func(f pb.Field) error {
		switch f.Num {
		case 1:
			m.Label = f.String()
		case 2:
			m.Content = append([]byte(nil), f.Bytes...)
		}
		return nil
	})
}

// SupportInfo is the content of a support dump.
type SupportInfo struct {
	Items []SupportInfoItem
}

func (m *SupportInfo) Marshal() []byte {
	var b []byte
	for i := range m.Items {
		b = pb.AppendMessage(b, 1, &m.Items[i])
	}
	return b
}

func (m *SupportInfo) Unmarshal(b []byte) error {
	*m = SupportInfo{}
	return pb.Range(b, func(f pb.Field) error {
		if f.Num != 1 {
			return nil
		}
		var item SupportInfoItem
		if err := item.Unmarshal(f.Bytes); err != nil {
			return err
		}
		m.Items = append(m.Items, item)
		return nil
	})
}

// supportInfoDump wraps SupportInfo on the wire.
type supportInfoDump struct {
	Info SupportInfo
}

func (m *supportInfoDump) Marshal() []byte {
	return pb.AppendMessage(nil, 1, &m.Info)
}

func (m *supportInfoDump) Unmarshal(b []byte) error {
	*m = supportInfoDump{}
	return pb.Range(b, func(f pb.Field) error {
		if f.Num == 1 {
			return m.Info.Unmarshal(f.Bytes)
		}
		return nil
	})
}

// FirmwareCheck is the UpdateFirmwareCheck response.
type FirmwareCheck struct {
	Result             UpdateResult
	NewFirmwareVersion string
}

func (m *FirmwareCheck) Marshal() []byte {
	var b []byte
	b = pb.AppendUint(b, 1, uint64(m.Result))
	b = pb.AppendString(b, 2, m.NewFirmwareVersion)
	return b
}

func (m *FirmwareCheck) Unmarshal(b []byte) error {
	*m = FirmwareCheck{}
	return pb.Range(b, func(f pb.Field) error {
		switch f.Num {
		case 1:
			m.Result = UpdateResult(f.Varint)
		case 2:
			m.NewFirmwareVersion = f.String()
		}
		return nil
	})
}

// firmwareStart is the UpdateFirmwareStart response.
type firmwareStart struct {
	Result UpdateResult
}

func (m *firmwareStart) Marshal() []byte {
	return pb.AppendUint(nil, 1, uint64(m.Result))
}

func (m *firmwareStart) Unmarshal(b []byte) error {
	*m = firmwareStart{}
	return pb.Range(b, func(f pb.Field) error {
		if f.Num == 1 {
			m.Result = UpdateResult(f.Varint)
		}
		return nil
	})
}

// ConnectedStation is a wifi client of the device.
type ConnectedStation struct {
	MACAddress string
	VAPType    WifiVAPType
	Band       WifiBand
	RxRate     uint32
	TxRate     uint32
}

func (m *ConnectedStation) Marshal() []byte {
	var b []byte
	b = pb.AppendString(b, 1, m.MACAddress)
	b = pb.AppendUint(b, 2, uint64(m.VAPType))
	b = pb.AppendUint(b, 3, uint64(m.Band))
	b = pb.AppendUint(b, 4, uint64(m.RxRate))
	b = pb.AppendUint(b, 5, uint64(m.TxRate))
	return b
}

func (m *ConnectedStation) Unmarshal(b []byte) error {
	*m = ConnectedStation{}
	return pb.Range(b, func(f pb.Field) error {
		switch f.Num {
		case 1:
			m.MACAddress = f.String()
		case 2:
			m.VAPType = WifiVAPType(f.Varint)
		case 3:
			m.Band = WifiBand(f.Varint)
		case 4:
			m.RxRate = uint32(f.Varint)
		case 5:
			m.TxRate = uint32(f.Varint)
		}
		return nil
	})
}

// ConnectedStations is the WifiConnectedStationsGet response.
type ConnectedStations struct {
	Stations []ConnectedStation
}

func (m *ConnectedStations) Marshal() []byte {
	var b []byte
	for i := range m.Stations {
		b = pb.AppendMessage(b, 1, &m.Stations[i])
	}
	return b
}

func (m *ConnectedStations) Unmarshal(b []byte) error {
	*m = ConnectedStations{}
	return pb.Range(b, func(f pb.Field) error {
		if f.Num != 1 {
			return nil
		}
		var s ConnectedStation
		if err := s.Unmarshal(f.Bytes); err != nil {
			return err
		}
		m.Stations = append(m.Stations, s)
		return nil
	})
}

// GuestAccess is the WifiGuestAccessGet response.
type GuestAccess struct {
	Enabled           bool
	RemainingDuration uint32
	SSID              string
	Key               string
	WPA               WPAMode
}

func (m *GuestAccess) Marshal() []byte {
	var b []byte
	b = pb.AppendBool(b, 1, m.Enabled)
	b = pb.AppendUint(b, 2, uint64(m.RemainingDuration))
	b = pb.AppendString(b, 3, m.SSID)
	b = pb.AppendString(b, 4, m.Key)
	b = pb.AppendUint(b, 5, uint64(m.WPA))
	return b
}

func (m *GuestAccess) Unmarshal(b []byte) error {
	*m = GuestAccess{}
	return pb.Range(b, func(f pb.Field) error {
		switch f.Num {
		case 1:
			m.Enabled = f.Bool()
		case 2:
			m.RemainingDuration = uint32(f.Varint)
		case 3:
			m.SSID = f.String()
		case 4:
			m.Key = f.String()
		case 5:
			m.WPA = WPAMode(f.Varint)
		}
		return nil
	})
}

// guestAccessSet is the WifiGuestAccessSet request.
type guestAccessSet struct {
	Enable   bool
	Duration uint32
}

func (m *guestAccessSet) Marshal() []byte {
	var b []byte
	b = pb.AppendBool(b, 1, m.Enable)
	b = pb.AppendUint(b, 2, uint64(m.Duration))
	return b
}

func (m *guestAccessSet) Unmarshal(b []byte) error {
	*m = guestAccessSet{}
	return pb.Range(b, func(f pb.Field) error {
		switch f.Num {
		case 1:
			m.Enable = f.Bool()
		case 2:
			m.Duration = uint32(f.Varint)
		}
		return nil
	})
}

// NeighborAP is a foreign access point seen by the device.
type NeighborAP struct {
	MACAddress string
	SSID       string
	Band       WifiBand
	Channel    uint32
	Signal     int32
	SignalBars uint32
}

func (m *NeighborAP) Marshal() []byte {
	var b []byte
	b = pb.AppendString(b, 1, m.MACAddress)
	b = pb.AppendString(b, 2, m.SSID)
	b = pb.AppendUint(b, 3, uint64(m.Band))
	b = pb.AppendUint(b, 4, uint64(m.Channel))
	b = pb.AppendInt(b, 5, int64(m.Signal))
	b = pb.AppendUint(b, 6, uint64(m.SignalBars))
	return b
}

func (m *NeighborAP) Unmarshal(b []byte) error {
	*m = NeighborAP{}
	return pb.Range(b, func(f pb.Field) error {
		switch f.Num {
		case 1:
			m.MACAddress = f.String()
		case 2:
			m.SSID = f.String()
		case 3:
			m.Band = WifiBand(f.Varint)
		case 4:
			m.Channel = uint32(f.Varint)
		case 5:
			m.Signal = f.Int32()
		case 6:
			m.SignalBars = uint32(f.Varint)
		}
		return nil
	})
}

// NeighborAPs is the WifiNeighborAPsGet response.
type NeighborAPs struct {
	NeighborAPs []NeighborAP
}

func (m *NeighborAPs) Marshal() []byte {
	var b []byte
	for i := range m.NeighborAPs {
		b = pb.AppendMessage(b, 1, &m.NeighborAPs[i])
	}
	return b
}

func (m *NeighborAPs) Unmarshal(b []byte) error {
	*m = NeighborAPs{}
	return pb.Range(b, func(f pb.Field) error {
		if f.Num != 1 {
			return nil
		}
		var ap NeighborAP
		if err := ap.Unmarshal(f.Bytes); err != nil {
			return err
		}
		m.NeighborAPs = append(m.NeighborAPs, ap)
		return nil
	})
}

var wifiURIEscaper = strings.NewReplacer(`\`, `\\`, `;`, `\;`, `,`, `\,`, `:`, `\:`, `"`, `\"`)

// WifiURI returns the WIFI: URI phones use to join the guest network, as
// encoded in QR codes.
func (m *GuestAccess) WifiURI() string {
	auth := "WPA"
	if m.WPA == WPANone {
		auth = "nopass"
	}
	var b strings.Builder
	b.WriteString("WIFI:S:")
	b.WriteString(wifiURIEscaper.Replace(m.SSID))
	b.WriteString(";T:")
	b.WriteString(auth)
	if auth != "nopass" {
		b.WriteString(";P:")
		b.WriteString(wifiURIEscaper.Replace(m.Key))
	}
	b.WriteString(";;")
	return b.String()
}
