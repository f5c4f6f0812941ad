package plcnetapi

import (
	"github.com/2Fake/devolo-plc-api/internal/pb"
)

// Topology is the position of a device relative to the one queried.
type Topology uint64

const (
	TopologyUnknown Topology = iota
	TopologyLocal
	TopologyRemote
)

func (t Topology) String() string {
	switch t {
	case TopologyLocal:
		return "local"
	case TopologyRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Technology is the powerline chipset family.
type Technology uint64

const (
	TechnologyUnknown Technology = iota
	TechnologyGHNSpirit
	TechnologyHPAVThunderbolt
	TechnologyHPAVPanther
)

func (t Technology) String() string {
	switch t {
	case TechnologyGHNSpirit:
		return "G.hn Spirit"
	case TechnologyHPAVThunderbolt:
		return "HomePlug AV Thunderbolt"
	case TechnologyHPAVPanther:
		return "HomePlug AV Panther"
	default:
		return "unknown"
	}
}

// Result is the outcome code of plcnet commands.
type Result uint64

const (
	ResultSuccess Result = iota
	ResultFailed
)

// Device is one powerline adapter in the logical network.
type Device struct {
	ProductName      string
	ProductID        string
	FriendlyVersion  string
	FullVersion      string
	UserDeviceName   string
	UserNetworkName  string
	MACAddress       string
	Topology         Topology
	Technology       Technology
	BridgedDevices   []string
	IPv4Address      string
	AttachedToRouter bool
}

func (m *Device) Marshal() []byte {
	var b []byte
	b = pb.AppendString(b, 1, m.ProductName)
	b = pb.AppendString(b, 2, m.ProductID)
	b = pb.AppendString(b, 3, m.FriendlyVersion)
	b = pb.AppendString(b, 4, m.FullVersion)
	b = pb.AppendString(b, 5, m.UserDeviceName)
	b = pb.AppendString(b, 6, m.UserNetworkName)
	b = pb.AppendString(b, 7, m.MACAddress)
	b = pb.AppendUint(b, 8, uint64(m.Topology))
	b = pb.AppendUint(b, 9, uint64(m.Technology))
	for _, mac := range m.BridgedDevices {
		b = pb.AppendString(b, 10, mac)
	}
	b = pb.AppendString(b, 11, m.IPv4Address)
	b = pb.AppendBool(b, 12, m.AttachedToRouter)
	return b
}

func (m *Device) Unmarshal(b []byte) error {
	*m = Device{}
	return pb.Range(b, func(f pb.Field) error {
		switch f.Num {
		case 1:
			m.ProductName = f.String()
		case 2:
			m.ProductID = f.String()
		case 3:
			m.FriendlyVersion = f.String()
		case 4:
			m.FullVersion = f.String()
		case 5:
			m.UserDeviceName = f.String()
		case 6:
			m.UserNetworkName = f.String()
		case 7:
			m.MACAddress = f.String()
		case 8:
			m.Topology = Topology(f.Varint)
		case 9:
			m.Technology = Technology(f.Varint)
		case 10:
			m.BridgedDevices = append(m.BridgedDevices, f.String())
		case 11:
			m.IPv4Address = f.String()
		case 12:
			m.AttachedToRouter = f.Bool()
		}
		return nil
	})
}

// DataRate is the PHY rate between two adapters in Mbps.
type DataRate struct {
	MACAddressFrom string
	MACAddressTo   string
	RxRate         float64
	TxRate         float64
}

func (m *DataRate) Marshal() []byte {
	var b []byte
	b = pb.AppendString(b, 1, m.MACAddressFrom)
	b = pb.AppendString(b, 2, m.MACAddressTo)
	b = pb.AppendDouble(b, 3, m.RxRate)
	b = pb.AppendDouble(b, 4, m.TxRate)
	return b
}

func (m *DataRate) Unmarshal(b []byte) error {
	*m = DataRate{}
	return pb.Range(b, func(f pb.Field) error {
		switch f.Num {
		case 1:
			m.MACAddressFrom = f.String()
		case 2:
			m.MACAddressTo = f.String()
		case 3:
			m.RxRate = f.Double()
		case 4:
			m.TxRate = f.Double()
		}
		return nil
	})
}

// LogicalNetwork is the powerline network as seen by one adapter.
type LogicalNetwork struct {
	Devices   []Device
	DataRates []DataRate
}

func (m *LogicalNetwork) Marshal() []byte {
	var b []byte
	for i := range m.Devices {
		b = pb.AppendMessage(b, 1, &m.Devices[i])
	}
	for i := range m.DataRates {
		b = pb.AppendMessage(b, 2, &m.DataRates[i])
	}
	return b
}

func (m *LogicalNetwork) Unmarshal(b []byte) error {
	*m = LogicalNetwork{}
	return pb.Range(b, func(f pb.Field) error {
		switch f.Num {
		case 1:
			var d Device
			if err := d.Unmarshal(f.Bytes); err != nil {
				return err
			}
			m.Devices = append(m.Devices, d)
		case 2:
			var r DataRate
			if err := r.Unmarshal(f.Bytes); err != nil {
				return err
			}
			m.DataRates = append(m.DataRates, r)
		}
		return nil
	})
}

// Device returns the adapter with mac, if present.
func (m *LogicalNetwork) Device(mac string) (Device, bool) {
	for _, d := range m.Devices {
		if d.MACAddress == mac {
			return d, true
		}
	}
	return Device{}, false
}

// networkOverview wraps LogicalNetwork on the wire.
type networkOverview struct {
	Network LogicalNetwork
}

func (m *networkOverview) Marshal() []byte {
	return pb.AppendMessage(nil, 1, &m.Network)
}

func (m *networkOverview) Unmarshal(b []byte) error {
	*m = networkOverview{}
	return pb.Range(b, func(f pb.Field) error {
		if f.Num == 1 {
			return m.Network.Unmarshal(f.Bytes)
		}
		return nil
	})
}

// macRequest is the body of IdentifyDeviceStart, IdentifyDeviceStop,
// PairDeviceStart and SetUserDeviceName.
type macRequest struct {
	MACAddress     string
	UserDeviceName string
}

func (m *macRequest) Marshal() []byte {
	var b []byte
	b = pb.AppendString(b, 1, m.MACAddress)
	b = pb.AppendString(b, 2, m.UserDeviceName)
	return b
}

func (m *macRequest) Unmarshal(b []byte) error {
	*m = macRequest{}
	return pb.Range(b, func(f pb.Field) error {
		switch f.Num {
		case 1:
			m.MACAddress = f.String()
		case 2:
			m.UserDeviceName = f.String()
		}
		return nil
	})
}

type resultResponse struct {
	Result Result
}

func (m *resultResponse) Marshal() []byte {
	return pb.AppendUint(nil, 1, uint64(m.Result))
}

func (m *resultResponse) Unmarshal(b []byte) error {
	*m = resultResponse{}
	return pb.Range(b, func(f pb.Field) error {
		if f.Num == 1 {
			m.Result = Result(f.Varint)
		}
		return nil
	})
}
