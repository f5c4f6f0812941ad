package mdns

import (
	"net"
	"net/netip"
)

// RelevantInterfaces returns the up, multicast capable interfaces that have an
// address on the same subnet as target. When no interface matches, all
// multicast capable interfaces are returned.
func RelevantInterfaces(target netip.Addr) ([]net.Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var candidates, relevant []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		candidates = append(candidates, iface)

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if containsTarget(prefixesOf(addrs), target) {
			relevant = append(relevant, iface)
		}
	}

	if len(relevant) == 0 {
		return candidates, nil
	}
	return relevant, nil
}

func prefixesOf(addrs []net.Addr) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipnet.IP)
		if !ok {
			continue
		}
		ones, _ := ipnet.Mask.Size()
		prefixes = append(prefixes, netip.PrefixFrom(addr.Unmap(), ones))
	}
	return prefixes
}

func containsTarget(prefixes []netip.Prefix, target netip.Addr) bool {
	target = target.Unmap()
	for _, p := range prefixes {
		if p.Masked().Contains(target) {
			return true
		}
	}
	return false
}
