// Package mdns is a small mDNS querier for service discovery.
//
// It supports exactly what devolo discovery needs: browsing PTR records of
// a set of service types, resolving instances to SRV, TXT and address
// records, and choosing between targeted unicast questions (QU, sent to a
// single host) and multicast questions (QM, sent to 224.0.0.251).
//
//	conn, err := mdns.Listen(mdns.WithInterfaces(ifaces))
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	browser, err := conn.Browse(types, func(serviceType, name string, change mdns.StateChange) {
//	    info, err := conn.Resolve(ctx, serviceType, name, mdns.UnicastTo(target))
//	    ...
//	}, mdns.UnicastTo(target))
//	...
//	browser.Cancel()
//
// TXT rdata is decoded with ParseTXT into a KEY=VALUE property map. A
// malformed TXT record is reported for the single advertisement carrying it.
package mdns
