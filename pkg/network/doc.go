// Package network finds all devolo devices on the local network.
//
// DiscoverNetwork browses for the device API service with a plain multicast
// mDNS resolver and returns one Device per serial number. The returned
// devices are not connected yet.
package network
