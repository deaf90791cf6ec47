// Package node implements C5: node adoption state, drop/error counters,
// uptime and host identity discovery.
package node

import (
	"errors"
	"net"
	"os"
)

// ErrNoAddress is returned by DiscoverIPv4 when no usable address can be
// found through any step of the fallback chain.
var ErrNoAddress = errors.New("node: no usable IPv4 address found")

// Identity is the host-identifying subset of an announcement: MAC, the
// address to advertise to the controller, and the local hostname.
type Identity struct {
	MAC      net.HardwareAddr
	IPv4     net.IP
	Hostname string
}

// DiscoverMAC enumerates network interfaces and returns the link-layer
// address of the first non-loopback interface with one. Interfaces with
// no hardware address (e.g. tunnels) are skipped.
func DiscoverMAC() (net.HardwareAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return iface.HardwareAddr, nil
	}
	return nil, errors.New("node: no non-loopback interface with a hardware address")
}

// DiscoverIPv4 resolves the address to advertise to the controller,
// following the fallback chain: an explicit advertiseAddress, else a
// non-wildcard listenAddress, else the first non-loopback IPv4 address on
// any interface.
func DiscoverIPv4(advertiseAddress, listenAddress string) (net.IP, error) {
	if advertiseAddress != "" {
		if ip := net.ParseIP(advertiseAddress); ip != nil {
			if ip4 := ip.To4(); ip4 != nil {
				return ip4, nil
			}
		}
	}

	if listenAddress != "" {
		if ip := net.ParseIP(listenAddress); ip != nil && !ip.IsUnspecified() {
			if ip4 := ip.To4(); ip4 != nil {
				return ip4, nil
			}
		}
	}

	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4, nil
		}
	}

	return nil, ErrNoAddress
}

// DiscoverIdentity resolves MAC, IPv4 and hostname in one call, following
// the chains in DiscoverMAC and DiscoverIPv4.
func DiscoverIdentity(advertiseAddress, listenAddress string) (Identity, error) {
	mac, err := DiscoverMAC()
	if err != nil {
		return Identity{}, err
	}

	ipv4, err := DiscoverIPv4(advertiseAddress, listenAddress)
	if err != nil {
		return Identity{}, err
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return Identity{MAC: mac, IPv4: ipv4, Hostname: hostname}, nil
}
