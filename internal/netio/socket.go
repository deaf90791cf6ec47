// Package netio sets up the raw socket options the UDP protocol handler
// needs that *net.UDPConn doesn't expose directly: joining a multicast
// group and enabling source-address recovery via IP_PKTINFO, so the
// protocol handler can tell whether a datagram arrived on the multicast
// group or unicast (spec.md §4.4).
package netio

import (
	"fmt"
	"net"

	"github.com/higebu/netfd"
)

// JoinMulticast joins conn's underlying socket to group on the given
// interface. An empty ifaceName lets the kernel pick the interface.
func JoinMulticast(conn *net.UDPConn, group net.IP, ifaceName string) error {
	fd := netfd.GetFdFromConn(conn)
	if fd < 0 {
		return fmt.Errorf("netio: could not recover fd from connection")
	}

	var iface *net.Interface
	if ifaceName != "" {
		found, err := net.InterfaceByName(ifaceName)
		if err != nil {
			return fmt.Errorf("netio: resolving interface %s: %w", ifaceName, err)
		}
		iface = found
	}

	return joinMulticast(fd, group, iface)
}

// EnablePacketInfo turns on IP_PKTINFO (or the platform equivalent) so
// reads via ReadMsgUDP can recover the destination address, which is how
// the protocol handler distinguishes multicast from unicast delivery.
func EnablePacketInfo(conn *net.UDPConn) error {
	fd := netfd.GetFdFromConn(conn)
	if fd < 0 {
		return fmt.Errorf("netio: could not recover fd from connection")
	}
	return enablePacketInfo(fd)
}

// DestinationAddr extracts the packet's original destination address from
// out-of-band control data produced by a PKTINFO-enabled ReadMsgUDP call,
// returning ok=false if no usable control message was found (e.g. the
// platform doesn't support it or the datagram predates enabling it).
func DestinationAddr(oob []byte) (dst net.IP, ok bool) {
	return destinationAddr(oob)
}
