//go:build linux

package netio

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

func joinMulticast(fd int, group net.IP, iface *net.Interface) error {
	ip4 := group.To4()
	if ip4 == nil {
		return fmt.Errorf("netio: multicast group %s is not IPv4", group)
	}

	mreq := &unix.IPMreq{}
	copy(mreq.Multiaddr[:], ip4)

	if iface != nil {
		addrs, err := iface.Addrs()
		if err != nil {
			return fmt.Errorf("netio: reading addresses for interface %s: %w", iface.Name, err)
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			if v4 := ipNet.IP.To4(); v4 != nil {
				copy(mreq.Interface[:], v4)
				break
			}
		}
	}

	if err := unix.SetsockoptIPMreq(fd, unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, mreq); err != nil {
		return fmt.Errorf("netio: IP_ADD_MEMBERSHIP: %w", err)
	}
	return nil
}

func enablePacketInfo(fd int) error {
	if err := unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_PKTINFO, 1); err != nil {
		return fmt.Errorf("netio: IP_PKTINFO: %w", err)
	}
	return nil
}

// destinationAddr decodes struct in_pktinfo { ifindex int32; spec_dst
// in_addr; addr in_addr } from an IP_PKTINFO control message: the
// destination address is the last 4 bytes.
func destinationAddr(oob []byte) (net.IP, bool) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, false
	}
	for _, msg := range msgs {
		if msg.Header.Level != unix.IPPROTO_IP || msg.Header.Type != unix.IP_PKTINFO {
			continue
		}
		if len(msg.Data) < 12 {
			continue
		}
		return net.IPv4(msg.Data[8], msg.Data[9], msg.Data[10], msg.Data[11]), true
	}
	return nil, false
}
