//go:build !linux

package netio

import (
	"fmt"
	"net"
	"runtime"
)

func joinMulticast(fd int, group net.IP, iface *net.Interface) error {
	return fmt.Errorf("netio: multicast join is unsupported on %s", runtime.GOOS)
}

func enablePacketInfo(fd int) error {
	return fmt.Errorf("netio: IP_PKTINFO is unsupported on %s", runtime.GOOS)
}

func destinationAddr(oob []byte) (net.IP, bool) {
	return nil, false
}
