// Package platform holds the small host-introspection helpers that sit
// outside the accounting pipeline, such as working out which network
// interface carries the default route.
package platform

import "net"

// DetectDefaultInterface names the interface the default route uses.
// It dials a UDP socket toward a public address — no packet is sent —
// and matches the kernel-chosen local address back to an interface. If
// that fails it falls back to the first up, non-loopback interface with
// an address, and failing that returns "".
func DetectDefaultInterface() string {
	conn, err := net.Dial("udp4", "8.8.8.8:53")
	if err != nil {
		return firstUsableInterface()
	}
	local := conn.LocalAddr().(*net.UDPAddr).IP
	conn.Close()

	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if !usable(iface) {
			continue
		}
		if ownsIP(iface, local) {
			return iface.Name
		}
	}
	return firstUsableInterface()
}

func usable(iface net.Interface) bool {
	return iface.Flags&net.FlagUp != 0 && iface.Flags&net.FlagLoopback == 0
}

// ownsIP reports whether iface has ip assigned to it.
func ownsIP(iface net.Interface, ip net.IP) bool {
	addrs, err := iface.Addrs()
	if err != nil {
		return false
	}
	for _, addr := range addrs {
		switch v := addr.(type) {
		case *net.IPNet:
			if v.IP.Equal(ip) {
				return true
			}
		case *net.IPAddr:
			if v.IP.Equal(ip) {
				return true
			}
		}
	}
	return false
}

func firstUsableInterface() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if !usable(iface) {
			continue
		}
		if addrs, _ := iface.Addrs(); len(addrs) > 0 {
			return iface.Name
		}
	}
	return ""
}
