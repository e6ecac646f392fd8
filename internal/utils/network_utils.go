package utils

import (
	"net"
	"strings"
)

// cgnat is 100.64.0.0/10, used by Cloudflare WARP, Tailscale and carrier NATs.
var cgnat = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

var tunnelNames = []string{"tun", "tap", "wg", "ppp", "warp"}

// ShouldForceRelay reports whether the host is likely behind a VPN or CGNAT,
// where direct media paths usually fail and TURN should be used.
func ShouldForceRelay() bool {
	_, ok := ForceRelayReason()
	return ok
}

// ForceRelayReason names the interface that triggered ShouldForceRelay.
func ForceRelayReason() (string, bool) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", false
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if isTunnelName(iface.Name) {
			return iface.Name, true
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if inCGNAT(addr) {
				return iface.Name, true
			}
		}
	}
	return "", false
}

func isTunnelName(name string) bool {
	name = strings.ToLower(name)
	for _, t := range tunnelNames {
		if strings.Contains(name, t) {
			return true
		}
	}
	return false
}

func inCGNAT(addr net.Addr) bool {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	}
	return ip != nil && cgnat.Contains(ip)
}
