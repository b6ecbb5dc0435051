package server

import (
	"net"
	"slices"

	gnet "github.com/shirou/gopsutil/v4/net"
)

// ReachableURLs lists http URLs on every non-loopback IPv4 interface for the
// given port, for printing at startup so a phone on the LAN can connect.
func ReachableURLs(port string) ([]string, error) {
	ifaces, err := gnet.Interfaces()
	if err != nil {
		return nil, err
	}
	return urlsFor(ifaces, port), nil
}

func urlsFor(ifaces gnet.InterfaceStatList, port string) []string {
	var urls []string
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "loopback") || !slices.Contains(iface.Flags, "up") {
			continue
		}
		for _, a := range iface.Addrs {
			ip, _, err := net.ParseCIDR(a.Addr)
			if err != nil {
				ip = net.ParseIP(a.Addr)
			}
			if ip == nil || ip.To4() == nil || ip.IsLoopback() {
				continue
			}
			urls = append(urls, "http://"+net.JoinHostPort(ip.String(), port))
		}
	}
	return urls
}
