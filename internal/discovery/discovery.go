package discovery

import (
	"fmt"
	"net"

	"github.com/jackpal/gateway"
)

// Address is one local address a client could reach the share on.
type Address struct {
	IP   net.IP
	Net  *net.IPNet
	Name string // reverse-DNS name, empty when unresolved or skipped
}

// Local enumerates unicast addresses of all interfaces that are up.
// Loopback and link-local addresses are skipped unless includeLocal is
// set. resolve performs a reverse-DNS lookup per address. Enumeration
// failures degrade to an empty list, never an error.
func Local(includeLocal bool, resolve bool) []Address {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	var out []Address
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP
			if ip.IsMulticast() || ip.IsUnspecified() {
				continue
			}
			if !includeLocal && (ip.IsLoopback() || ip.IsLinkLocalUnicast()) {
				continue
			}
			a := Address{IP: ip, Net: ipNet}
			if resolve {
				if names, err := net.LookupAddr(ip.String()); err == nil && len(names) > 0 {
					a.Name = names[0]
				}
			}
			out = append(out, a)
		}
	}
	return out
}

// PrimaryFirst moves the address sharing a subnet with the default gateway
// to the front of the list, so the most reachable URL is printed (and QR
// encoded) first. When no gateway can be discovered the order is kept.
func PrimaryFirst(addrs []Address) []Address {
	gw, err := gateway.DiscoverGateway()
	if err != nil || gw == nil {
		return addrs
	}
	for i, a := range addrs {
		if a.Net != nil && a.Net.Contains(gw) {
			return append(append([]Address{a}, addrs[:i]...), addrs[i+1:]...)
		}
	}
	return addrs
}

// URLs builds one candidate URL per address, plus one per resolved name.
// pathSegment must already be URL-escaped.
func URLs(addrs []Address, port int, pathSegment string) []string {
	var out []string
	for _, a := range addrs {
		out = append(out, fmt.Sprintf("http://%s:%d/%s", hostFor(a.IP), port, pathSegment))
		if a.Name != "" {
			out = append(out, fmt.Sprintf("http://%s:%d/%s", a.Name, port, pathSegment))
		}
	}
	return out
}

func hostFor(ip net.IP) string {
	if ip.To4() == nil {
		return "[" + ip.String() + "]"
	}
	return ip.String()
}
