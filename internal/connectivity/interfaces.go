package connectivity

import (
	"context"
	"net"
	"sort"
	"strings"
	"time"
)

type Transport string

const (
	TransportWiFi     Transport = "wifi"
	TransportCellular Transport = "cellular"
	TransportEthernet Transport = "ethernet"
)

// Link is the part of a network interface the oracle looks at.
type Link struct {
	Name     string
	Up       bool
	Loopback bool
	Addrs    []net.Addr
}

var transportPrefixes = []struct {
	prefix    string
	transport Transport
}{
	{"wl", TransportWiFi},
	{"rmnet", TransportCellular},
	{"wwan", TransportCellular},
	{"ccmni", TransportCellular},
	{"pdp", TransportCellular},
	{"eth", TransportEthernet},
	{"en", TransportEthernet},
}

// InterfaceOracle reports the network available when any Wi-Fi, cellular or
// Ethernet interface is up with a routable address.
type InterfaceOracle struct {
	interval time.Duration
	links    func() ([]Link, error)
}

func NewInterfaceOracle(pollInterval time.Duration) *InterfaceOracle {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &InterfaceOracle{interval: pollInterval, links: systemLinks}
}

func (o *InterfaceOracle) IsAvailable() bool {
	return len(o.Transports()) > 0
}

// Transports lists the distinct usable transports, sorted.
func (o *InterfaceOracle) Transports() []Transport {
	links, err := o.links()
	if err != nil {
		return nil
	}

	seen := map[Transport]bool{}
	for _, l := range links {
		if !l.Up || l.Loopback || !hasRoutableAddr(l.Addrs) {
			continue
		}
		if t, ok := Classify(l.Name); ok {
			seen[t] = true
		}
	}

	transports := make([]Transport, 0, len(seen))
	for t := range seen {
		transports = append(transports, t)
	}
	sort.Slice(transports, func(i, j int) bool { return transports[i] < transports[j] })
	return transports
}

func (o *InterfaceOracle) Observe(ctx context.Context) <-chan bool {
	return poll(ctx, o.interval, o.IsAvailable)
}

// Classify maps an interface name to its transport. Virtual and unknown
// interfaces are not classified.
func Classify(name string) (Transport, bool) {
	name = strings.ToLower(name)
	for _, p := range transportPrefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.transport, true
		}
	}
	return "", false
}

func hasRoutableAddr(addrs []net.Addr) bool {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			continue
		}
		return true
	}
	return false
}

func systemLinks() ([]Link, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	links := make([]Link, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		links = append(links, Link{
			Name:     iface.Name,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
			Addrs:    addrs,
		})
	}
	return links, nil
}
