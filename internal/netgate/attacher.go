package netgate

import (
	"context"
	"fmt"
	"net"
	"time"
)

// LinkInfo is what InterfaceAttacher needs to know about a network interface.
type LinkInfo struct {
	Up    bool
	Addrs []net.Addr
}

// InterfaceAttacher waits for a named interface (usually the wifi adapter
// joined to the car's access point) to come up with an IPv4 address.
// Joining the access point itself is left to the host's network manager.
type InterfaceAttacher struct {
	Name string
	Poll time.Duration
	// Lookup defaults to the host's interface table.
	Lookup func(name string) (LinkInfo, error)
}

// Attach reports Scanning, Connecting and ObtainingAddress as the link comes up.
// It returns nil once the interface carries an IPv4 address.
func (a InterfaceAttacher) Attach(ctx context.Context, report func(State)) error {
	lookup, poll := a.lookupFunc(), a.pollInterval()

	report(Scanning)
	link, err := lookup(a.Name)
	if err != nil {
		report(Disconnected)
		return fmt.Errorf("interface %s: %w", a.Name, err)
	}

	report(Connecting)
	if !link.Up {
		report(Disconnected)
		return fmt.Errorf("interface %s is down", a.Name)
	}

	report(ObtainingAddress)
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		if hasIPv4(link.Addrs) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if link, err = lookup(a.Name); err != nil {
			report(Disconnected)
			return fmt.Errorf("interface %s: %w", a.Name, err)
		}
	}
}

// Watch polls the interface until it disappears, goes down or loses its IPv4
// address, and returns the reason. It returns nil when ctx ends.
func (a InterfaceAttacher) Watch(ctx context.Context) error {
	lookup, poll := a.lookupFunc(), a.pollInterval()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		link, err := lookup(a.Name)
		switch {
		case err != nil:
			return fmt.Errorf("interface %s lost: %w", a.Name, err)
		case !link.Up:
			return fmt.Errorf("interface %s went down", a.Name)
		case !hasIPv4(link.Addrs):
			return fmt.Errorf("interface %s lost its address", a.Name)
		}
	}
}

func (a InterfaceAttacher) lookupFunc() func(string) (LinkInfo, error) {
	if a.Lookup == nil {
		return hostLink
	}
	return a.Lookup
}

func (a InterfaceAttacher) pollInterval() time.Duration {
	if a.Poll <= 0 {
		return 250 * time.Millisecond
	}
	return a.Poll
}

func hostLink(name string) (LinkInfo, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return LinkInfo{}, err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return LinkInfo{}, err
	}
	return LinkInfo{Up: iface.Flags&net.FlagUp != 0, Addrs: addrs}, nil
}

func hasIPv4(addrs []net.Addr) bool {
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip != nil && ip.To4() != nil && !ip.IsUnspecified() {
			return true
		}
	}
	return false
}
