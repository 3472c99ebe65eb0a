// Package network provides IP address validation helpers for connection
// profiles. It validates static IPv4 configurations before they are accepted
// into the profile store, ensuring the engine never dispatches a malformed
// address to a link driver.
package network

import (
	"fmt"
	"net"
)

// ValidateIPv4 checks that addr is a well-formed IPv4 address.
// Returns an error describing the problem, or nil if the address is valid.
func ValidateIPv4(addr string) error {
	ip := net.ParseIP(addr)
	if ip == nil {
		return fmt.Errorf("invalid IP address: %s", addr)
	}
	if ip.To4() == nil {
		return fmt.Errorf("IPv6 not supported: %s", addr)
	}
	return nil
}

// ValidateNetmask checks that mask is a valid IPv4 netmask in dotted-quad
// form (e.g. "255.255.255.0"). The mask bits must be contiguous.
func ValidateNetmask(mask string) error {
	ip := net.ParseIP(mask)
	if ip == nil || ip.To4() == nil {
		return fmt.Errorf("invalid netmask: %s", mask)
	}

	m := net.IPMask(ip.To4())
	if ones, bits := m.Size(); ones == 0 && bits == 0 {
		return fmt.Errorf("netmask bits not contiguous: %s", mask)
	}
	return nil
}

// ValidateStaticConfig validates a full static IPv4 configuration: address,
// netmask, gateway, and DNS servers. The gateway must fall inside the network
// described by the address and netmask. An empty DNS list is allowed.
// Returns an error for the first invalid field found, or nil.
func ValidateStaticConfig(ipAddress, netmask, gateway string, dns []string) error {
	if err := ValidateIPv4(ipAddress); err != nil {
		return err
	}
	if err := ValidateNetmask(netmask); err != nil {
		return err
	}
	if err := ValidateIPv4(gateway); err != nil {
		return fmt.Errorf("invalid gateway: %w", err)
	}

	// The gateway must be reachable on the configured subnet.
	mask := net.IPMask(net.ParseIP(netmask).To4())
	subnet := &net.IPNet{IP: net.ParseIP(ipAddress).To4().Mask(mask), Mask: mask}
	if !subnet.Contains(net.ParseIP(gateway)) {
		return fmt.Errorf("gateway %s not in network %s", gateway, subnet.String())
	}

	for _, server := range dns {
		if err := ValidateIPv4(server); err != nil {
			return fmt.Errorf("invalid DNS server: %w", err)
		}
	}
	return nil
}

// PrefixLength converts a dotted-quad netmask to its prefix length
// (e.g. "255.255.255.0" -> 24). The mask must already be validated.
func PrefixLength(netmask string) int {
	ip := net.ParseIP(netmask)
	if ip == nil || ip.To4() == nil {
		return 0
	}
	ones, _ := net.IPMask(ip.To4()).Size()
	return ones
}
