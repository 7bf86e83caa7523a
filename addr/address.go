// Package addr provides a small value type for IPv4 host/port pairs used
// throughout the reactor and netsrv packages.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package addr

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Address is a copyable IPv4 host/port value. The zero value is "any
// interface" (0.0.0.0:0).
type Address struct {
	host uint32 // host byte order, e.g. 127.0.0.1 -> 0x7f000001
	port uint16
}

// Any returns the wildcard address 0.0.0.0:port.
func Any(port uint16) Address {
	return Address{host: 0, port: port}
}

// FromString parses "host:port" (or "host" with port 0) into an Address.
// Returns an error if the port is out of range or the host does not parse
// as an IPv4 dotted quad.
func FromString(s string) (Address, error) {
	hostPart, portPart, err := splitHostPort(s)
	if err != nil {
		return Address{}, err
	}
	var port uint16
	if portPart != "" {
		p, err := strconv.ParseUint(portPart, 10, 16)
		if err != nil {
			return Address{}, fmt.Errorf("addr: invalid port %q: %w", portPart, err)
		}
		port = uint16(p)
	}
	host, err := parseIPv4(hostPart)
	if err != nil {
		return Address{}, err
	}
	return Address{host: host, port: port}, nil
}

func splitHostPort(s string) (string, string, error) {
	if s == "" {
		return "0.0.0.0", "", nil
	}
	if !strings.Contains(s, ":") {
		return s, "", nil
	}
	h, p, err := net.SplitHostPort(s)
	if err != nil {
		return "", "", fmt.Errorf("addr: %w", err)
	}
	return h, p, nil
}

func parseIPv4(host string) (uint32, error) {
	if host == "" {
		host = "0.0.0.0"
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return 0, fmt.Errorf("addr: invalid host %q", host)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return 0, fmt.Errorf("addr: %q is not an IPv4 address", host)
	}
	return binary.BigEndian.Uint32(ip4), nil
}

// Host returns the dotted-quad representation of the host part.
func (a Address) Host() string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], a.host)
	return net.IP(b[:]).String()
}

// Port returns the 16-bit port.
func (a Address) Port() uint16 {
	return a.port
}

// IsWildcard reports whether the address is the "any interface" value.
func (a Address) IsWildcard() bool {
	return a.host == 0
}

// String renders "host:port", the inverse of FromString on valid input.
func (a Address) String() string {
	return net.JoinHostPort(a.Host(), strconv.Itoa(int(a.port)))
}

// Equal reports value equality.
func (a Address) Equal(b Address) bool {
	return a.host == b.host && a.port == b.port
}

// Less implements the address-then-port lexicographic ordering.
func (a Address) Less(b Address) bool {
	if a.host != b.host {
		return a.host < b.host
	}
	return a.port < b.port
}

// TCPAddr converts to the standard library's representation for handoff to
// net.Dial/net.Listen style APIs used by sock.Socket.
func (a Address) TCPAddr() *net.TCPAddr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], a.host)
	return &net.TCPAddr{IP: net.IP(b[:]), Port: int(a.port)}
}

// FromTCPAddr builds an Address from a *net.TCPAddr, truncating to IPv4.
func FromTCPAddr(t *net.TCPAddr) (Address, error) {
	if t == nil {
		return Address{}, fmt.Errorf("addr: nil TCPAddr")
	}
	ip4 := t.IP.To4()
	if ip4 == nil {
		return Address{}, fmt.Errorf("addr: %v is not an IPv4 address", t.IP)
	}
	return Address{host: binary.BigEndian.Uint32(ip4), port: uint16(t.Port)}, nil
}
