// Package netaddr provides SocketAddress (§9 Design Notes), a closed sum
// type over the address families a ByteStream's underlying transport can
// be bound to. gnet.Conn (and net.Conn generally) exposes addresses only
// as the net.Addr interface plus a Network()/String() pair of strings;
// SocketAddress gives callers a family tag they can switch on instead of
// string-sniffing "tcp4" vs "tcp6" vs "unix".
package netaddr

import (
	"fmt"
	"net"
)

// Family identifies which variant of SocketAddress is populated.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyIPv4
	FamilyIPv6
	FamilyUnix
	// FamilyBluetooth is carried for completeness of the address-family
	// sum type (§9); nothing in this module produces a Bluetooth socket,
	// but a transport embedding an RFCOMM/L2CAP listener can populate one
	// without widening this type.
	FamilyBluetooth
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	case FamilyUnix:
		return "unix"
	case FamilyBluetooth:
		return "bluetooth"
	default:
		return "unknown"
	}
}

// SocketAddress is a closed variant: exactly one of the family-specific
// field groups is meaningful, selected by Family.
type SocketAddress struct {
	Family Family

	// IP and Port are populated for FamilyIPv4 and FamilyIPv6.
	IP   net.IP
	Port int
	Zone string // IPv6 scope id, if any

	// Path is populated for FamilyUnix.
	Path string

	// BluetoothAddr is populated for FamilyBluetooth, formatted as the
	// usual colon-separated hex MAC (e.g. "AA:BB:CC:DD:EE:FF").
	BluetoothAddr string
}

// String renders the address the way its family conventionally prints.
func (a SocketAddress) String() string {
	switch a.Family {
	case FamilyIPv4:
		return fmt.Sprintf("%s:%d", a.IP.String(), a.Port)
	case FamilyIPv6:
		host := a.IP.String()
		if a.Zone != "" {
			host += "%" + a.Zone
		}
		return fmt.Sprintf("[%s]:%d", host, a.Port)
	case FamilyUnix:
		return a.Path
	case FamilyBluetooth:
		return a.BluetoothAddr
	default:
		return "unknown"
	}
}

// FromNetAddr classifies a standard library net.Addr into a SocketAddress.
// Unrecognized address types (custom net.Addr implementations from
// non-stdlib transports) come back as FamilyUnknown with nothing else
// populated; callers that only need String() can still call a.String() by
// falling back to addr.String() themselves.
func FromNetAddr(addr net.Addr) SocketAddress {
	switch a := addr.(type) {
	case *net.TCPAddr:
		return fromIPPort(a.IP, a.Port, a.Zone)
	case *net.UDPAddr:
		return fromIPPort(a.IP, a.Port, a.Zone)
	case *net.UnixAddr:
		return SocketAddress{Family: FamilyUnix, Path: a.Name}
	default:
		return SocketAddress{Family: FamilyUnknown}
	}
}

func fromIPPort(ip net.IP, port int, zone string) SocketAddress {
	if ip4 := ip.To4(); ip4 != nil {
		return SocketAddress{Family: FamilyIPv4, IP: ip4, Port: port}
	}
	return SocketAddress{Family: FamilyIPv6, IP: ip, Port: port, Zone: zone}
}
