// Package counters implements the per-packet accumulators feeding the
// netspot statistics. A counter sees every dispatched packet and decides
// on its own whether the packet is relevant.
package counters

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Protocol layers a counter may require. The value is informational: it
// names the lowest layer the counter inspects.
const (
	LayerIP        = 1
	LayerIPPayload = 2
	LayerTCP       = 3
)

// Counter accumulates a scalar (or a set cardinality) over the packets of
// one aggregation window.
//
// Process is only ever called by the sniffer dispatcher, under its lock.
// Value and Reset must be called under the same lock to observe a
// consistent state.
type Counter interface {
	// Name identifies the counter. Two counters with the same name are
	// interchangeable.
	Name() string
	// Layer is the lowest protocol layer the counter needs.
	Layer() int
	// Process inspects a packet and updates the internal state when the
	// packet matches.
	Process(pkt gopacket.Packet)
	// Value returns the current reading.
	Value() float64
	// Reset returns the state to its constructor-defined zero.
	Reset()
}

// ipAddresses extracts the source and destination addresses of an IPv4 or
// IPv6 packet. ok is false for non-IP packets.
func ipAddresses(pkt gopacket.Packet) (src, dst net.IP, ok bool) {
	if l := pkt.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		return ip.SrcIP, ip.DstIP, true
	}
	if l := pkt.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		return ip.SrcIP, ip.DstIP, true
	}
	return nil, nil, false
}

// isIP reports whether the packet carries an IPv4 or IPv6 layer.
func isIP(pkt gopacket.Packet) bool {
	return pkt.Layer(layers.LayerTypeIPv4) != nil || pkt.Layer(layers.LayerTypeIPv6) != nil
}

// ipLength returns the total length in bytes of the IP packet (header
// included). ok is false for non-IP packets.
func ipLength(pkt gopacket.Packet) (length uint64, ok bool) {
	if l := pkt.Layer(layers.LayerTypeIPv4); l != nil {
		return uint64(l.(*layers.IPv4).Length), true
	}
	if l := pkt.Layer(layers.LayerTypeIPv6); l != nil {
		// Length excludes the fixed 40-byte header in IPv6.
		return uint64(l.(*layers.IPv6).Length) + 40, true
	}
	return 0, false
}
