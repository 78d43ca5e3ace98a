package counters

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// IP counts IP packets.
type IP struct {
	count uint64
}

func NewIP() *IP { return &IP{} }

func (c *IP) Name() string   { return "IP" }
func (c *IP) Layer() int     { return LayerIP }
func (c *IP) Value() float64 { return float64(c.count) }
func (c *IP) Reset()         { c.count = 0 }

func (c *IP) Process(pkt gopacket.Packet) {
	if isIP(pkt) {
		c.count++
	}
}

// ICMP counts packets carrying an ICMPv4 or ICMPv6 layer.
type ICMP struct {
	count uint64
}

func NewICMP() *ICMP { return &ICMP{} }

func (c *ICMP) Name() string   { return "ICMP" }
func (c *ICMP) Layer() int     { return LayerIPPayload }
func (c *ICMP) Value() float64 { return float64(c.count) }
func (c *ICMP) Reset()         { c.count = 0 }

func (c *ICMP) Process(pkt gopacket.Packet) {
	if pkt.Layer(layers.LayerTypeICMPv4) != nil || pkt.Layer(layers.LayerTypeICMPv6) != nil {
		c.count++
	}
}

// SYN counts TCP packets with the SYN flag set.
type SYN struct {
	count uint64
}

func NewSYN() *SYN { return &SYN{} }

func (c *SYN) Name() string   { return "SYN" }
func (c *SYN) Layer() int     { return LayerTCP }
func (c *SYN) Value() float64 { return float64(c.count) }
func (c *SYN) Reset()         { c.count = 0 }

func (c *SYN) Process(pkt gopacket.Packet) {
	if l := pkt.Layer(layers.LayerTypeTCP); l != nil {
		if l.(*layers.TCP).SYN {
			c.count++
		}
	}
}

// ACK counts TCP packets with the ACK flag set.
type ACK struct {
	count uint64
}

func NewACK() *ACK { return &ACK{} }

func (c *ACK) Name() string   { return "ACK" }
func (c *ACK) Layer() int     { return LayerTCP }
func (c *ACK) Value() float64 { return float64(c.count) }
func (c *ACK) Reset()         { c.count = 0 }

func (c *ACK) Process(pkt gopacket.Packet) {
	if l := pkt.Layer(layers.LayerTypeTCP); l != nil {
		if l.(*layers.TCP).ACK {
			c.count++
		}
	}
}

// IPBytes sums the total length of IP packets.
type IPBytes struct {
	bytes uint64
}

func NewIPBytes() *IPBytes { return &IPBytes{} }

func (c *IPBytes) Name() string   { return "IP_BYTES" }
func (c *IPBytes) Layer() int     { return LayerIPPayload }
func (c *IPBytes) Value() float64 { return float64(c.bytes) }
func (c *IPBytes) Reset()         { c.bytes = 0 }

func (c *IPBytes) Process(pkt gopacket.Packet) {
	if length, ok := ipLength(pkt); ok {
		c.bytes += length
	}
}
