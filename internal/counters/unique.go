package counters

import "github.com/google/gopacket"

// UniqueSrcAddr tracks the cardinality of the set of source addresses
// observed on IP packets.
type UniqueSrcAddr struct {
	addrs map[string]struct{}
}

func NewUniqueSrcAddr() *UniqueSrcAddr {
	return &UniqueSrcAddr{addrs: make(map[string]struct{})}
}

func (c *UniqueSrcAddr) Name() string   { return "UNIQUE_SRC_ADDR" }
func (c *UniqueSrcAddr) Layer() int     { return LayerIPPayload }
func (c *UniqueSrcAddr) Value() float64 { return float64(len(c.addrs)) }

func (c *UniqueSrcAddr) Reset() {
	c.addrs = make(map[string]struct{})
}

func (c *UniqueSrcAddr) Process(pkt gopacket.Packet) {
	if src, _, ok := ipAddresses(pkt); ok {
		c.addrs[src.String()] = struct{}{}
	}
}

// UniqueDstAddr tracks the cardinality of the set of destination addresses
// observed on IP packets.
type UniqueDstAddr struct {
	addrs map[string]struct{}
}

func NewUniqueDstAddr() *UniqueDstAddr {
	return &UniqueDstAddr{addrs: make(map[string]struct{})}
}

func (c *UniqueDstAddr) Name() string   { return "UNIQUE_DST_ADDR" }
func (c *UniqueDstAddr) Layer() int     { return LayerIPPayload }
func (c *UniqueDstAddr) Value() float64 { return float64(len(c.addrs)) }

func (c *UniqueDstAddr) Reset() {
	c.addrs = make(map[string]struct{})
}

func (c *UniqueDstAddr) Process(pkt gopacket.Packet) {
	if _, dst, ok := ipAddresses(pkt); ok {
		c.addrs[dst.String()] = struct{}{}
	}
}
