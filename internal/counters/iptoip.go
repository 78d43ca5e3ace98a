package counters

import (
	"fmt"
	"net"
	"strings"

	"github.com/google/gopacket"

	"github.com/asiffer/netspot/internal/errs"
)

// IPToIP counts the packets exchanged between two given addresses,
// regardless of the direction. Its identity is the unordered pair, so
// IPToIP(a, b) and IPToIP(b, a) name the same counter.
type IPToIP struct {
	a, b  net.IP
	name  string
	count uint64
}

// NewIPToIP builds a pair counter from two address literals. Both must be
// syntactically valid IPv4 or IPv6 addresses and must differ.
func NewIPToIP(a, b string) (*IPToIP, error) {
	ipA := net.ParseIP(a)
	if ipA == nil {
		return nil, fmt.Errorf("%w: %q is not a valid IP address", errs.ErrInvalidConfig, a)
	}
	ipB := net.ParseIP(b)
	if ipB == nil {
		return nil, fmt.Errorf("%w: %q is not a valid IP address", errs.ErrInvalidConfig, b)
	}
	if ipA.Equal(ipB) {
		return nil, fmt.Errorf("%w: the two addresses must differ", errs.ErrInvalidConfig)
	}
	// Normalize the pair order so both argument orders give the same name.
	first, second := ipA.String(), ipB.String()
	if strings.Compare(first, second) > 0 {
		first, second = second, first
		ipA, ipB = ipB, ipA
	}
	return &IPToIP{
		a:    ipA,
		b:    ipB,
		name: fmt.Sprintf("IP_TO_IP_%s_%s", first, second),
	}, nil
}

// Pair returns the two addresses in their normalized order.
func (c *IPToIP) Pair() (string, string) { return c.a.String(), c.b.String() }

func (c *IPToIP) Name() string   { return c.name }
func (c *IPToIP) Layer() int     { return LayerIPPayload }
func (c *IPToIP) Value() float64 { return float64(c.count) }
func (c *IPToIP) Reset()         { c.count = 0 }

func (c *IPToIP) Process(pkt gopacket.Packet) {
	src, dst, ok := ipAddresses(pkt)
	if !ok {
		return
	}
	if (c.a.Equal(src) && c.b.Equal(dst)) || (c.a.Equal(dst) && c.b.Equal(src)) {
		c.count++
	}
}
