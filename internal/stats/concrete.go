package stats

import (
	"fmt"

	"github.com/asiffer/netspot/internal/counters"
)

// RSyn is the percentage of SYN packets among IP packets.
type RSyn struct {
	needs []counters.Counter
}

func NewRSyn() *RSyn {
	return &RSyn{needs: []counters.Counter{counters.NewSYN(), counters.NewIP()}}
}

func (s *RSyn) Name() string              { return "R_SYN" }
func (s *RSyn) Description() string       { return "Ratio of SYN packets" }
func (s *RSyn) Needs() []counters.Counter { return s.needs }
func (s *RSyn) Fmt() string               { return "%.3f" }

func (s *RSyn) Compute(values []float64) float64 {
	checkArity("R_SYN", values, 2)
	return ratio(values[0], values[1])
}

// RAck is the percentage of ACK packets among IP packets.
type RAck struct {
	needs []counters.Counter
}

func NewRAck() *RAck {
	return &RAck{needs: []counters.Counter{counters.NewACK(), counters.NewIP()}}
}

func (s *RAck) Name() string              { return "R_ACK" }
func (s *RAck) Description() string       { return "Ratio of ACK packets" }
func (s *RAck) Needs() []counters.Counter { return s.needs }
func (s *RAck) Fmt() string               { return "%.3f" }

func (s *RAck) Compute(values []float64) float64 {
	checkArity("R_ACK", values, 2)
	return ratio(values[0], values[1])
}

// RIcmp is the percentage of ICMP packets among IP packets.
type RIcmp struct {
	needs []counters.Counter
}

func NewRIcmp() *RIcmp {
	return &RIcmp{needs: []counters.Counter{counters.NewICMP(), counters.NewIP()}}
}

func (s *RIcmp) Name() string              { return "R_ICMP" }
func (s *RIcmp) Description() string       { return "Ratio of ICMP packets" }
func (s *RIcmp) Needs() []counters.Counter { return s.needs }
func (s *RIcmp) Fmt() string               { return "%.3f" }

func (s *RIcmp) Compute(values []float64) float64 {
	checkArity("R_ICMP", values, 2)
	return ratio(values[0], values[1])
}

// AvgPktBytes is the mean size of IP packets.
type AvgPktBytes struct {
	needs []counters.Counter
}

func NewAvgPktBytes() *AvgPktBytes {
	return &AvgPktBytes{needs: []counters.Counter{counters.NewIPBytes(), counters.NewIP()}}
}

func (s *AvgPktBytes) Name() string              { return "AVG_PKT_BYTES" }
func (s *AvgPktBytes) Description() string       { return "Average size of IP packets" }
func (s *AvgPktBytes) Needs() []counters.Counter { return s.needs }
func (s *AvgPktBytes) Fmt() string               { return "%.3f" }

func (s *AvgPktBytes) Compute(values []float64) float64 {
	checkArity("AVG_PKT_BYTES", values, 2)
	if values[0] == 0 || values[1] == 0 {
		return 0
	}
	return values[0] / values[1]
}

// NbIPPkts is the raw number of IP packets.
type NbIPPkts struct {
	needs []counters.Counter
}

func NewNbIPPkts() *NbIPPkts {
	return &NbIPPkts{needs: []counters.Counter{counters.NewIP()}}
}

func (s *NbIPPkts) Name() string              { return "NB_IP_PKTS" }
func (s *NbIPPkts) Description() string       { return "Number of IP packets" }
func (s *NbIPPkts) Needs() []counters.Counter { return s.needs }
func (s *NbIPPkts) Fmt() string               { return "%d" }

func (s *NbIPPkts) Compute(values []float64) float64 {
	checkArity("NB_IP_PKTS", values, 1)
	return values[0]
}

// SrcDstRatio is the ratio of unique source addresses over unique
// destination addresses.
type SrcDstRatio struct {
	needs []counters.Counter
}

func NewSrcDstRatio() *SrcDstRatio {
	return &SrcDstRatio{needs: []counters.Counter{counters.NewUniqueSrcAddr(), counters.NewUniqueDstAddr()}}
}

func (s *SrcDstRatio) Name() string              { return "SRC_DST_RATIO" }
func (s *SrcDstRatio) Description() string       { return "Ratio (unique src addr)/(unique dst addr)" }
func (s *SrcDstRatio) Needs() []counters.Counter { return s.needs }
func (s *SrcDstRatio) Fmt() string               { return "%.3f" }

func (s *SrcDstRatio) Compute(values []float64) float64 {
	checkArity("SRC_DST_RATIO", values, 2)
	if values[0] == 0 || values[1] == 0 {
		return 0
	}
	return values[0] / values[1]
}

// NbIPToIPPkts is the number of packets exchanged between two addresses.
type NbIPToIPPkts struct {
	name   string
	params []string
	needs  []counters.Counter
}

// NewNbIPToIPPkts builds the parametric pair statistic. Its name embeds
// the normalized address pair, so both argument orders give the same
// identity.
func NewNbIPToIPPkts(a, b string) (*NbIPToIPPkts, error) {
	pair, err := counters.NewIPToIP(a, b)
	if err != nil {
		return nil, err
	}
	first, second := pair.Pair()
	return &NbIPToIPPkts{
		name:   fmt.Sprintf("NB_%s_TO_%s_PKTS", first, second),
		params: []string{first, second},
		needs:  []counters.Counter{pair},
	}, nil
}

// Params returns the normalized constructor parameters.
func (s *NbIPToIPPkts) Params() []string { return s.params }

func (s *NbIPToIPPkts) Name() string              { return s.name }
func (s *NbIPToIPPkts) Description() string       { return "Number of packets between 2 IP" }
func (s *NbIPToIPPkts) Needs() []counters.Counter { return s.needs }
func (s *NbIPToIPPkts) Fmt() string               { return "%d" }

func (s *NbIPToIPPkts) Compute(values []float64) float64 {
	checkArity(s.name, values, 1)
	return values[0]
}
