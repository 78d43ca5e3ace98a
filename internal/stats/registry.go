package stats

import (
	"fmt"
	"sort"

	"github.com/asiffer/netspot/internal/errs"
)

type entry struct {
	description    string
	requiresParams bool
	build          func(params []string) (Statistic, error)
}

func simple(build func() Statistic) func(params []string) (Statistic, error) {
	return func(params []string) (Statistic, error) {
		if len(params) > 0 {
			return nil, fmt.Errorf("%w: this statistic takes no parameter", errs.ErrInvalidConfig)
		}
		return build(), nil
	}
}

// The registration table is the explicit counterpart of the source's
// module introspection: every available statistic is declared here.
var registry = map[string]entry{
	"R_SYN": {
		description: "Ratio of SYN packets",
		build:       simple(func() Statistic { return NewRSyn() }),
	},
	"R_ACK": {
		description: "Ratio of ACK packets",
		build:       simple(func() Statistic { return NewRAck() }),
	},
	"R_ICMP": {
		description: "Ratio of ICMP packets",
		build:       simple(func() Statistic { return NewRIcmp() }),
	},
	"AVG_PKT_BYTES": {
		description: "Average size of IP packets",
		build:       simple(func() Statistic { return NewAvgPktBytes() }),
	},
	"NB_IP_PKTS": {
		description: "Number of IP packets",
		build:       simple(func() Statistic { return NewNbIPPkts() }),
	},
	"SRC_DST_RATIO": {
		description: "Ratio (unique src addr)/(unique dst addr)",
		build:       simple(func() Statistic { return NewSrcDstRatio() }),
	},
	"NB_IP_TO_IP_PKTS": {
		description:    "Number of packets between 2 IP",
		requiresParams: true,
		build: func(params []string) (Statistic, error) {
			if len(params) != 2 {
				return nil, fmt.Errorf("%w: NB_IP_TO_IP_PKTS needs exactly two addresses", errs.ErrInvalidConfig)
			}
			return NewNbIPToIPPkts(params[0], params[1])
		},
	},
}

// Available returns the sorted names of the registered statistic classes.
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe returns the description of a statistic class.
func Describe(name string) (string, bool) {
	e, ok := registry[name]
	if !ok {
		return "", false
	}
	return e.description, true
}

// RequiresParams reports whether a statistic class needs positional
// parameters at construction.
func RequiresParams(name string) bool {
	return registry[name].requiresParams
}

// FromName instantiates a statistic class.
func FromName(name string, params ...string) (Statistic, error) {
	e, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown statistic %q", errs.ErrInvalidConfig, name)
	}
	return e.build(params)
}
