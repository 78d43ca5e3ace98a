package counters

import (
	"fmt"
	"sort"

	"github.com/asiffer/netspot/internal/errs"
)

// Builder instantiates a counter from optional positional parameters.
type Builder func(params ...string) (Counter, error)

func noParams(name string, build func() Counter) Builder {
	return func(params ...string) (Counter, error) {
		if len(params) > 0 {
			return nil, fmt.Errorf("%w: counter %s takes no parameter", errs.ErrInvalidConfig, name)
		}
		return build(), nil
	}
}

// The registration table replaces the source's introspection of the module
// namespace: every available counter is declared here at program start.
var registry = map[string]Builder{
	"IP":              noParams("IP", func() Counter { return NewIP() }),
	"ICMP":            noParams("ICMP", func() Counter { return NewICMP() }),
	"SYN":             noParams("SYN", func() Counter { return NewSYN() }),
	"ACK":             noParams("ACK", func() Counter { return NewACK() }),
	"IP_BYTES":        noParams("IP_BYTES", func() Counter { return NewIPBytes() }),
	"UNIQUE_SRC_ADDR": noParams("UNIQUE_SRC_ADDR", func() Counter { return NewUniqueSrcAddr() }),
	"UNIQUE_DST_ADDR": noParams("UNIQUE_DST_ADDR", func() Counter { return NewUniqueDstAddr() }),
	"IP_TO_IP": func(params ...string) (Counter, error) {
		if len(params) != 2 {
			return nil, fmt.Errorf("%w: IP_TO_IP needs exactly two addresses", errs.ErrInvalidConfig)
		}
		return NewIPToIP(params[0], params[1])
	},
}

// Available returns the sorted names of the registered counter kinds.
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FromName instantiates a counter of the given kind.
func FromName(name string, params ...string) (Counter, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown counter %q", errs.ErrInvalidConfig, name)
	}
	return build(params...)
}
