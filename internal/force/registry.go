package force

import (
	"fmt"
	"sort"

	"github.com/san-kum/gravtree/internal/barneshut"
)

type factory func(Options) (Calculator, error)

var registry = map[string]factory{
	"direct": func(o Options) (Calculator, error) {
		return NewDirect(o.pool()), nil
	},
	"barneshut": func(o Options) (Calculator, error) {
		if err := barneshut.ValidateTheta(o.Theta); err != nil {
			return nil, err
		}
		opts := []barneshut.Option{
			barneshut.WithPool(o.pool()),
			barneshut.WithForkThreshold(o.ForkThreshold),
			barneshut.WithMetrics(o.Metrics),
		}
		if o.Logger != nil {
			opts = append(opts, barneshut.WithLogger(o.Logger))
		}
		return NewBarnesHut(o.Theta, opts...), nil
	},
}

// New builds the calculator registered under name.
func New(name string, o Options) (Calculator, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown force method: %s", name)
	}
	return fn(o)
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
