package providers

// FallbackPolicy is the ordered provider chain resolved once per configured
// inference mode. It is read-only after resolution.
type FallbackPolicy struct {
	Chain         []Kind
	AllowFallback bool
}

// Selector picks providers along a fallback chain. Selection is purely
// chain order plus elimination: no scoring, no health-based reordering.
type Selector struct {
	pool *Pool
}

func NewSelector(pool *Pool) *Selector {
	return &Selector{pool: pool}
}

// FallbackChainFor maps an inference mode to its fallback policy. The
// mapping is deterministic and does no I/O; unknown modes resolve to "auto".
func (s *Selector) FallbackChainFor(mode string) FallbackPolicy {
	switch mode {
	case "cloud_only":
		return FallbackPolicy{Chain: []Kind{KindCloud}, AllowFallback: false}
	case "local_only":
		return FallbackPolicy{Chain: []Kind{KindLocal}, AllowFallback: false}
	case "on_device":
		return FallbackPolicy{Chain: []Kind{KindNativeMobile, KindLocal, KindCloud}, AllowFallback: true}
	default: // "auto"
		return FallbackPolicy{Chain: []Kind{KindCloud, KindVendor, KindLocal}, AllowFallback: true}
	}
}

// NextProvider returns the next candidate after failed, scanning the chain
// in order and skipping kinds with no viable implementation. Pass KindNone
// for the initial pick. A provider kind is never returned twice within one
// task: the scan resumes after the failed kind's chain position. The second
// return is false when the chain is exhausted, or when fallback is disabled
// and a provider already failed.
func (s *Selector) NextProvider(policy FallbackPolicy, failed Kind) (Kind, bool) {
	start := 0
	if failed != KindNone {
		if !policy.AllowFallback {
			return KindNone, false
		}
		idx := -1
		for i, kind := range policy.Chain {
			if kind == failed {
				idx = i
				break
			}
		}
		start = idx + 1
	}

	for _, kind := range policy.Chain[minIdx(start, len(policy.Chain)):] {
		if kind == failed {
			continue
		}
		if !s.pool.Registered(kind) {
			continue
		}
		return kind, true
	}
	return KindNone, false
}

func minIdx(a, b int) int {
	if a < b {
		return a
	}
	return b
}
