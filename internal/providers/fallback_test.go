package providers

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
)

type stubProvider struct {
	kind Kind
}

func (s *stubProvider) Kind() Kind { return s.kind }

func (s *stubProvider) GenerateStory(context.Context, StoryRequest) (string, error) {
	return "stub story", nil
}

func (s *stubProvider) Synthesize(context.Context, NarrationRequest) (string, error) {
	return "stub.wav", nil
}

func (s *stubProvider) CreateFrames(context.Context, FramesRequest) ([]string, error) {
	return []string{"stub.png"}, nil
}

func poolWith(kinds ...Kind) *Pool {
	pool := NewPool(zerolog.Nop())
	for _, kind := range kinds {
		k := kind
		pool.Register(k, func() (Provider, error) {
			return &stubProvider{kind: k}, nil
		})
	}
	return pool
}

func TestFallbackChainFor(t *testing.T) {
	sel := NewSelector(poolWith())

	tests := []struct {
		mode  string
		chain []Kind
		allow bool
	}{
		{"cloud_only", []Kind{KindCloud}, false},
		{"local_only", []Kind{KindLocal}, false},
		{"on_device", []Kind{KindNativeMobile, KindLocal, KindCloud}, true},
		{"auto", []Kind{KindCloud, KindVendor, KindLocal}, true},
		{"", []Kind{KindCloud, KindVendor, KindLocal}, true},
		{"nonsense", []Kind{KindCloud, KindVendor, KindLocal}, true},
	}
	for _, tc := range tests {
		policy := sel.FallbackChainFor(tc.mode)
		if policy.AllowFallback != tc.allow {
			t.Fatalf("mode %q: AllowFallback = %v, want %v", tc.mode, policy.AllowFallback, tc.allow)
		}
		if len(policy.Chain) != len(tc.chain) {
			t.Fatalf("mode %q: chain %v, want %v", tc.mode, policy.Chain, tc.chain)
		}
		for i := range tc.chain {
			if policy.Chain[i] != tc.chain[i] {
				t.Fatalf("mode %q: chain %v, want %v", tc.mode, policy.Chain, tc.chain)
			}
		}
	}
}

func TestNextProviderInitialPick(t *testing.T) {
	sel := NewSelector(poolWith(KindCloud, KindVendor, KindLocal))
	policy := sel.FallbackChainFor("auto")

	kind, ok := sel.NextProvider(policy, KindNone)
	if !ok || kind != KindCloud {
		t.Fatalf("got (%q, %v), want (cloud, true)", kind, ok)
	}
}

func TestNextProviderSkipsUnregistered(t *testing.T) {
	sel := NewSelector(poolWith(KindLocal))
	policy := sel.FallbackChainFor("auto")

	kind, ok := sel.NextProvider(policy, KindNone)
	if !ok || kind != KindLocal {
		t.Fatalf("got (%q, %v), want (local, true)", kind, ok)
	}
}

func TestNextProviderResumesAfterFailure(t *testing.T) {
	sel := NewSelector(poolWith(KindCloud, KindVendor, KindLocal))
	policy := sel.FallbackChainFor("auto")

	kind, ok := sel.NextProvider(policy, KindCloud)
	if !ok || kind != KindVendor {
		t.Fatalf("after cloud: got (%q, %v), want (vendor, true)", kind, ok)
	}

	kind, ok = sel.NextProvider(policy, KindVendor)
	if !ok || kind != KindLocal {
		t.Fatalf("after vendor: got (%q, %v), want (local, true)", kind, ok)
	}

	if kind, ok = sel.NextProvider(policy, KindLocal); ok {
		t.Fatalf("chain must be exhausted after the last kind, got %q", kind)
	}
}

func TestNextProviderNeverRevisitsEarlierKinds(t *testing.T) {
	// Cloud is registered but comes before the failed vendor in the chain,
	// so it must not be offered again.
	sel := NewSelector(poolWith(KindCloud, KindVendor))
	policy := sel.FallbackChainFor("auto")

	if kind, ok := sel.NextProvider(policy, KindVendor); ok {
		t.Fatalf("selector went backwards in the chain to %q", kind)
	}
}

func TestNextProviderFallbackDisabled(t *testing.T) {
	sel := NewSelector(poolWith(KindCloud, KindLocal))
	policy := sel.FallbackChainFor("cloud_only")

	kind, ok := sel.NextProvider(policy, KindNone)
	if !ok || kind != KindCloud {
		t.Fatalf("initial pick: got (%q, %v), want (cloud, true)", kind, ok)
	}
	if kind, ok := sel.NextProvider(policy, KindCloud); ok {
		t.Fatalf("fallback offered %q despite being disabled", kind)
	}
}

func TestNextProviderNothingRegistered(t *testing.T) {
	sel := NewSelector(poolWith())
	policy := sel.FallbackChainFor("auto")

	if kind, ok := sel.NextProvider(policy, KindNone); ok {
		t.Fatalf("empty pool produced %q", kind)
	}
}

func TestPoolConstructsHandleOnce(t *testing.T) {
	pool := NewPool(zerolog.Nop())
	var built int
	pool.Register(KindCloud, func() (Provider, error) {
		built++
		return &stubProvider{kind: KindCloud}, nil
	})

	first, err := pool.Get(KindCloud)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := pool.Get(KindCloud)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if built != 1 {
		t.Fatalf("factory ran %d times, want 1", built)
	}
	if first != second {
		t.Fatal("Get returned different handles for the same kind")
	}
}

func TestPoolGetUnregistered(t *testing.T) {
	pool := NewPool(zerolog.Nop())
	if _, err := pool.Get(KindVendor); err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}
