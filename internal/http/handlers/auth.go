package handlers

import (
	"context"

	"storyforge/internal/domain"
)

// KeyListAuth resolves tiers from a static list of paid API keys. It stands
// in for the external identity provider; anything it does not recognize is
// admitted at the free tier.
type KeyListAuth struct {
	paid map[string]struct{}
}

func NewKeyListAuth(paidKeys []string) *KeyListAuth {
	paid := make(map[string]struct{}, len(paidKeys))
	for _, key := range paidKeys {
		paid[key] = struct{}{}
	}
	return &KeyListAuth{paid: paid}
}

func (a *KeyListAuth) ResolveTier(ctx context.Context, token string) (domain.Tier, error) {
	if _, ok := a.paid[token]; ok && token != "" {
		return domain.TierPaid, nil
	}
	return domain.TierFree, nil
}

var _ domain.AuthProvider = (*KeyListAuth)(nil)
