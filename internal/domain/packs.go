package domain

import (
	"slices"
	"time"
)

// Pack is a purchasable access product.
type Pack struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Tier       Tier          `json:"tier"`
	PriceCents int64         `json:"price_cents"`
	Duration   time.Duration `json:"-"`
	Days       int           `json:"days"`
}

const (
	PackMembership = "membership"
	PackPremium    = "premium"
	PackVIP        = "vip"
)

// LegacyPack is granted by a confirmed legacy verification.
const LegacyPack = PackMembership

const accessYear = 365 * 24 * time.Hour

var packs = []Pack{
	{ID: PackMembership, Name: "Membership", Tier: TierMember, PriceCents: 5000, Duration: accessYear, Days: 365},
	{ID: PackPremium, Name: "Premium", Tier: TierPremium, PriceCents: 12000, Duration: accessYear, Days: 365},
	{ID: PackVIP, Name: "VIP", Tier: TierVIP, PriceCents: 30000, Duration: accessYear, Days: 365},
}

// Packs returns a copy of the catalog.
func Packs() []Pack {
	return slices.Clone(packs)
}

func LookupPack(id string) (Pack, bool) {
	i := slices.IndexFunc(packs, func(p Pack) bool { return p.ID == id })
	if i < 0 {
		return Pack{}, false
	}
	return packs[i], true
}

func ValidLegacyChannel(paidWith string) bool {
	return slices.Contains(LegacyChannels, paidWith)
}
