package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Tier is an access level. Tiers are totally ordered: TierPublic < TierMember < TierPremium < TierVIP.
type Tier int

const (
	TierPublic Tier = iota
	TierMember
	TierPremium
	TierVIP
)

// MaxTier is what staff roles always resolve to.
const MaxTier = TierVIP

var tierNames = [...]string{"public", "member", "premium", "vip"}

func (t Tier) String() string {
	if t < TierPublic || t > MaxTier {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

func (t Tier) Valid() bool {
	return t >= TierPublic && t <= MaxTier
}

// ParseTier accepts a tier name.
func ParseTier(s string) (Tier, error) {
	for i, name := range tierNames {
		if name == s {
			return Tier(i), nil
		}
	}
	return TierPublic, fmt.Errorf("unknown tier %q", s)
}

func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// roleTiers is the base tier granted by each non-staff role.
var roleTiers = map[string]Tier{
	RoleGuest:   TierPublic,
	RoleUser:    TierPublic,
	RoleMember:  TierMember,
	RolePremium: TierPremium,
	RoleVIP:     TierVIP,
}

func IsStaff(role string) bool {
	return slices.Contains(StaffRoles, role)
}

func ValidRole(role string) bool {
	return slices.Contains(Roles, role)
}

// BaseTier is the tier carried by the role alone. Unknown roles get TierPublic.
func BaseTier(role string) Tier {
	if IsStaff(role) {
		return MaxTier
	}
	return roleTiers[role]
}

// Grant is a tier unlocked by a paid payment or a confirmed legacy verification.
// Until is nil for grants that never lapse on their own.
type Grant struct {
	Tier  Tier       `json:"tier"`
	Until *time.Time `json:"until,omitempty"`
}

// Entitlement is everything tier resolution looks at.
type Entitlement struct {
	Role                string
	PaidAccessExpiresAt *time.Time
	Grants              []Grant
}

// ResolveTier computes the effective tier. Grants can only raise the role's base tier,
// and only while both the account-level paid access and the grant itself are current.
func ResolveTier(e Entitlement, now time.Time) Tier {
	tier := BaseTier(e.Role)
	if IsStaff(e.Role) {
		return tier
	}
	if e.PaidAccessExpiresAt != nil && !now.Before(*e.PaidAccessExpiresAt) {
		return tier
	}
	for _, g := range e.Grants {
		if g.Until != nil && !now.Before(*g.Until) {
			continue
		}
		if g.Tier > tier {
			tier = g.Tier
		}
	}
	return tier
}

func HasAccess(tier, required Tier) bool {
	return tier >= required
}
