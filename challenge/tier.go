package challenge

import "fmt"

// Tier is an ordered difficulty level. Higher tiers widen generation
// ranges and unlock motion laws for goals and obstacles.
type Tier uint8

const (
	TierBasic Tier = iota
	TierMoving
	TierOrbital
	TierExpert

	NumTiers = 4
)

func (t Tier) Valid() bool { return t < NumTiers }

func (t Tier) String() string {
	switch t {
	case TierBasic:
		return "basic"
	case TierMoving:
		return "moving"
	case TierOrbital:
		return "orbital"
	case TierExpert:
		return "expert"
	default:
		return fmt.Sprintf("tier-%d", uint8(t))
	}
}

// UnmarshalFlag implements flags.Unmarshaler.
func (t *Tier) UnmarshalFlag(value string) error {
	for i := Tier(0); i < NumTiers; i++ {
		if i.String() == value {
			*t = i
			return nil
		}
	}
	var n uint8
	if _, err := fmt.Sscanf(value, "%d", &n); err != nil || !Tier(n).Valid() {
		return fmt.Errorf("unknown difficulty tier %q", value)
	}
	*t = Tier(n)
	return nil
}
