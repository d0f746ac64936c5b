package challenge

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/swarmnet/arbiter/world"
)

func testPlan() *FlightPlan {
	return &FlightPlan{
		ChallengeID: strings.Repeat("ab", 32),
		Capability:  "courier",
		Commands: []ControlSample{
			{T: 0, Thrust: world.Vec3{Z: 15}},
			{T: 250 * time.Millisecond, Thrust: world.Vec3{X: 2, Z: 12}},
			{T: time.Second, Thrust: world.Vec3{Z: 11}},
		},
	}
}

func TestFlightPlanRoundtrip(t *testing.T) {
	t.Parallel()
	plan := testPlan()

	data, err := EncodeFlightPlan(plan)
	require.NoError(t, err)

	decoded, err := DecodeFlightPlan(data)
	require.NoError(t, err)
	require.Equal(t, plan, decoded)
}

func TestDecodeFlightPlanRejections(t *testing.T) {
	t.Parallel()
	valid, err := EncodeFlightPlan(testPlan())
	require.NoError(t, err)

	for name, data := range map[string]string{
		"not json":            "thrust go brrr",
		"missing capability":  `{"challenge_id":"` + strings.Repeat("ab", 32) + `","commands":[{"t":0,"thrust":[0,0,1]}]}`,
		"bad challenge id":    strings.Replace(string(valid), strings.Repeat("ab", 32), "not-a-digest", 1),
		"empty commands":      `{"challenge_id":"` + strings.Repeat("ab", 32) + `","capability":"courier","commands":[]}`,
		"short thrust vector": `{"challenge_id":"` + strings.Repeat("ab", 32) + `","capability":"courier","commands":[{"t":0,"thrust":[0,1]}]}`,
		"negative timestamp":  `{"challenge_id":"` + strings.Repeat("ab", 32) + `","capability":"courier","commands":[{"t":-1,"thrust":[0,0,1]}]}`,
		"unknown field":       `{"challenge_id":"` + strings.Repeat("ab", 32) + `","capability":"courier","autopilot":true,"commands":[{"t":0,"thrust":[0,0,1]}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeFlightPlan([]byte(data))
			require.Error(t, err)
		})
	}
}

func TestFlightPlanDigest(t *testing.T) {
	t.Parallel()
	plan := testPlan()
	other := testPlan()

	require.Len(t, plan.Digest(), 64)
	require.Equal(t, plan.Digest(), other.Digest())

	other.Commands[1].Thrust.X += 0.5
	require.NotEqual(t, plan.Digest(), other.Digest())
}
