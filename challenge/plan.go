package challenge

import (
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/sha256-simd"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/swarmnet/arbiter/util"
	"github.com/swarmnet/arbiter/world"
)

//go:embed flightplan.schema.json
var flightPlanSchemaJSON string

var flightPlanSchema = jsonschema.MustCompileString("flightplan.schema.json", flightPlanSchemaJSON)

// ControlSample is one timestamped control output: the thrust vector the
// participant's controller commands at time T. Samples are held
// zero-order until the next sample.
type ControlSample struct {
	T      time.Duration
	Thrust world.Vec3
}

// FlightPlan is a participant's answer to a challenge. It is evidence to
// be independently replayed, never an authority: every number in it is
// untrusted until the replay engine has clamped and re-executed it.
type FlightPlan struct {
	ChallengeID string
	Capability  string
	Commands    []ControlSample
}

// Digest returns the hex digest of the plan's canonical encoding. Audit
// bundles record digests so disputes can prove which plan was scored.
func (p *FlightPlan) Digest() string {
	data, err := util.Encode(p)
	if err != nil {
		panic(err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DecodeFlightPlan parses and schema-validates a JSON flight plan as
// received from the wire. The schema bounds sizes and types only;
// numeric sanity is the replay engine's job.
func DecodeFlightPlan(data []byte) (*FlightPlan, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing flight plan: %w", err)
	}
	if err := flightPlanSchema.Validate(raw); err != nil {
		return nil, fmt.Errorf("flight plan rejected by schema: %w", err)
	}

	var wire struct {
		ChallengeID string `json:"challenge_id"`
		Capability  string `json:"capability"`
		Commands    []struct {
			T      float64    `json:"t"`
			Thrust [3]float64 `json:"thrust"`
		} `json:"commands"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("parsing flight plan: %w", err)
	}

	plan := &FlightPlan{
		ChallengeID: wire.ChallengeID,
		Capability:  wire.Capability,
		Commands:    make([]ControlSample, len(wire.Commands)),
	}
	for i, c := range wire.Commands {
		plan.Commands[i] = ControlSample{
			T:      time.Duration(c.T * float64(time.Second)),
			Thrust: world.Vec3{X: c.Thrust[0], Y: c.Thrust[1], Z: c.Thrust[2]},
		}
	}
	return plan, nil
}

// EncodeFlightPlan serializes a plan to the wire format accepted by
// DecodeFlightPlan. Used by the in-process participant client and tests.
func EncodeFlightPlan(p *FlightPlan) ([]byte, error) {
	type wireCmd struct {
		T      float64    `json:"t"`
		Thrust [3]float64 `json:"thrust"`
	}
	wire := struct {
		ChallengeID string    `json:"challenge_id"`
		Capability  string    `json:"capability"`
		Commands    []wireCmd `json:"commands"`
	}{
		ChallengeID: p.ChallengeID,
		Capability:  p.Capability,
		Commands:    make([]wireCmd, len(p.Commands)),
	}
	for i, c := range p.Commands {
		wire.Commands[i] = wireCmd{
			T:      c.T.Seconds(),
			Thrust: [3]float64{c.Thrust.X, c.Thrust.Y, c.Thrust.Z},
		}
	}
	return json.Marshal(wire)
}
