package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/swarmnet/arbiter/dispatch"
	"github.com/swarmnet/arbiter/reward"
	"github.com/swarmnet/arbiter/signing"
	"github.com/swarmnet/arbiter/trust"
)

// HTTP talks to a ledger gateway over plain JSON endpoints:
// GET <base>/v1/participants and POST <base>/v1/weights.
type HTTP struct {
	base   string
	client *http.Client
}

func NewHTTP(baseURL string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{base: baseURL, client: client}
}

func (h *HTTP) Participants(ctx context.Context) ([]dispatch.Participant, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.base+"/v1/participants", nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching participants: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching participants: unexpected status %s", resp.Status)
	}

	var body struct {
		Participants []string `json:"participants"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding participants: %w", err)
	}
	ids := make([]dispatch.Participant, len(body.Participants))
	for i, p := range body.Participants {
		ids[i] = dispatch.Participant(p)
	}
	return ids, nil
}

type publishedEntry struct {
	Participant string  `json:"participant"`
	Value       float64 `json:"value"`
	Weight      float64 `json:"weight"`
}

type publishBody struct {
	Round        uint64           `json:"round"`
	EvidenceRoot string           `json:"evidence_root,omitempty"`
	Entries      []publishedEntry `json:"entries"`
	PubKey       string           `json:"pubkey"`
	Signature    string           `json:"signature"`
}

func (h *HTTP) Publish(ctx context.Context, snapshot signing.Signed[trust.Snapshot]) error {
	data := snapshot.Data()
	body := publishBody{
		Round:        data.Round,
		EvidenceRoot: hex.EncodeToString(data.EvidenceRoot),
		Entries:      make([]publishedEntry, len(data.Entries)),
		PubKey:       hex.EncodeToString(snapshot.PubKey()),
		Signature:    hex.EncodeToString(snapshot.Signature()),
	}
	// The gateway ranks participants by boosted weight; the raw trust
	// values are what the signature covers.
	weights := reward.NormalizeWeights(data.Values())
	for i, e := range data.Entries {
		body.Entries[i] = publishedEntry{Participant: e.Participant, Value: e.Value, Weight: weights[i]}
	}

	encoded, err := json.Marshal(&body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.base+"/v1/weights", bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusAccepted:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return fmt.Errorf("%w: status %s", ErrPublishRejected, resp.Status)
	default:
		return fmt.Errorf("%w: status %s", ErrPublishFailed, resp.Status)
	}
}
