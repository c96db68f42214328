package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the serialized form of a scenario run used for golden
// comparison. Values maps round-trip through JSON without loss, so a stored
// trace pins the engine's numeric behavior exactly.
type TraceSnapshot struct {
	Scenario string       `json:"scenario"`
	Trace    []FrameTrace `json:"trace"`
}

// AssertGolden compares a scenario result against its stored golden trace.
// Run with -update to regenerate fixtures.
func AssertGolden(t *testing.T, res *Result) {
	t.Helper()

	snap := TraceSnapshot{Scenario: res.Scenario, Trace: res.Trace}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.Fatalf("marshal trace: %v", err)
	}
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, res.Scenario, data)
}
