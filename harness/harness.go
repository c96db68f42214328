// Package harness drives a session frame by frame for tests: advance n
// frames while awaiting each frame's readiness handshake under a bound,
// capture canvas snapshots into per-test artifact folders, and record value
// traces for golden comparison.
//
// The timeout lives here and not in the engine: the production host (a
// display refresh callback) has no bound to enforce, so exceeding it is a
// fatal test failure, never an engine-level error.
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/plus3/keel/transport"
)

// DefaultStepTimeout bounds how long a single frame's handshake may take.
const DefaultStepTimeout = 5 * time.Second

// StepTimeoutError reports that a frame's readiness signal did not arrive
// within the driver's bound.
type StepTimeoutError struct {
	// Frame is the zero-based index of the frame that timed out, counted
	// from the driver's creation.
	Frame int

	// Timeout is the bound that was exceeded.
	Timeout time.Duration
}

// Error implements the error interface.
func (e *StepTimeoutError) Error() string {
	return fmt.Sprintf("harness: no frame readiness within %s (frame %d)", e.Timeout, e.Frame)
}

// IsStepTimeout returns true if the error is a harness step timeout.
// Uses errors.As to handle wrapped errors.
func IsStepTimeout(err error) bool {
	var se *StepTimeoutError
	return errors.As(err, &se)
}

// FrameTrace records one frame's observable state.
type FrameTrace struct {
	Frame  uint64             `json:"frame"`
	Values map[string]float64 `json:"values"`
}

// Driver steps a session synchronously, recording a value trace per frame.
type Driver struct {
	session transport.Session
	delta   float64
	timeout time.Duration
	stepped int
	trace   []FrameTrace
}

// NewDriver wraps a session with a fixed per-frame delta.
func NewDriver(s transport.Session, delta float64) *Driver {
	return &Driver{session: s, delta: delta, timeout: DefaultStepTimeout}
}

// SetTimeout overrides the per-frame handshake bound.
func (d *Driver) SetTimeout(timeout time.Duration) { d.timeout = timeout }

// Step advances n frames, awaiting each frame's readiness handshake.
func (d *Driver) Step(n int) error {
	for i := 0; i < n; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		frame, err := d.session.StepFrame(ctx, d.delta)
		if err != nil {
			cancel()
			if errors.Is(err, context.DeadlineExceeded) {
				return &StepTimeoutError{Frame: d.stepped, Timeout: d.timeout}
			}
			return err
		}
		vals, err := d.session.Values(ctx)
		cancel()
		if err != nil {
			return err
		}
		d.stepped++
		d.trace = append(d.trace, FrameTrace{Frame: frame, Values: vals})
	}
	return nil
}

// MustStep advances n frames and fails the test fatally on any error,
// including a handshake timeout.
func (d *Driver) MustStep(t *testing.T, n int) {
	t.Helper()
	if err := d.Step(n); err != nil {
		t.Fatalf("step failed: %v", err)
	}
}

// Trace returns the per-frame value records so far.
func (d *Driver) Trace() []FrameTrace { return d.trace }

// Snapshot captures a canvas into a persisted PNG artifact under a
// deterministic folder derived from the test's name, and returns its path.
func (d *Driver) Snapshot(t *testing.T, canvasID string) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	img, err := d.session.SnapshotCanvas(ctx, canvasID)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	dir := filepath.Join("testdata", "snapshots", sanitizeName(t.Name()))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("snapshot dir: %v", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("frame_%04d.png", d.stepped))

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("snapshot file: %v", err)
	}
	defer f.Close()
	if err := writePNG(f, img); err != nil {
		t.Fatalf("snapshot encode: %v", err)
	}
	return path
}

func sanitizeName(name string) string {
	r := strings.NewReplacer("/", "_", " ", "_", "#", "_")
	return r.Replace(name)
}
