package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/plus3/keel/canvas"
	"github.com/plus3/keel/engine"
	"github.com/plus3/keel/transport"
)

// Scenario declares a reproducible engine run: which transport variant,
// which component set, and how many fixed-delta frames to advance. The same
// scenario file drives golden-trace tests, transparency checks, and the
// stress binary.
type Scenario struct {
	// Name uniquely identifies the scenario; golden files are stored under
	// it.
	Name string `yaml:"name"`

	// Description explains what the scenario exercises.
	Description string `yaml:"description,omitempty"`

	// Mode selects the transport variant: "direct" (default) or "remote".
	Mode string `yaml:"mode,omitempty"`

	// Frames is the number of fixed-delta frames to advance.
	Frames int `yaml:"frames"`

	// Delta is the per-frame delta in seconds.
	Delta float64 `yaml:"delta"`

	// Canvas optionally registers one canvas before stepping.
	Canvas *CanvasSpec `yaml:"canvas,omitempty"`

	// Components is the declarative component set, attached in order.
	Components []engine.ComponentSpec `yaml:"components"`
}

// CanvasSpec declares a named canvas's geometry.
type CanvasSpec struct {
	ID     string `yaml:"id"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Result carries a completed scenario run's trace and final state.
type Result struct {
	Scenario string
	Frames   int
	Trace    []FrameTrace
	Final    map[string]float64
}

// LoadScenario reads and validates a YAML scenario file. Unknown fields are
// rejected so scenario typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: read scenario: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("harness: parse scenario %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("harness: scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	if s.Frames <= 0 {
		return fmt.Errorf("frames must be positive")
	}
	if s.Delta <= 0 {
		return fmt.Errorf("delta must be positive")
	}
	switch s.Mode {
	case "", "direct", "remote":
	default:
		return fmt.Errorf("unknown mode %q", s.Mode)
	}
	return nil
}

// NewSession builds the scenario's transport variant with its canvas and
// component set applied. The caller owns the session.
func (s *Scenario) NewSession() (transport.Session, error) {
	var session transport.Session
	if s.Mode == "remote" {
		session = transport.NewRemote(transport.RemoteConfig{})
	} else {
		session = transport.NewDirect(engine.Options{})
	}

	if s.Canvas != nil {
		c := canvas.New(s.Canvas.Width, s.Canvas.Height)
		if err := session.SetCanvas(s.Canvas.ID, c); err != nil {
			session.Destroy()
			return nil, err
		}
	}
	for _, spec := range s.Components {
		if err := session.Attach(spec); err != nil {
			session.Destroy()
			return nil, err
		}
	}
	return session, nil
}

// Run executes the scenario to completion and returns its trace.
func (s *Scenario) Run() (*Result, error) {
	session, err := s.NewSession()
	if err != nil {
		return nil, err
	}
	defer session.Destroy()

	driver := NewDriver(session, s.Delta)
	if err := driver.Step(s.Frames); err != nil {
		return nil, err
	}

	trace := driver.Trace()
	res := &Result{
		Scenario: s.Name,
		Frames:   s.Frames,
		Trace:    trace,
	}
	if len(trace) > 0 {
		res.Final = trace[len(trace)-1].Values
	}
	return res, nil
}
