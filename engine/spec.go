package engine

import (
	"fmt"
	"image/color"
)

// ComponentSpec is a declarative, serializable description of a component.
// It is how component sets cross the transport boundary (a remote session
// cannot pass live closures to its worker) and how harness scenarios declare
// them in YAML.
type ComponentSpec struct {
	Name     string    `json:"name" yaml:"name"`
	Kind     string    `json:"kind" yaml:"kind"`
	Disabled bool      `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	// Keys declares keys the component consumes; attaching the spec binds
	// them on the engine.
	Keys []Key     `json:"keys,omitempty" yaml:"keys,omitempty"`
	Lerp *LerpSpec `json:"lerp,omitempty" yaml:"lerp,omitempty"`
	Dot  *DotSpec  `json:"dot,omitempty" yaml:"dot,omitempty"`
}

// LerpSpec parameterizes a Kind "lerp" component. The built lerp owns its
// own value storage, readable through the engine's Values surface under the
// component name.
type LerpSpec struct {
	From    float64 `json:"from" yaml:"from"`
	Target  float64 `json:"target" yaml:"target"`
	Speed   float64 `json:"speed" yaml:"speed"`
	Mode    string  `json:"mode,omitempty" yaml:"mode,omitempty"` // linear | angular | fractional
	Epsilon float64 `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`
}

// DotSpec parameterizes a Kind "dot" component.
type DotSpec struct {
	X     float64  `json:"x" yaml:"x"`
	Y     float64  `json:"y" yaml:"y"`
	Size  int      `json:"size" yaml:"size"`
	Speed float64  `json:"speed" yaml:"speed"`
	Color [4]uint8 `json:"color,omitempty" yaml:"color,omitempty"`
}

// Build instantiates the described component.
func (s ComponentSpec) Build() (Component, error) {
	switch s.Kind {
	case "lerp":
		if s.Lerp == nil {
			return nil, fmt.Errorf("engine: component %q: missing lerp parameters", s.Name)
		}
		mode, err := parseLerpMode(s.Lerp.Mode)
		if err != nil {
			return nil, fmt.Errorf("engine: component %q: %w", s.Name, err)
		}
		v := s.Lerp.From
		l := NewLerp(s.Name, Float64Var(&v), mode, s.Lerp.Speed)
		l.SetTarget(s.Lerp.Target)
		if s.Lerp.Epsilon > 0 {
			l.SetEpsilon(s.Lerp.Epsilon)
		}
		return l, nil

	case "dot":
		if s.Dot == nil {
			return nil, fmt.Errorf("engine: component %q: missing dot parameters", s.Name)
		}
		col := color.RGBA{R: s.Dot.Color[0], G: s.Dot.Color[1], B: s.Dot.Color[2], A: s.Dot.Color[3]}
		if col.A == 0 {
			col = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
		}
		size := s.Dot.Size
		if size <= 0 {
			size = 4
		}
		return NewDot(s.Name, s.Dot.X, s.Dot.Y, size, s.Dot.Speed, col), nil

	default:
		return nil, fmt.Errorf("engine: unknown component kind %q", s.Kind)
	}
}

func parseLerpMode(mode string) (LerpMode, error) {
	switch mode {
	case "", "linear":
		return LerpLinear, nil
	case "angular":
		return LerpAngular, nil
	case "fractional":
		return LerpFractional, nil
	default:
		return 0, fmt.Errorf("unknown lerp mode %q", mode)
	}
}

// AttachSpec builds the spec, attaches the result to the engine, and binds
// any keys the spec declares.
func (e *Engine) AttachSpec(spec ComponentSpec) error {
	c, err := spec.Build()
	if err != nil {
		return err
	}
	e.Attach(spec.Name, c)
	if len(spec.Keys) > 0 {
		e.BindKeys(spec.Keys...)
	}
	if spec.Disabled {
		e.SetEnabled(spec.Name, false)
	}
	return nil
}
