package transport

import (
	"encoding/json"

	"github.com/plus3/keel/asset"
	"github.com/plus3/keel/engine"
)

// MessageKind is the discriminant every message crossing the isolation
// boundary carries.
type MessageKind string

// Host-to-worker kinds.
const (
	KindSetOptions    MessageKind = "set-options"
	KindSetCanvas     MessageKind = "set-canvas"
	KindSetCanvasSize MessageKind = "set-canvas-size"
	KindAttach        MessageKind = "attach"
	KindDetach        MessageKind = "detach"
	KindSetEnabled    MessageKind = "set-enabled"
	KindBindKeys      MessageKind = "bind-keys"
	KindPointerMove   MessageKind = "pointer-move"
	KindPointerDown   MessageKind = "pointer-down"
	KindPointerUp     MessageKind = "pointer-up"
	KindWheel         MessageKind = "wheel"
	KindKeyDown       MessageKind = "key-down"
	KindKeyUp         MessageKind = "key-up"
	KindReleaseKeys   MessageKind = "release-keys"
	KindStep          MessageKind = "step"
	KindPing          MessageKind = "ping"
	KindSnapshot      MessageKind = "snapshot"
	KindQueryValues   MessageKind = "query-values"
	KindLoadAsset     MessageKind = "load-asset"
	KindQueryAssets   MessageKind = "query-assets"
	KindDestroy       MessageKind = "destroy"
)

// Worker-to-host kinds.
const (
	KindStepDone     MessageKind = "step-done"
	KindPong         MessageKind = "pong"
	KindSnapshotData MessageKind = "snapshot-data"
	KindValuesData   MessageKind = "values-data"
	KindAssetsData   MessageKind = "assets-data"
	KindKeyConsumed  MessageKind = "key-consumed"
	KindWorkerError  MessageKind = "worker-error"
)

// Envelope frames every message. Fire-and-forget kinds leave ID zero;
// request/reply kinds carry a monotonically increasing id per session, and a
// reply echoes the id of the request it answers. Unknown payload fields are
// ignored on decode, so unrecognized option keys are not errors.
type Envelope struct {
	Kind    MessageKind     `json:"kind"`
	ID      uint64          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// encodeMessage serializes an envelope with the given payload.
func encodeMessage(kind MessageKind, id uint64, payload any) ([]byte, error) {
	env := Envelope{Kind: kind, ID: id}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// decodePayload unmarshals the envelope payload into v.
func (e *Envelope) decodePayload(v any) error {
	if e.Payload == nil {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// OptionsPayload is the wire-safe subset of engine.Options. Engine-side
// callables (clock, readiness callback, loader instance) cannot cross the
// boundary; the worker owns its loader outright, rooted by RemoteConfig.
type OptionsPayload struct {
	AssetLoadingBehavior string  `json:"assetLoadingBehavior,omitempty"`
	DevicePixelRatio     float64 `json:"devicePixelRatio,omitempty"`
	Platform             string  `json:"platform,omitempty"`
	FixedDelta           float64 `json:"fixedDelta,omitempty"`
}

// CanvasPayload carries canvas geometry. A live canvas handle cannot cross
// the boundary; the worker creates an offscreen twin from the geometry.
type CanvasPayload struct {
	CanvasID string `json:"canvasId"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// AttachPayload carries a declarative component description.
type AttachPayload struct {
	Spec engine.ComponentSpec `json:"spec"`
}

// NamePayload addresses a component by name.
type NamePayload struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled,omitempty"`
}

// BindKeysPayload registers engine-consumed keys.
type BindKeysPayload struct {
	Keys []engine.Key `json:"keys"`
}

// PointerPayload carries pointer coordinates and an optional button.
type PointerPayload struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button,omitempty"`
}

// WheelPayload carries scroll deltas.
type WheelPayload struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// KeyPayload carries a single key event.
type KeyPayload struct {
	Key engine.Key `json:"key"`
}

// StepPayload asks the worker to advance exactly one frame.
type StepPayload struct {
	Delta float64 `json:"delta"`
}

// StepDonePayload answers a step request after the worker's engine reached
// its readiness point. A non-empty Error carries the engine failure.
type StepDonePayload struct {
	Frame uint64 `json:"frame"`
	Error string `json:"error,omitempty"`
}

// SnapshotRequestPayload asks for a canvas's pixels.
type SnapshotRequestPayload struct {
	CanvasID string `json:"canvasId"`
}

// SnapshotDataPayload answers a snapshot request. Pixels is the raw RGBA
// buffer, row-major.
type SnapshotDataPayload struct {
	CanvasID string `json:"canvasId"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Pixels   []byte `json:"pixels"`
	Error    string `json:"error,omitempty"`
}

// ValuesDataPayload answers a query-values request.
type ValuesDataPayload struct {
	Values map[string]float64 `json:"values"`
}

// LoadAssetPayload requests an asynchronous load on the worker's loader.
type LoadAssetPayload struct {
	Source string     `json:"source"`
	Kind   asset.Kind `json:"kind"`
	Name   string     `json:"name,omitempty"`
}

// AssetInfo describes one resolved asset.
type AssetInfo struct {
	Name   string     `json:"name"`
	Source string     `json:"source"`
	Kind   asset.Kind `json:"kind"`
}

// AssetsDataPayload answers a query-assets request.
type AssetsDataPayload struct {
	Assets  []AssetInfo `json:"assets,omitempty"`
	Pending int         `json:"pending"`
}

// ErrorPayload reports a worker-side failure on a fire-and-forget message.
type ErrorPayload struct {
	Message string `json:"message"`
}
