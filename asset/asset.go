// Package asset implements a deduplicating asynchronous loader: a source
// identifier resolves to a usable payload exactly once, regardless of how
// many callers request it concurrently. The loader's state is private to one
// engine instance and is never shared.
package asset

// Kind tags the decode strategy for a source.
type Kind string

const (
	// KindImage decodes the source as PNG or JPEG into an image.Image.
	KindImage Kind = "image"

	// KindJSON decodes the source as JSON into an untyped value.
	KindJSON Kind = "json"
)

// Disposer is implemented by payloads that hold native resources the loader
// must release when it owns them.
type Disposer interface {
	Dispose()
}

// Asset is a loaded resource record, published under both its logical name
// and its raw source identifier.
type Asset struct {
	// Name is the logical name the asset was requested under. Defaults to
	// the source when no name was given.
	Name string

	// Source is the original requested path or URL.
	Source string

	// Kind is the decode strategy that produced the payload.
	Kind Kind

	// Payload is the decoded resource.
	Payload any

	// Owned marks the loader responsible for releasing the payload's native
	// resources on Close. Assets registered from outside are not owned.
	Owned bool
}
