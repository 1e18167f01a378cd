package engine

import "context"

// Engine owns one browsing session. Implementations: RodEngine (real
// Chromium) and HTTPEngine (static, server-rendered pages only).
type Engine interface {
	// Name returns the engine identifier ("rod" or "http").
	Name() string

	// Page returns the single page the session drives.
	Page() Page

	// Close releases the session. It is safe to call once.
	Close() error
}

// Page is the subset of a browser tab the harvester needs. Every method that
// talks to the page takes a context bounding that call.
type Page interface {
	// Navigate loads url and returns once the document has been committed.
	Navigate(ctx context.Context, url string) error

	// Has reports whether at least one element matches selector right now.
	// It never blocks waiting for the element.
	Has(ctx context.Context, selector string) (bool, error)

	// Elements returns every element matching selector, possibly none.
	Elements(ctx context.Context, selector string) ([]Element, error)

	// HTML returns the current document markup.
	HTML(ctx context.Context) (string, error)

	// URL returns the address of the current document.
	URL() string
}

// Element is a node inside a Page.
type Element interface {
	// Text returns the rendered text content.
	Text(ctx context.Context) (string, error)

	// Attribute returns the named attribute, or "" with ok=false when absent.
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)

	// Elements returns the descendants matching selector.
	Elements(ctx context.Context, selector string) ([]Element, error)

	// Click activates the element. Navigation it triggers is not awaited.
	Click(ctx context.Context) error
}
