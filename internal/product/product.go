// Package product defines how product surfaces attach their routes. Each
// product is declared as a value with a registration function, resolved at
// compile time; the router never discovers handlers dynamically.
package product

import (
	"net/http"
	"strings"
	"time"
)

// HandlerFunc is a route handler that reports failure instead of writing it.
// Whatever error comes back is rendered by the router's error normalizer.
type HandlerFunc func(http.ResponseWriter, *http.Request) error

// Registrar is the routing surface handed to a product. Guards and rate
// limits wrap individual handlers so products declare their own policy per
// route, the way they declare the route itself.
type Registrar interface {
	// Handle attaches a handler under the registrar's base path.
	Handle(pattern string, handler HandlerFunc)
	// RequireAuth rejects requests without a valid bearer token.
	RequireAuth(next HandlerFunc) HandlerFunc
	// RequireAdmin composes RequireAuth and additionally demands the admin role.
	RequireAdmin(next HandlerFunc) HandlerFunc
	// RateLimit applies a fixed-window limit to the route, keyed by the
	// authenticated user when present, the client IP otherwise.
	RateLimit(route string, max int, window time.Duration, next HandlerFunc) HandlerFunc
}

// Product describes one mountable product surface.
type Product struct {
	ID       string
	Name     string
	BasePath string
	Register func(Registrar)
}

// Mount attaches every product, honoring base paths. An empty BasePath keeps
// the product's URLs unprefixed.
func Mount(r Registrar, products []Product) {
	for _, p := range products {
		if p.Register == nil {
			continue
		}
		if p.BasePath == "" {
			p.Register(r)
			continue
		}
		p.Register(prefixed{base: strings.TrimSuffix(p.BasePath, "/"), inner: r})
	}
}

type prefixed struct {
	base  string
	inner Registrar
}

func (p prefixed) Handle(pattern string, handler HandlerFunc) {
	p.inner.Handle(p.base+pattern, handler)
}

func (p prefixed) RequireAuth(next HandlerFunc) HandlerFunc {
	return p.inner.RequireAuth(next)
}

func (p prefixed) RequireAdmin(next HandlerFunc) HandlerFunc {
	return p.inner.RequireAdmin(next)
}

func (p prefixed) RateLimit(route string, max int, window time.Duration, next HandlerFunc) HandlerFunc {
	return p.inner.RateLimit(p.base+route, max, window, next)
}
