package server

import (
	"net/http"
	"slices"
)

// Mux is the [Router] used by the serve command. Method matching is left to [http.ServeMux]
// patterns, so a known path requested with the wrong method answers 405.
type Mux struct {
	mux   *http.ServeMux
	chain []Middleware
}

var _ Router = (*Mux)(nil)

func NewMux() *Mux {
	return &Mux{mux: http.NewServeMux()}
}

// Use appends middleware. It only affects routes registered afterwards.
func (m *Mux) Use(middleware ...Middleware) {
	m.chain = append(m.chain, middleware...)
}

// Handle registers handler for "METHOD path".
func (m *Mux) Handle(method, path string, handler http.Handler) {
	m.mux.Handle(method+" "+path, m.wrap(handler))
}

// Mount registers handler under every pattern it reports.
func (m *Mux) Mount(handler Handler) {
	wrapped := m.wrap(handler)
	for _, pattern := range handler.Routes() {
		m.mux.Handle(pattern, wrapped)
	}
}

func (m *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}

func (m *Mux) wrap(handler http.Handler) http.Handler {
	for _, mw := range slices.Backward(m.chain) {
		handler = mw(handler)
	}
	return handler
}
