package server

import "net/http"

// Middleware decorates a handler. The first middleware passed to [Router.Use] is the outermost.
type Middleware func(http.Handler) http.Handler

// Handler serves a group of endpoints and lists the mux patterns it owns.
type Handler interface {
	http.Handler
	Routes() []string
}

// Router mounts handlers behind a shared middleware chain.
type Router interface {
	http.Handler
	Use(middleware ...Middleware)
	Handle(method, path string, handler http.Handler)
	Mount(handler Handler)
}
