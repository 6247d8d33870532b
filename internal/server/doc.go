// Package server exposes the media file downloader over HTTP.
//
// # Router Infrastructure
//
// [Mux] implements [Router] on top of [http.ServeMux] method patterns. [Middleware] registered with
// Use wraps every route mounted after it; the first middleware added sees the request first.
//
// # Generation Handler
//
// [GenerationHandler] drives a single downloader:
//
//	POST   /generations          start a generation ({"id": "...", "urls": [...]}), 409 while one is running
//	GET    /generations          list recorded generations (?request_id=, ?status=, ?limit=)
//	GET    /generations/current  report the active generation, if any
//	DELETE /generations/current  cancel the active generation
//	GET    /generations/{id}     latest recorded generation for a playlist id
//	GET    /health               liveness
//
// Accepted generations are watched in the background; the outcome is written to history and, when a
// publisher is configured, the media file is uploaded to a bucket.
//
// A [Handler] reports its own patterns through Routes, so Mount needs no route table of its own.
package server
