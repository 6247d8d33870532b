// Package models defines the values that flow through a playlist media-file generation.
//
// The package contains two categories of types:
//
// 1. Request/result values: immutable inputs and outputs of a generation
//   - [GenerationRequest] : playlist id plus ordered [SourceDescriptor] entries
//   - [GenerationResult] : unified file path, partial flag and skipped indices
//   - [RecordKeys] : caller-chosen field names for record-shaped intake and output
//
// 2. Persistent Entities: Database-backed history of generations
//   - [GenerationJob] : one generation attempt with its outcome
//
// All persistent entities implement the Model interface providing ID generation, timestamps and validation.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
