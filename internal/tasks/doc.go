// Package tasks turns a playlist's media sources into one unified media file with real-time progress reporting.
//
// # Core Operations
//
// [MediaFileDownloader] runs one generation at a time:
//
//  1. Staging : creates <base>/<id>/<staging> on a worker, clearing leftovers from earlier runs
//  2. Download : fetches every source concurrently into staging/<index>
//     - each source is retried once, and only after a network change
//     - a failed source simply leaves no staging file
//  3. Assembly : [Assemble] appends staged files to the unified file in index order
//     - 64 KiB chunks, per-source rollback on short writes
//     - staging files and directory are always removed
//
// Completion is delivered through a [Generation]. Cancelling closes it without a value.
//
// # Concurrency
//
// All generation state lives on one goroutine. Fetch goroutines and [WorkerPool] tasks report back as
// events carrying the epoch they were started under, and events from an older epoch are dropped.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Batches
//
// [BatchRunner] feeds a list of requests through one downloader with rate limiting, records history through
// an optional [Recorder], and writes a manifest of the results.
package tasks
