// package repositories provides persistence for generation history.
//
// [GenerationRepository] implements models.Repository[*models.GenerationJob] with soft deletes
// and sequence numbers. [JobRecorder] wraps it for callers that only report lifecycle events.
package repositories
