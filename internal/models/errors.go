package models

import "errors"

// Error taxonomy shared across components. Callers classify with errors.Is;
// components wrap these with %w to add detail.
var (
	// ErrNotReady indicates the vector index for a lecture has not been built.
	ErrNotReady = errors.New("index not ready")

	// ErrAlreadyProcessing indicates an ingestion for the lecture is in flight.
	ErrAlreadyProcessing = errors.New("lecture already processing")

	// ErrAlreadyIngested indicates the lecture is ready and must be
	// re-ingested through the explicit re-ingest operation.
	ErrAlreadyIngested = errors.New("lecture already ingested")

	// ErrLectureNotFound indicates the lecture id does not exist.
	ErrLectureNotFound = errors.New("lecture not found")

	// ErrLectureNotReady indicates generation was requested before the
	// lecture finished ingestion.
	ErrLectureNotReady = errors.New("lecture not ready")

	// ErrLectureInUse indicates the lecture still owns QA pairs and cannot
	// be deleted.
	ErrLectureInUse = errors.New("lecture has existing QA pairs")

	// ErrGenerationFailed indicates the generative service exhausted its
	// retry/round budget or persistently returned malformed output.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrQANotFound indicates the qa id does not reference a stored pair.
	ErrQANotFound = errors.New("qa pair not found")
)
