package services

import "errors"

// Error kinds surfaced by the core pipeline. Handlers map these onto
// HTTP statuses; none are retried automatically inside the services.
var (
	// ErrInvalidIdentifier means the supplied reference matched no known
	// pattern. User-correctable.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrUnreadablePDF means the upload yielded too little extractable
	// text to be a real paper.
	ErrUnreadablePDF = errors.New("could not extract readable text from PDF")

	// ErrSummarizationFailed wraps an LLM failure during summarization.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrAnswerFailed wraps an LLM failure during question answering.
	ErrAnswerFailed = errors.New("answer generation failed")
)
