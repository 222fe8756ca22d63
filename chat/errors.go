package chat

import "errors"

var (
	// ErrInvalidInput marks a missing or empty required field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrServiceUnavailable marks a dependent client that was never configured.
	ErrServiceUnavailable = errors.New("LLM not initialized. Please check GROQ_API_KEY in the environment")
	// ErrUpstream marks a failed call to an external collaborator.
	ErrUpstream = errors.New("upstream failure")
	// ErrInternal marks an unexpected failure while composing or generating an answer.
	ErrInternal = errors.New("internal error")
)
