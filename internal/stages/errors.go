package stages

import "errors"

// Sentinel errors for stage execution and prompt loading.
var (
	ErrInvalidStage  = errors.New("invalid stage")
	ErrInvalidPrompt = errors.New("invalid prompt template")
	ErrStoreFailed   = errors.New("failed to store writer output")
)
