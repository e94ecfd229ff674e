package sdruntime

import "errors"

// Sentinel errors for SD runtime operations.
var (
	// Library errors
	ErrLibraryUnavailable = errors.New("sdruntime: stable diffusion library unavailable")

	// Model-related errors
	ErrModelNotFound   = errors.New("sdruntime: model file not found")
	ErrModelLoadFailed = errors.New("sdruntime: failed to load model")

	// Generation errors
	ErrGenerationFailed = errors.New("sdruntime: image generation failed")
	ErrOutOfVRAM        = errors.New("sdruntime: out of VRAM")

	// Input validation errors
	ErrInvalidPrompt = errors.New("sdruntime: invalid prompt")
	ErrInvalidParams = errors.New("sdruntime: invalid generation parameters")

	// Cache errors
	ErrCacheClosed = errors.New("sdruntime: model cache is closed")
)
