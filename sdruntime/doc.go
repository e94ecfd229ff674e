// Package sdruntime holds the local stable-diffusion pipeline and the
// single-slot model cache that guards it.
//
// At most one pipeline is resident per process. ModelCache keys the
// pipeline by conditioning mode ("" for plain text-to-image, or a
// ControlNet key such as "canny"); acquiring a different key releases the
// previous pipeline, runs the garbage collector and returns memory to the
// OS before the next load starts.
//
//	lib, err := sdruntime.OpenLibrary("./libgosd.so")
//	if err != nil {
//	    // errors.Is(err, sdruntime.ErrLibraryUnavailable)
//	}
//	cache := sdruntime.NewModelCache(sdruntime.NewLocalLoader(lib, cfg))
//	defer cache.Close()
//
//	err = cache.WithPipeline(ctx, "canny", func(p sdruntime.Pipeline) error {
//	    png, err := p.Generate(ctx, params)
//	    ...
//	})
//
// The native library is loaded at runtime with purego, so the binary
// builds without cgo and runs without the library when a hosted backend
// is selected.
//
// # Errors
//
//   - ErrLibraryUnavailable: the shared library could not be opened
//   - ErrModelNotFound: the model or ControlNet file does not exist
//   - ErrModelLoadFailed: the library rejected the model
//   - ErrGenerationFailed: the library returned an error while sampling
//   - ErrInvalidParams: parameters failed ValidateParams
//   - ErrCacheClosed: the cache was closed
//
// Use errors.Is to test for them.
package sdruntime
