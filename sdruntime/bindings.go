package sdruntime

import (
	"fmt"
	"os"
	"sync"

	"github.com/ebitengine/purego"
)

// Library is the native stable-diffusion library opened with dlopen. It
// holds a single global model, which is why the cache above it has one slot.
type Library struct {
	path string

	// int load_model(const char *model, const char *controlnet, int threads)
	loadModel func(model, controlNet string, threads int32) int32
	// int gen_image(const char *prompt, const char *negative, int width,
	//     int height, int steps, int64_t seed, float cfg, const char *dst,
	//     const char *control_image, float control_strength)
	genImage func(prompt, negative string, width, height, steps int32, seed int64,
		cfg float32, dst, controlImage string, controlStrength float32) int32
	// void free_model(void)
	freeModel func()

	mu sync.Mutex // serializes calls into the library
}

type libFunc struct {
	FuncPtr any
	Name    string
}

// OpenLibrary dlopens path and binds load_model, gen_image and free_model.
// A missing or unloadable library yields ErrLibraryUnavailable.
func OpenLibrary(path string) (*Library, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLibraryUnavailable, path, err)
	}

	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLibraryUnavailable, err)
	}

	lib := &Library{path: path}
	funcs := []libFunc{
		{&lib.loadModel, "load_model"},
		{&lib.genImage, "gen_image"},
		{&lib.freeModel, "free_model"},
	}
	for _, lf := range funcs {
		if _, err := purego.Dlsym(handle, lf.Name); err != nil {
			return nil, fmt.Errorf("%w: missing symbol %s: %v", ErrLibraryUnavailable, lf.Name, err)
		}
		purego.RegisterLibFunc(lf.FuncPtr, handle, lf.Name)
	}
	return lib, nil
}

// Path returns the file the library was opened from.
func (l *Library) Path() string {
	return l.path
}

func (l *Library) load(model, controlNet string, threads int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ret := l.loadModel(model, controlNet, int32(threads)); ret != 0 {
		return fmt.Errorf("%w: load_model returned %d", ErrModelLoadFailed, ret)
	}
	return nil
}

// generate runs gen_image. after, if non-nil, runs before the library
// lock is released, so nothing can load a model in between.
func (l *Library) generate(params GenerateParams, dst string, after func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if after != nil {
		defer after()
	}
	ret := l.genImage(params.Prompt, params.NegativePrompt,
		int32(params.Width), int32(params.Height), int32(params.Steps), params.Seed,
		float32(params.CFGScale), dst, params.ControlImage, float32(params.ControlStrength))
	switch ret {
	case 0:
		return nil
	case 2:
		return ErrOutOfVRAM
	default:
		return fmt.Errorf("%w: gen_image returned %d", ErrGenerationFailed, ret)
	}
}

func (l *Library) free() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.freeModel()
}

// freeLocked is free for callers that already hold mu.
func (l *Library) freeLocked() {
	l.freeModel()
}
