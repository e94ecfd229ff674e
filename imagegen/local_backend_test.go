package imagegen

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"testing"

	"edudiff/sdruntime"
)

type stubPipeline struct {
	generate func(ctx context.Context, p sdruntime.GenerateParams) ([]byte, error)
	closed   bool
}

func (s *stubPipeline) Generate(ctx context.Context, p sdruntime.GenerateParams) ([]byte, error) {
	return s.generate(ctx, p)
}

func (s *stubPipeline) Close() error {
	s.closed = true
	return nil
}

func newLocalTest(t *testing.T, gen func(ctx context.Context, p sdruntime.GenerateParams) ([]byte, error)) (*LocalBackend, *sdruntime.ModelCache, *[]string) {
	t.Helper()
	var loads []string
	cache := sdruntime.NewModelCache(sdruntime.LoaderFunc(func(ctx context.Context, key string) (sdruntime.Pipeline, error) {
		loads = append(loads, key)
		return &stubPipeline{generate: gen}, nil
	}))
	t.Cleanup(func() { cache.Close() })

	cfg := sdruntime.LocalConfig{
		ModelPath:   "model.safetensors",
		ControlNets: map[string]string{"canny": "canny.safetensors"},
		TempDir:     t.TempDir(),
	}
	return NewLocalBackend(cache, cfg), cache, &loads
}

func TestLocalBackend_TextToImage(t *testing.T) {
	img := testPNG(t, 8, 8)
	var got sdruntime.GenerateParams
	b, cache, loads := newLocalTest(t, func(ctx context.Context, p sdruntime.GenerateParams) ([]byte, error) {
		got = p
		return img, nil
	})

	res, err := b.Generate(context.Background(), BackendRequest{
		Prompt: "volcán", NegativePrompt: "blurry", Steps: 20, Guidance: 6, Width: 512, Height: 768, Seed: 3,
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if !bytes.Equal(res.Image, img) || res.Seed != 3 {
		t.Errorf("result = %d bytes, seed %d", len(res.Image), res.Seed)
	}
	if got.Prompt != "volcán" || got.CFGScale != 6 || got.Width != 512 || got.Height != 768 || got.ControlImage != "" {
		t.Errorf("params = %+v", got)
	}
	if len(*loads) != 1 || (*loads)[0] != "" {
		t.Errorf("loads = %v, want one base load", *loads)
	}
	if key, loaded := cache.Key(); !loaded || key != "" {
		t.Errorf("cache key = %q loaded=%v", key, loaded)
	}
}

func TestLocalBackend_ControlImage(t *testing.T) {
	var controlPath string
	b, _, loads := newLocalTest(t, func(ctx context.Context, p sdruntime.GenerateParams) ([]byte, error) {
		controlPath = p.ControlImage
		f, err := os.Open(p.ControlImage)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		cfg, err := png.DecodeConfig(f)
		if err != nil {
			return nil, err
		}
		if cfg.Width != 512 || cfg.Height != 512 {
			t.Errorf("control image %dx%d, want 512x512", cfg.Width, cfg.Height)
		}
		if p.ControlStrength != sdruntime.DefaultControlStrength {
			t.Errorf("ControlStrength = %v", p.ControlStrength)
		}
		return testPNG(t, 8, 8), nil
	})

	_, err := b.Generate(context.Background(), BackendRequest{
		Prompt: "x", Width: 512, Height: 512, Seed: 1,
		GuideImage: testPNG(t, 40, 20), Conditioning: "canny",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(*loads) != 1 || (*loads)[0] != "canny" {
		t.Errorf("loads = %v, want [canny]", *loads)
	}
	if _, err := os.Stat(controlPath); !os.IsNotExist(err) {
		t.Errorf("control image %q not removed", controlPath)
	}
}

func TestLocalBackend_FailureReleasesModel(t *testing.T) {
	b, cache, _ := newLocalTest(t, func(ctx context.Context, p sdruntime.GenerateParams) ([]byte, error) {
		return nil, sdruntime.ErrOutOfVRAM
	})

	_, err := b.Generate(context.Background(), BackendRequest{Prompt: "x", Width: 512, Height: 512})
	if !errors.Is(err, sdruntime.ErrOutOfVRAM) {
		t.Fatalf("error = %v, want ErrOutOfVRAM", err)
	}
	if _, loaded := cache.Key(); loaded {
		t.Error("model should be released after a failed generation")
	}
}

func TestLocalBackend_SupportsConditioning(t *testing.T) {
	b, _, _ := newLocalTest(t, nil)
	if !b.SupportsConditioning("canny") || !b.SupportsConditioning("") {
		t.Error("canny and none should be supported")
	}
	if b.SupportsConditioning("depth") {
		t.Error("depth is not configured")
	}
}
