package imagegen

import (
	"context"
	"testing"

	"edudiff/core"
	"edudiff/sdruntime"
)

func TestNewBackendFromConfig(t *testing.T) {
	cache := sdruntime.NewModelCache(sdruntime.LoaderFunc(func(ctx context.Context, key string) (sdruntime.Pipeline, error) {
		return nil, sdruntime.ErrLibraryUnavailable
	}))

	tests := []struct {
		backend  string
		cache    *sdruntime.ModelCache
		wantName string
		wantErr  bool
	}{
		{core.BackendHosted, nil, "hosted", false},
		{core.BackendOpenAI, nil, "openai", false},
		{core.BackendLocal, cache, "local", false},
		{core.BackendLocal, nil, "", true},
		{"midjourney", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg := &core.Config{Backend: tt.backend, HFAPIURL: "http://localhost", HFModel: "m", GenerationTimeout: 10}
			b, err := NewBackendFromConfig(cfg, tt.cache, nil)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewBackendFromConfig() error = %v", err)
			}
			if b.Name() != tt.wantName {
				t.Errorf("Name() = %q, want %q", b.Name(), tt.wantName)
			}
		})
	}
}

func TestLocalBackend_LibraryUnavailableIsConfig(t *testing.T) {
	cache := sdruntime.NewModelCache(sdruntime.LoaderFunc(func(ctx context.Context, key string) (sdruntime.Pipeline, error) {
		return nil, sdruntime.ErrLibraryUnavailable
	}))
	b := NewLocalBackend(cache, sdruntime.LocalConfig{})

	_, err := b.Generate(context.Background(), BackendRequest{Prompt: "x", Width: 512, Height: 512})
	if Classify(err) != CategoryConfig {
		t.Errorf("Classify(%v) = %q, want config", err, Classify(err))
	}
}
