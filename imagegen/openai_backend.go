package imagegen

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"edudiff/core"
)

// OpenAIConfig configures an OpenAIBackend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty means api.openai.com
	Model   string
	// Downloader fetches URL responses from OpenAI-compatible servers that
	// ignore the b64_json response format.
	Downloader *Downloader
}

// OpenAIBackend generates images through the OpenAI images API.
//
// Thread Safety: OpenAIBackend is safe for concurrent use.
type OpenAIBackend struct {
	client     *openai.Client
	model      string
	hasKey     bool
	downloader *Downloader
}

// NewOpenAIBackend creates an OpenAI backend from the application config.
// A missing key is reported by Generate, not here.
func NewOpenAIBackend(cfg *core.Config) *OpenAIBackend {
	return NewOpenAIBackendWithConfig(OpenAIConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Model:      cfg.OpenAIImageModel,
		Downloader: NewDownloader(core.GetDefaultHTTPClient(cfg)),
	})
}

// NewOpenAIBackendWithConfig creates an OpenAI backend from explicit settings.
func NewOpenAIBackendWithConfig(cfg OpenAIConfig) *OpenAIBackend {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = "dall-e-3"
	}
	downloader := cfg.Downloader
	if downloader == nil {
		downloader = NewDownloader(nil)
	}
	return &OpenAIBackend{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		hasKey:     cfg.APIKey != "",
		downloader: downloader,
	}
}

// Name returns "openai".
func (b *OpenAIBackend) Name() string { return core.BackendOpenAI }

// Model returns the image model in use.
func (b *OpenAIBackend) Model() string { return b.model }

// Generate creates one image. The images API has no negative prompt, step
// count, guidance or seed; the seed is echoed back unchanged.
func (b *OpenAIBackend) Generate(ctx context.Context, req BackendRequest) (*BackendResult, error) {
	if !b.hasKey {
		return nil, core.ErrMissingAuth(core.BackendOpenAI)
	}

	imgReq := openai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          b.model,
		N:              1,
		Size:           snapSize(b.model, req.Width, req.Height),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}
	if isDallE3(b.model) {
		imgReq.Style = openai.CreateImageStyleNatural
	}
	if strings.HasPrefix(b.model, "gpt-image") {
		// gpt-image models always return base64 and reject response_format
		imgReq.ResponseFormat = ""
	}

	resp, err := b.client.CreateImage(ctx, imgReq)
	if err != nil {
		return nil, fmt.Errorf("imagegen: openai image request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, ErrEmptyImage
	}

	first := resp.Data[0]
	var img []byte
	switch {
	case first.B64JSON != "":
		img, err = decodeBase64Image(first.B64JSON)
	case first.URL != "":
		img, _, err = b.downloader.DownloadBytes(ctx, first.URL)
	default:
		return nil, ErrEmptyImage
	}
	if err != nil {
		return nil, err
	}
	return &BackendResult{Image: img, Seed: req.Seed}, nil
}

func isDallE3(model string) bool {
	return strings.EqualFold(model, "dall-e-3")
}

// snapSize picks the supported size closest in aspect ratio to width x height.
func snapSize(model string, width, height int) string {
	lower := strings.ToLower(model)
	switch {
	case lower == "dall-e-2":
		// square only
		side := width
		if height > side {
			side = height
		}
		switch {
		case side <= 256:
			return openai.CreateImageSize256x256
		case side <= 512:
			return openai.CreateImageSize512x512
		default:
			return openai.CreateImageSize1024x1024
		}
	case strings.HasPrefix(lower, "gpt-image"):
		return orientedSize(width, height, "1536x1024", "1024x1536")
	default:
		return orientedSize(width, height, openai.CreateImageSize1792x1024, openai.CreateImageSize1024x1792)
	}
}

// orientedSize returns landscape or portrait when one side is clearly
// longer (ratio above 1.25), otherwise 1024x1024.
func orientedSize(width, height int, landscape, portrait string) string {
	switch {
	case width*4 > height*5:
		return landscape
	case height*4 > width*5:
		return portrait
	default:
		return openai.CreateImageSize1024x1024
	}
}
