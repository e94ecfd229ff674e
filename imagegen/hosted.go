package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"edudiff/core"
)

// HTTPError is a non-2xx answer from the hosted inference API.
type HTTPError struct {
	StatusCode int
	Message    string
	// EstimatedTime is the cold-start estimate in seconds, when given.
	EstimatedTime float64
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("hosted inference returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("hosted inference returned %d: %s", e.StatusCode, e.Message)
}

// IsLoading reports whether the model is still being loaded remotely.
func (e *HTTPError) IsLoading() bool {
	return e.EstimatedTime > 0 || strings.Contains(strings.ToLower(e.Message), "loading")
}

// HostedConfig configures a HostedBackend.
type HostedConfig struct {
	APIURL string
	Model  string
	Token  string
	Client *http.Client
}

// HostedBackend calls the Hugging Face inference API.
type HostedBackend struct {
	client *http.Client
	url    string
	token  string
}

// NewHostedBackend creates a hosted backend from the application config.
func NewHostedBackend(cfg *core.Config) *HostedBackend {
	return NewHostedBackendWithConfig(HostedConfig{
		APIURL: cfg.HFAPIURL,
		Model:  cfg.HFModel,
		Token:  cfg.HFToken,
		Client: core.GetDefaultHTTPClient(cfg),
	})
}

// NewHostedBackendWithConfig creates a hosted backend from explicit settings.
func NewHostedBackendWithConfig(cfg HostedConfig) *HostedBackend {
	client := cfg.Client
	if client == nil {
		client = http.DefaultClient
	}
	return &HostedBackend{
		client: client,
		url:    strings.TrimRight(cfg.APIURL, "/") + "/" + strings.TrimLeft(cfg.Model, "/"),
		token:  cfg.Token,
	}
}

// Name returns "hosted".
func (b *HostedBackend) Name() string { return core.BackendHosted }

type hostedParameters struct {
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	Seed              int64   `json:"seed"`
}

type hostedRequest struct {
	Inputs     string           `json:"inputs"`
	Parameters hostedParameters `json:"parameters"`
}

// Generate posts the prompt and returns the image. Guide images are not
// supported by the text-to-image endpoint and are ignored.
func (b *HostedBackend) Generate(ctx context.Context, req BackendRequest) (*BackendResult, error) {
	if b.token == "" {
		return nil, core.ErrMissingAuth(core.BackendHosted)
	}

	body, err := json.Marshal(hostedRequest{
		Inputs: req.Prompt,
		Parameters: hostedParameters{
			NegativePrompt:    req.NegativePrompt,
			NumInferenceSteps: req.Steps,
			GuidanceScale:     req.Guidance,
			Width:             req.Width,
			Height:            req.Height,
			Seed:              req.Seed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+b.token)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("imagegen: hosted request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := readLimited(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to read hosted response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseHTTPError(resp.StatusCode, data)
	}

	contentType := resp.Header.Get("Content-Type")
	var img []byte
	if isJSONContentType(contentType) || (contentType == "" && looksLikeJSON(data)) {
		img, err = decodeJSONImage(data)
		if err != nil {
			return nil, err
		}
	} else {
		img = data
	}
	if len(img) == 0 {
		return nil, ErrEmptyImage
	}
	return &BackendResult{Image: img, Seed: req.Seed}, nil
}

// parseHTTPError reads {"error": ..., "estimated_time": n}. The error may
// be a string or a list of strings; a non-JSON body becomes the message.
func parseHTTPError(status int, body []byte) *HTTPError {
	httpErr := &HTTPError{StatusCode: status}

	var payload struct {
		Error         json.RawMessage `json:"error"`
		EstimatedTime float64         `json:"estimated_time"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Error) > 0 {
		httpErr.EstimatedTime = payload.EstimatedTime
		var single string
		var list []string
		switch {
		case json.Unmarshal(payload.Error, &single) == nil:
			httpErr.Message = single
		case json.Unmarshal(payload.Error, &list) == nil:
			httpErr.Message = strings.Join(list, "; ")
		default:
			httpErr.Message = string(payload.Error)
		}
		return httpErr
	}

	httpErr.Message = truncateRunes(strings.TrimSpace(string(body)), 300)
	return httpErr
}

// decodeJSONImage accepts {"image": "<b64>"} and [{"b64_json": "<b64>"}].
func decodeJSONImage(data []byte) ([]byte, error) {
	var encoded string

	var obj struct {
		Image   string `json:"image"`
		B64JSON string `json:"b64_json"`
	}
	var list []struct {
		B64JSON string `json:"b64_json"`
		Image   string `json:"image"`
	}
	switch {
	case json.Unmarshal(data, &obj) == nil:
		encoded = firstNonEmpty(obj.Image, obj.B64JSON)
	case json.Unmarshal(data, &list) == nil && len(list) > 0:
		encoded = firstNonEmpty(list[0].B64JSON, list[0].Image)
	default:
		return nil, errors.New("imagegen: unrecognized JSON response from hosted inference")
	}
	if encoded == "" {
		return nil, ErrEmptyImage
	}
	return decodeBase64Image(encoded)
}

// decodeBase64Image strips an optional data URL prefix and decodes.
func decodeBase64Image(encoded string) ([]byte, error) {
	if i := strings.Index(encoded, ";base64,"); i != -1 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[i+len(";base64,"):]
	}
	img, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("imagegen: invalid base64 image: %w", err)
	}
	return img, nil
}

func looksLikeJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
