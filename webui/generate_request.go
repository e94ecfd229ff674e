package webui

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"edudiff/imagegen"
	"edudiff/params"
)

// DefaultMaxUploadBytes bounds a generate request body, guide image included.
const DefaultMaxUploadBytes = 20 << 20

// Form field names accepted by /api/generate.
const (
	fieldPrompt       = "prompt"
	fieldStyle        = "style"
	fieldQuality      = "quality"
	fieldSteps        = "steps"
	fieldGuidance     = "guidance"
	fieldWidth        = "width"
	fieldHeight       = "height"
	fieldSeed         = "seed"
	fieldConditioning = "conditioning"
	fieldGuideImage   = "guide_image"
)

var (
	errUnsupportedMedia = errors.New("webui: unsupported content type")
	errMalformedBody    = errors.New("webui: malformed request body")
)

// flexString accepts a JSON string, number, bool or null and keeps its
// textual form, so API clients may send {"steps": 30} or {"steps": "30"}.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexString(strconv.FormatBool(b))
		return nil
	}
	return fmt.Errorf("unsupported JSON value %s", data)
}

type generateJSON struct {
	Prompt       flexString `json:"prompt"`
	Style        flexString `json:"style"`
	Quality      flexString `json:"quality"`
	Steps        flexString `json:"steps"`
	Guidance     flexString `json:"guidance"`
	Width        flexString `json:"width"`
	Height       flexString `json:"height"`
	Seed         flexString `json:"seed"`
	Conditioning flexString `json:"conditioning"`
	// GuideImage is base64, optionally as a data URL.
	GuideImage string `json:"guide_image"`
}

// decodeGenerateRequest reads multipart, urlencoded or JSON bodies into an
// imagegen.Request. Field values are passed through untouched; the
// sanitizer owns all validation.
func decodeGenerateRequest(r *http.Request, maxBytes int64) (imagegen.Request, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return imagegen.Request{}, errUnsupportedMedia
	}

	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			return imagegen.Request{}, fmt.Errorf("%w: %v", errMalformedBody, err)
		}
		req := imagegen.Request{Params: rawParamsFromForm(r)}
		file, _, err := r.FormFile(fieldGuideImage)
		switch {
		case err == nil:
			defer file.Close()
			data, err := io.ReadAll(io.LimitReader(file, maxBytes))
			if err != nil {
				return imagegen.Request{}, fmt.Errorf("%w: %v", errMalformedBody, err)
			}
			req.GuideImage = data
		case errors.Is(err, http.ErrMissingFile):
		default:
			return imagegen.Request{}, fmt.Errorf("%w: %v", errMalformedBody, err)
		}
		return req, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return imagegen.Request{}, fmt.Errorf("%w: %v", errMalformedBody, err)
		}
		return imagegen.Request{Params: rawParamsFromForm(r)}, nil

	case "application/json":
		var body generateJSON
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBytes))
		if err := dec.Decode(&body); err != nil {
			return imagegen.Request{}, fmt.Errorf("%w: %v", errMalformedBody, err)
		}
		req := imagegen.Request{Params: params.RawParams{
			Prompt:       string(body.Prompt),
			Style:        string(body.Style),
			Quality:      string(body.Quality),
			Steps:        string(body.Steps),
			Guidance:     string(body.Guidance),
			Width:        string(body.Width),
			Height:       string(body.Height),
			Seed:         string(body.Seed),
			Conditioning: string(body.Conditioning),
		}}
		if body.GuideImage != "" {
			data, err := decodeBase64Image(body.GuideImage)
			if err != nil {
				return imagegen.Request{}, fmt.Errorf("%w: guide_image: %v", errMalformedBody, err)
			}
			req.GuideImage = data
		}
		return req, nil
	}

	return imagegen.Request{}, errUnsupportedMedia
}

func rawParamsFromForm(r *http.Request) params.RawParams {
	return params.RawParams{
		Prompt:       r.FormValue(fieldPrompt),
		Style:        r.FormValue(fieldStyle),
		Quality:      r.FormValue(fieldQuality),
		Steps:        r.FormValue(fieldSteps),
		Guidance:     r.FormValue(fieldGuidance),
		Width:        r.FormValue(fieldWidth),
		Height:       r.FormValue(fieldHeight),
		Seed:         r.FormValue(fieldSeed),
		Conditioning: r.FormValue(fieldConditioning),
	}
}

func decodeBase64Image(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if _, payload, ok := strings.Cut(s, ","); ok {
			s = payload
		}
	}
	s = strings.TrimSpace(s)
	if data, err := base64.StdEncoding.DecodeString(s); err == nil {
		return data, nil
	}
	return base64.RawStdEncoding.DecodeString(s)
}
