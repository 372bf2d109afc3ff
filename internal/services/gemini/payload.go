package gemini

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

type generateRequest struct {
	Contents         []requestContent  `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature        float64  `json:"temperature"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error"`
}

type candidate struct {
	Content struct {
		Parts []responsePart `json:"parts"`
	} `json:"content"`
	FinishReason string `json:"finishReason"`
}

// responsePart tolerates both camelCase and snake_case inline data keys;
// provider responses have been seen with either.
type responsePart struct {
	Text            string      `json:"text"`
	InlineData      *inlineData `json:"inlineData"`
	InlineDataSnake *inlineData `json:"inline_data"`
}

func (p responsePart) inline() *inlineData {
	if p.InlineData != nil {
		return p.InlineData
	}
	return p.InlineDataSnake
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func imageRequest(prompt string, image []byte, mimeType string, modalities []string) generateRequest {
	var cfg *generationConfig
	if len(modalities) > 0 {
		cfg = &generationConfig{ResponseModalities: modalities}
	} else {
		cfg = &generationConfig{Temperature: 0}
	}
	return generateRequest{
		Contents: []requestContent{{
			Parts: []requestPart{
				{Text: prompt},
				{InlineData: &inlineData{
					MIMEType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
		GenerationConfig: cfg,
	}
}

// firstImagePart returns the decoded bytes of the first inline image in the
// response, or nil when no candidate carries one.
func firstImagePart(resp generateResponse) ([]byte, string, error) {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			data := p.inline()
			if data == nil || strings.TrimSpace(data.Data) == "" {
				continue
			}
			decoded, err := base64.StdEncoding.DecodeString(data.Data)
			if err != nil {
				return nil, "", fmt.Errorf("decode inline image: %w", err)
			}
			return decoded, data.MIMEType, nil
		}
	}
	return nil, "", nil
}

// firstTextPart returns the first non-empty text part across candidates.
func firstTextPart(resp generateResponse) string {
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if text := strings.TrimSpace(p.Text); text != "" {
				return text
			}
		}
	}
	return ""
}

// decodeJSONPayload parses a JSON document that models often wrap in markdown
// code fences or surround with prose.
func decodeJSONPayload(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	if start := strings.IndexAny(trimmed, "{["); start > 0 {
		trimmed = trimmed[start:]
	}
	if err := json.Unmarshal([]byte(trimmed), target); err != nil {
		return fmt.Errorf("parse json payload: %w", err)
	}
	return nil
}
