package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// transcript is the JSON document the transcribers are asked to return
type transcript struct {
	Text string `json:"text"`
}

// parseTranscriptJSON extracts the transcription from a model response
func parseTranscriptJSON(response string) (string, error) {
	text := strings.TrimSpace(response)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	// Models sometimes wrap the object in prose
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var data transcript
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return "", fmt.Errorf("unmarshaling json: %w", err)
	}

	if strings.TrimSpace(data.Text) == "" {
		return "", ErrNoText
	}
	return data.Text, nil
}
