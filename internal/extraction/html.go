package extraction

import (
	"strings"

	"golang.org/x/net/html"
)

// HTMLText flattens an HTML email body to its visible text. Text nodes are
// joined with newlines so that markup between digit groups reads as a separator.
func HTMLText(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(body))
	var (
		parts []string
		skip  int
	)
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			// io.EOF or malformed markup; keep whatever was readable
			return strings.Join(parts, "\n")
		case html.StartTagToken:
			if isHiddenElement(tokenizer) {
				skip++
			}
		case html.EndTagToken:
			if skip > 0 && isHiddenElement(tokenizer) {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			if text := strings.TrimSpace(string(tokenizer.Text())); text != "" {
				parts = append(parts, text)
			}
		}
	}
}

func isHiddenElement(tokenizer *html.Tokenizer) bool {
	name, _ := tokenizer.TagName()
	switch string(name) {
	case "script", "style", "head":
		return true
	}
	return false
}
