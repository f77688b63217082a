package content

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// ExtractText returns the text used for scoring. HTML is reduced to its
// readable article text; everything else is used as-is.
func ExtractText(p *Payload, pageURL string) string {
	if p == nil {
		return ""
	}
	if !isHTML(p) {
		return string(p.Body)
	}
	u, err := url.Parse(pageURL)
	if err != nil || u == nil {
		u = &url.URL{}
	}
	article, err := readability.FromReader(bytes.NewReader(p.Body), u)
	if err != nil {
		return string(p.Body)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return string(p.Body)
	}
	if t := strings.TrimSpace(article.Title); t != "" && !strings.Contains(text, t) {
		text = t + "\n" + text
	}
	return text
}

func isHTML(p *Payload) bool {
	if mt, _, err := mime.ParseMediaType(p.ContentType); err == nil {
		if mt == "text/html" || mt == "application/xhtml+xml" {
			return true
		}
		if mt != "text/plain" && mt != "application/octet-stream" {
			return false
		}
	}
	head := bytes.ToLower(bytes.TrimSpace(p.Body[:min(len(p.Body), 512)]))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}
