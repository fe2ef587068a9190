package fetch

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// decodeText converts body to UTF-8 using the declared charset, then the
// document's own meta tags, then a statistical guess.
func decodeText(body []byte, contentType string) (string, error) {
	declared := declaredCharset(contentType)
	if declared == "" && utf8.Valid(body) {
		return string(body), nil
	}

	if declared == "" && !isHTML(contentType) {
		contentType = "text/plain; charset=" + detectCharset(body)
	}

	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		// unknown label: hand back the bytes as they are
		return string(body), nil
	}
	out, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(out), nil
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

func detectCharset(data []byte) string {
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil || result.Charset == "" {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}
