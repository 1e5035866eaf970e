package engine

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// renderable are the media types shown as pages. Everything else downloads.
var renderable = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
	"text/plain":            true,
}

// classify returns the media type of a response and whether it is a download.
// A missing Content-Type is sniffed from the body.
func classify(contentType, contentDisposition string, body []byte) (string, bool) {
	mediaType := ""
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil {
			mediaType = strings.ToLower(mt)
		}
	}
	if mediaType == "" {
		mediaType = strings.ToLower(strings.SplitN(mimetype.Detect(body).String(), ";", 2)[0])
	}

	if disposition, _, err := mime.ParseMediaType(contentDisposition); err == nil && strings.EqualFold(disposition, "attachment") {
		return mediaType, true
	}
	return mediaType, !renderable[mediaType]
}
