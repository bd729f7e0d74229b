package llm

import (
	"encoding/base64"
	"fmt"
	"strings"
)

type ImageData struct {
	MediaType string
	Data      string // Base64 encoded string
}

// DataURL renders the image back into data URI form.
func (i ImageData) DataURL() string {
	return "data:" + i.MediaType + ";base64," + i.Data
}

// ParseDataURI splits a base64 data URI (data:image/png;base64,....) into its
// media type and payload. Remote URLs are not fetched.
func ParseDataURI(uri string) (*ImageData, error) {
	if !strings.HasPrefix(uri, "data:") {
		return nil, fmt.Errorf("image must be a data URI")
	}

	comma := strings.Index(uri, ",")
	if comma == -1 {
		return nil, fmt.Errorf("invalid data URI")
	}

	meta := uri[len("data:"):comma]
	data := uri[comma+1:]

	parts := strings.Split(meta, ";")
	mediaType := parts[0]
	if mediaType == "" {
		mediaType = "application/octet-stream"
	}

	isBase64 := false
	for _, p := range parts[1:] {
		if p == "base64" {
			isBase64 = true
			break
		}
	}
	if !isBase64 {
		return nil, fmt.Errorf("only base64 data URIs are supported for images")
	}

	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return nil, fmt.Errorf("invalid base64 image payload: %w", err)
	}

	return &ImageData{
		MediaType: mediaType,
		Data:      data,
	}, nil
}

// Images parses every attachment of a prompt, skipping the ones that are not
// valid data URIs. Vendors reject the whole call on a bad image, so dropping it
// keeps the text part of the request usable.
func Images(uris []string) []ImageData {
	var out []ImageData
	for _, u := range uris {
		img, err := ParseDataURI(u)
		if err != nil {
			continue
		}
		out = append(out, *img)
	}
	return out
}
