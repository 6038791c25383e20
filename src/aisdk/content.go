package aisdk

import "fmt"

// ContentType represents the type of content in a multimodal message
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// ImageSourceKind tells how image bytes are referenced.
type ImageSourceKind string

const (
	ImageSourceBase64 ImageSourceKind = "base64"
	ImageSourceURL    ImageSourceKind = "url"
)

// ImageSource points at image data, either inline or by URL.
type ImageSource struct {
	Kind      ImageSourceKind `json:"kind"`
	MediaType string          `json:"media_type,omitempty"`
	Data      string          `json:"data,omitempty"`
	URL       string          `json:"url,omitempty"`
}

// DataURL renders the source as something an image_url field accepts.
func (s ImageSource) DataURL() string {
	if s.Kind == ImageSourceURL {
		return s.URL
	}
	return fmt.Sprintf("data:%s;base64,%s", s.MediaType, s.Data)
}

// ContentItem represents a single piece of content in a multimodal message
type ContentItem struct {
	Type  ContentType  `json:"type"`
	Text  string       `json:"text,omitempty"`
	Image *ImageSource `json:"image,omitempty"`
}

// NewTextContent creates a new text content item
func NewTextContent(text string) ContentItem {
	return ContentItem{Type: ContentTypeText, Text: text}
}

// NewBase64ImageContent creates an inline image content item
func NewBase64ImageContent(mediaType, data string) ContentItem {
	return ContentItem{
		Type:  ContentTypeImage,
		Image: &ImageSource{Kind: ImageSourceBase64, MediaType: mediaType, Data: data},
	}
}

// NewURLImageContent creates an image content item referenced by URL
func NewURLImageContent(url string) ContentItem {
	return ContentItem{
		Type:  ContentTypeImage,
		Image: &ImageSource{Kind: ImageSourceURL, URL: url},
	}
}

// FirstText returns the text of the first text item in items.
func FirstText(items []ContentItem) string {
	for _, item := range items {
		if item.Type == ContentTypeText {
			return item.Text
		}
	}
	return ""
}
