package templates

import (
	"encoding/xml"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// GalleryTemplateName is the template name of a gallery's row template child.
const GalleryTemplateName = "galleryTemplate"

// GalleryDescriptor describes the template child a gallery must carry and
// the properties that belong on it rather than on the gallery.
type GalleryDescriptor struct {
	ID         string `validate:"required"`
	Name       string `validate:"required"`
	Version    string `validate:"required"`
	Properties map[string]struct{}
}

// Owns reports whether property belongs on the template child.
func (d *GalleryDescriptor) Owns(property string) bool {
	_, ok := d.Properties[strings.ToLower(property)]
	return ok
}

// FallbackGalleryDescriptor is used when the embedded template XML cannot be
// read. It owns no properties, so no rules are moved.
func FallbackGalleryDescriptor() *GalleryDescriptor {
	return &GalleryDescriptor{
		ID:         "http://microsoft.com/appmagic/galleryTemplate",
		Name:       GalleryTemplateName,
		Version:    "1.0",
		Properties: map[string]struct{}{},
	}
}

type widgetXML struct {
	XMLName    xml.Name `xml:"widget"`
	ID         string   `xml:"id,attr"`
	Name       string   `xml:"name,attr"`
	Version    string   `xml:"version,attr"`
	Properties []struct {
		Name string `xml:"name,attr"`
	} `xml:"properties>property"`
}

var descriptorValidate = validator.New()

// DeriveGalleryDescriptor reads the widget XML of t. Any failure returns the
// fallback descriptor instead of an error.
func DeriveGalleryDescriptor(t Template) *GalleryDescriptor {
	d, err := parseGalleryDescriptor(t.XML())
	if err != nil {
		return FallbackGalleryDescriptor()
	}
	return d
}

// DefaultGalleryDescriptor derives the descriptor from the embedded
// galleryTemplate entry.
func DefaultGalleryDescriptor() *GalleryDescriptor {
	t, ok := EmbeddedTemplate(GalleryTemplateName)
	if !ok {
		return FallbackGalleryDescriptor()
	}
	return DeriveGalleryDescriptor(t)
}

func parseGalleryDescriptor(body string) (*GalleryDescriptor, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("empty template xml")
	}
	var w widgetXML
	if err := xml.Unmarshal([]byte(body), &w); err != nil {
		return nil, err
	}
	d := &GalleryDescriptor{
		ID:         w.ID,
		Name:       w.Name,
		Version:    w.Version,
		Properties: make(map[string]struct{}, len(w.Properties)),
	}
	if err := descriptorValidate.Struct(d); err != nil {
		return nil, err
	}
	for _, p := range w.Properties {
		if p.Name != "" {
			d.Properties[strings.ToLower(p.Name)] = struct{}{}
		}
	}
	return d, nil
}
