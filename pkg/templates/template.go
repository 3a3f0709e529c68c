// Package templates resolves the template catalog of a package.
//
// A Catalog is registered from the templates already present in
// References/Templates.json and from the embedded fallback catalog. Resolve
// walks every control tree and picks, per referenced name and version, the
// template that ends up in the rebuilt document. References that cannot be
// resolved are dropped without error; callers that need visibility compare
// the referenced names with the output themselves.
package templates

import (
	"fmt"

	"github.com/openfroyo/pakit/pkg/jsonvalue"
)

// Path is the package entry holding the template catalog.
const Path = "References/Templates.json"

// Template members in References/Templates.json.
const (
	KeyName          = "Name"
	KeyVersion       = "Version"
	KeyTemplateXML   = "TemplateXml"
	KeyUsedTemplates = "UsedTemplates"
	KeyPcfTemplates  = "PcfTemplates"
	templatesKeySep  = "|"
)

// Template is an immutable template descriptor. Every member of the source
// entry is kept so that re-encoding does not lose data.
type Template struct {
	name    string
	version string
	xml     string
	members *jsonvalue.Object
}

// NewTemplate builds a descriptor with only the three core members.
func NewTemplate(name, version, xml string) Template {
	return Template{name: name, version: version, xml: xml}
}

// FromValue decodes a UsedTemplates or PcfTemplates entry.
func FromValue(v jsonvalue.Value) (Template, error) {
	obj := v.Object()
	if obj == nil {
		return Template{}, fmt.Errorf("template entry must be an object, got %s", v.Kind())
	}
	name, _ := obj.Get(KeyName)
	version, _ := obj.Get(KeyVersion)
	xml, _ := obj.Get(KeyTemplateXML)

	ver := version.Str()
	if version.Kind() == jsonvalue.KindNumber {
		ver = version.Literal()
	}
	return Template{
		name:    name.Str(),
		version: ver,
		xml:     xml.Str(),
		members: obj.Clone(),
	}, nil
}

// Name returns the template name.
func (t Template) Name() string { return t.name }

// Version returns the template version string.
func (t Template) Version() string { return t.version }

// XML returns the TemplateXml body.
func (t Template) XML() string { return t.xml }

// Member returns any member of the source entry.
func (t Template) Member(key string) (jsonvalue.Value, bool) {
	return t.members.Get(key)
}

// WithVersion returns a copy of t that reports version. The receiver is not
// modified and no member data is shared mutably.
func (t Template) WithVersion(version string) Template {
	out := t
	out.version = version
	return out
}

// ToValue encodes the descriptor.
func (t Template) ToValue() jsonvalue.Value {
	out := jsonvalue.NewObject()
	if t.members != nil {
		out = t.members.Clone()
	}
	out.Set(KeyName, jsonvalue.String(t.name))
	out.Set(KeyVersion, t.versionValue())
	if t.xml != "" || out.Has(KeyTemplateXML) {
		out.Set(KeyTemplateXML, jsonvalue.String(t.xml))
	}
	return jsonvalue.ObjectValue(out)
}

// versionValue keeps a numeric source Version numeric while the version
// is unchanged.
func (t Template) versionValue() jsonvalue.Value {
	if src, ok := t.members.Get(KeyVersion); ok && src.Kind() == jsonvalue.KindNumber && src.Literal() == t.version {
		return src
	}
	return jsonvalue.String(t.version)
}

func exactKey(name, version string) string {
	return foldName(name) + templatesKeySep + version
}
