// Package metadata fills in the singleton package documents.
//
// Every operation only adds what is missing or mistyped. Values that are
// present with the expected kind are never overwritten, so running a
// normalizer twice leaves the document unchanged.
package metadata

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/pakit/pkg/jsonvalue"
)

// Entry paths of the singleton documents.
const (
	PathHeader             = "Header.json"
	PathProperties         = "Properties.json"
	PathPublishInfo        = "Resources/PublishInfo.json"
	PathThemes             = "References/Themes.json"
	PathModernThemes       = "References/ModernThemes.json"
	PathDataSources        = "References/DataSources.json"
	PathComponentsMetadata = "ComponentsMetadata.json"
)

// Versions written into new documents.
const (
	DocVersion            = "1.346"
	MinVersionToLoad      = "1.331"
	MSAppStructureVersion = "2.0"
)

// KeyPreviewFlags is the Properties.json member holding preview flags.
const KeyPreviewFlags = "AppPreviewFlagsMap"

//go:embed defaults/preview_flags.json
var previewFlagsJSON []byte

// PreviewFlags returns a fresh copy of the default preview flag table.
func PreviewFlags() *jsonvalue.Object {
	obj, err := jsonvalue.ParseObject(previewFlagsJSON)
	if err != nil {
		panic(fmt.Sprintf("metadata: embedded preview flags: %v", err))
	}
	return obj
}

// Normalizer applies the ensure operations. Now and NewGUID are injectable
// for tests.
type Normalizer struct {
	Now     func() time.Time
	NewGUID func() string
}

// NewNormalizer returns a Normalizer using the wall clock and random GUIDs.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		Now:     time.Now,
		NewGUID: uuid.NewString,
	}
}

// Header ensures Header.json.
func (n *Normalizer) Header(doc *jsonvalue.Object) bool {
	changed := EnsureString(doc, "DocVersion", DocVersion)
	changed = EnsureString(doc, "MinVersionToLoad", MinVersionToLoad) || changed
	changed = EnsureString(doc, "MSAppStructureVersion", MSAppStructureVersion) || changed
	changed = EnsureString(doc, "LastSavedDateTimeUTC", n.Now().UTC().Format("01/02/2006 15:04:05")) || changed
	return changed
}

// Properties ensures Properties.json, including the preview flag table.
func (n *Normalizer) Properties(doc *jsonvalue.Object) bool {
	changed := EnsureString(doc, "Author", "")
	changed = EnsureString(doc, "Name", "App") || changed
	changed = EnsureGUID(doc, "Id", n.NewGUID) || changed
	changed = EnsureGUID(doc, "FileID", n.NewGUID) || changed
	changed = EnsureBool(doc, "LocalConversionAttempted", false) || changed
	changed = EnsureString(doc, "AppCreationSource", "AppFromScratch") || changed
	changed = EnsureString(doc, "AppDescription", "") || changed
	changed = MergeObject(doc, KeyPreviewFlags, PreviewFlags()) || changed
	changed = EnsureString(doc, "DocumentAppType", "DesktopOrTablet") || changed
	changed = EnsureNumber(doc, "DocumentLayoutWidth", 1366) || changed
	changed = EnsureNumber(doc, "DocumentLayoutHeight", 768) || changed
	changed = EnsureString(doc, "DocumentLayoutOrientation", "landscape") || changed
	changed = EnsureBool(doc, "DocumentLayoutScaleToFit", true) || changed
	changed = EnsureBool(doc, "DocumentLayoutMaintainAspectRatio", true) || changed
	changed = EnsureBool(doc, "DocumentLayoutLockOrientation", false) || changed
	changed = EnsureString(doc, "OriginatingVersion", DocVersion) || changed
	changed = EnsureString(doc, "AppVersion", n.Now().UTC().Format("2006-01-02T15:04:05.0000000Z")) || changed
	changed = EnsureNumber(doc, "ParserErrorCount", 0) || changed
	changed = EnsureNumber(doc, "BindingErrorCount", 0) || changed
	changed = EnsureNumber(doc, "DefaultConnectedDataSourceMaxGetRowsCount", 500) || changed
	changed = EnsureBool(doc, "ContainsThirdPartyPcfControls", false) || changed
	changed = EnsureBool(doc, "EnableInstrumentation", false) || changed
	changed = EnsureString(doc, "InstrumentationKey", "") || changed
	changed = EnsureString(doc, "LibraryDependencies", "[]") || changed
	changed = EnsureString(doc, "LocalDatabaseReferences", "") || changed
	_, created := EnsureObject(doc, "ControlCount")
	return created || changed
}

// PublishInfo ensures Resources/PublishInfo.json.
func (n *Normalizer) PublishInfo(doc *jsonvalue.Object) bool {
	changed := EnsureString(doc, "AppName", "App")
	changed = EnsureString(doc, "BackgroundColor", "RGBA(0,176,240,1)") || changed
	changed = EnsureString(doc, "PublishTarget", "player") || changed
	changed = EnsureString(doc, "LogoFileName", "") || changed
	changed = EnsureString(doc, "IconColor", "RGBA(255,255,255,1)") || changed
	changed = EnsureString(doc, "IconName", "Edit") || changed
	changed = EnsureBool(doc, "PublishResourcesLocally", false) || changed
	changed = EnsureBool(doc, "PublishDataLocally", false) || changed
	changed = EnsureString(doc, "UserLocale", "en-US") || changed
	return changed
}

// Themes ensures References/Themes.json.
func (n *Normalizer) Themes(doc *jsonvalue.Object) bool {
	changed := EnsureString(doc, "CurrentTheme", "defaultTheme")
	changed = EnsureArray(doc, "CustomThemes") || changed
	return changed
}

// ModernThemes ensures References/ModernThemes.json.
func (n *Normalizer) ModernThemes(doc *jsonvalue.Object) bool {
	changed := EnsureString(doc, "SelectedThemeName", "")
	changed = EnsureArray(doc, "Themes") || changed
	return changed
}

// DataSources ensures References/DataSources.json.
func (n *Normalizer) DataSources(doc *jsonvalue.Object) bool {
	return EnsureArray(doc, "DataSources")
}

// ComponentsMetadata ensures ComponentsMetadata.json.
func (n *Normalizer) ComponentsMetadata(doc *jsonvalue.Object) bool {
	return EnsureArray(doc, "Components")
}

// Optional reports whether a document is only normalized when it exists.
func Optional(path string) bool {
	return strings.EqualFold(path, PathModernThemes) || strings.EqualFold(path, PathComponentsMetadata)
}

// Paths returns every singleton document path in processing order.
func Paths() []string {
	return []string{
		PathHeader,
		PathProperties,
		PathPublishInfo,
		PathThemes,
		PathModernThemes,
		PathDataSources,
		PathComponentsMetadata,
	}
}

// NormalizeDocument ensures the document stored at path. Empty data starts
// from an empty object. When nothing had to change the input bytes are
// returned as they were.
func (n *Normalizer) NormalizeDocument(path string, data []byte) ([]byte, bool, error) {
	apply := n.operation(path)
	if apply == nil {
		return nil, false, fmt.Errorf("metadata: unknown document %q", path)
	}

	doc := jsonvalue.NewObject()
	if len(data) > 0 {
		obj, err := jsonvalue.ParseObject(data)
		if err != nil {
			return nil, false, fmt.Errorf("metadata: parse %s: %w", path, err)
		}
		doc = obj
	}

	if !apply(doc) && len(data) > 0 {
		return data, false, nil
	}
	out, err := jsonvalue.MarshalObject(doc)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (n *Normalizer) operation(path string) func(*jsonvalue.Object) bool {
	switch strings.ToLower(path) {
	case strings.ToLower(PathHeader):
		return n.Header
	case strings.ToLower(PathProperties):
		return n.Properties
	case strings.ToLower(PathPublishInfo):
		return n.PublishInfo
	case strings.ToLower(PathThemes):
		return n.Themes
	case strings.ToLower(PathModernThemes):
		return n.ModernThemes
	case strings.ToLower(PathDataSources):
		return n.DataSources
	case strings.ToLower(PathComponentsMetadata):
		return n.ComponentsMetadata
	}
	return nil
}
