package rdata

import (
	"regexp"
	"strings"
)

const (
	// MissingFeatureTitle is the header shown for unresolved entries.
	MissingFeatureTitle = "Missing RendererFeature"
	// MissingFeatureTooltip explains the unresolved entry placeholder.
	MissingFeatureTooltip = "Missing reference, due to compilation issues or missing files. you can attempt auto fix or choose to remove the feature."
)

var (
	lowerUpper     = regexp.MustCompile(`([a-z])([A-Z])`)
	upperUpperWord = regexp.MustCompile(`([A-Z])([A-Z][a-z])`)
	invalidName    = regexp.MustCompile(`[^a-zA-Z0-9 ]`)
)

// MenuItem is one entry of the add-feature menu.
type MenuItem struct {
	Label    string
	Type     string
	Category string
}

// DefaultName is the display name given to a freshly added feature.
func DefaultName(typeName string) string {
	return "New" + typeName
}

// NicifyName inserts spaces between camel-case words:
// "SSAOFeatureRenderPass" becomes "SSAO Feature Render Pass".
func NicifyName(name string) string {
	spaced := lowerUpper.ReplaceAllString(name, "$1 $2")
	return upperUpperWord.ReplaceAllString(spaced, "$1 $2")
}

// MenuName returns the label a type gets in the add-feature menu.
func MenuName(info TypeInfo) string {
	path := info.Name
	if strings.Contains(info.Category, CategoryExperimental) {
		path += " (Experimental)"
	}
	return NicifyName(path)
}

// InspectorTitle returns the header title for a resolved feature.
func InspectorTitle(obj *Object) string {
	if obj == nil {
		return MissingFeatureTitle
	}
	typeTitle := NicifyName(obj.Type)
	if obj.Name == "" {
		return typeTitle
	}
	return obj.Name + " (" + typeTitle + ")"
}

// SanitizeName keeps only ASCII letters, digits and spaces.
func SanitizeName(name string) string {
	return invalidName.ReplaceAllString(name, "")
}
