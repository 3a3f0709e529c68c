package normalize

import (
	"strings"

	"github.com/openfroyo/pakit/pkg/control"
)

var autoLayoutVariants = map[string]bool{
	"autolayout":                    true,
	"horizontalautolayoutcontainer": true,
	"verticalautolayoutcontainer":   true,
}

// layoutOwned are the properties an AutoLayout container computes for its
// children. They live in DynamicProperties rather than Rules.
var layoutOwned = map[string]bool{
	"fillportions":     true,
	"alignincontainer": true,
	"layoutminwidth":   true,
	"layoutminheight":  true,
	"layoutmaxwidth":   true,
	"layoutmaxheight":  true,
}

// IsAutoLayout reports whether c lays out its children dynamically.
func IsAutoLayout(c *control.Control) bool {
	return autoLayoutVariants[strings.ToLower(c.VariantName)]
}

// IsLayoutOwned reports whether property belongs in DynamicProperties under
// an AutoLayout parent.
func IsLayoutOwned(property string) bool {
	return layoutOwned[strings.ToLower(property)]
}

// PromoteDynamicProperties moves layout-owned rules of AutoLayout children
// into DynamicProperties and strips layout-owned dynamic properties from
// every other child. Only the immediate parent's variant matters. The pass
// recurses into every subtree and leaves ControlPropertyState alone.
func PromoteDynamicProperties(root *control.Control) {
	if root == nil {
		return
	}
	auto := IsAutoLayout(root)
	for _, child := range root.Children {
		if auto {
			promote(child)
		} else {
			demote(child)
		}
		PromoteDynamicProperties(child)
	}
}

func promote(c *control.Control) {
	c.HasDynamicProperties = true
	c.DedupeRules()

	kept := make([]control.Rule, 0, len(c.Rules))
	for _, r := range c.Rules {
		if !IsLayoutOwned(r.Property) {
			kept = append(kept, r)
			continue
		}
		i := findDynamic(c, r.Property)
		if i < 0 {
			c.DynamicProperties = append(c.DynamicProperties, control.NewDynamicProperty(r.Property, r))
			continue
		}
		dp := &c.DynamicProperties[i]
		if dp.Rule == nil {
			moved := r.Clone()
			dp.Rule = &moved
		} else {
			updated := dp.Rule.Clone()
			updated.InvariantScript = r.InvariantScript
			dp.Rule = &updated
		}
	}
	c.Rules = kept
}

func demote(c *control.Control) {
	kept := make([]control.DynamicProperty, 0, len(c.DynamicProperties))
	for _, dp := range c.DynamicProperties {
		if !IsLayoutOwned(dp.PropertyName) {
			kept = append(kept, dp)
		}
	}
	if len(kept) == 0 {
		c.ClearDynamicProperties()
		c.HasDynamicProperties = false
		return
	}
	c.DynamicProperties = kept
	c.HasDynamicProperties = true
}

func findDynamic(c *control.Control, property string) int {
	for i, dp := range c.DynamicProperties {
		if strings.EqualFold(dp.PropertyName, property) {
			return i
		}
	}
	return -1
}
