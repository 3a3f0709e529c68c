package normalize

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/openfroyo/pakit/pkg/control"
	"github.com/openfroyo/pakit/pkg/jsonvalue"
	"github.com/openfroyo/pakit/pkg/templates"
)

// Members a gallery may carry to remember its template child between runs.
const (
	StashChildName         = "GalleryTemplateChildName"
	StashChildUniqueID     = "GalleryTemplateChildUniqueId"
	StashChildPublishOrder = "GalleryTemplateChildPublishOrderIndex"
)

var placeholderScript = regexp.MustCompile(`^#{2,}[^#]+#{2,}$`)

// Structure runs the structural passes over control trees. Names and IDs
// are shared by every tree of a run so synthesized children never collide.
type Structure struct {
	Gallery *templates.GalleryDescriptor
	Names   control.NameSet
	IDs     *IDAllocator
	Logger  zerolog.Logger
	Stats   Stats
}

// Stats counts the work done by a Structure across all trees.
type Stats struct {
	Controls    int
	PrunedRules int
	Synthesized int
	Lifted      int
}

// NewStructure creates a Structure. A nil gallery descriptor disables
// gallery template synthesis.
func NewStructure(gallery *templates.GalleryDescriptor, names control.NameSet, ids *IDAllocator, logger zerolog.Logger) *Structure {
	if names == nil {
		names = control.NameSet{}
	}
	if ids == nil {
		ids = NewIDAllocator()
	}
	return &Structure{
		Gallery: gallery,
		Names:   names,
		IDs:     ids,
		Logger:  logger,
	}
}

// NormalizeTree normalizes root and its subtree. Children are processed
// before their parent.
func (s *Structure) NormalizeTree(root *control.Control) {
	if root == nil {
		return
	}
	for _, child := range root.Children {
		s.NormalizeTree(child)
	}
	s.Stats.Controls++
	root.DedupeRules()

	if removed := PrunePlaceholderRules(root); len(removed) > 0 {
		s.Stats.PrunedRules += len(removed)
		s.Logger.Debug().
			Str("control", root.Name).
			Strs("properties", removed).
			Msg("Pruned placeholder rules")
	}
	if s.Gallery != nil {
		if child, created := SynthesizeGalleryTemplate(root, s.Gallery, s.Names, s.IDs); created {
			s.Stats.Synthesized++
			s.Logger.Debug().
				Str("gallery", root.Name).
				Str("template_child", child.Name).
				Str("unique_id", child.ControlUniqueID).
				Msg("Synthesized gallery template child")
		}
	}
	if n := FlattenGroups(root); n > 0 {
		s.Stats.Lifted += n
		s.Logger.Debug().
			Str("control", root.Name).
			Int("lifted", n).
			Msg("Flattened group controls")
	}
	Reindex(root)
}

// PrunePlaceholderRules removes rules whose whole script is a ##token##
// placeholder along with their ControlPropertyState entries. It returns the
// removed properties.
func PrunePlaceholderRules(c *control.Control) []string {
	var removed []string
	drop := make(map[string]bool)
	kept := make([]control.Rule, 0, len(c.Rules))
	for _, r := range c.Rules {
		if placeholderScript.MatchString(r.InvariantScript) {
			removed = append(removed, r.Property)
			drop[strings.ToLower(r.Property)] = true
			continue
		}
		kept = append(kept, r)
	}
	if len(removed) == 0 {
		return nil
	}
	c.Rules = kept

	states := make([]control.PropertyState, 0, len(c.PropertyState))
	for _, s := range c.PropertyState {
		if !drop[strings.ToLower(s.ResolvedName())] {
			states = append(states, s)
		}
	}
	c.PropertyState = states
	return removed
}

// SynthesizeGalleryTemplate makes sure a gallery has exactly one template
// child at position 0 and that the child owns the descriptor's properties.
// The first matching child is kept and any later match is removed. It
// returns the template child and whether it was created. Non-gallery
// controls are left alone and yield nil.
func SynthesizeGalleryTemplate(c *control.Control, desc *templates.GalleryDescriptor, names control.NameSet, ids *IDAllocator) (*control.Control, bool) {
	if desc == nil || !c.TemplateIs("gallery") {
		return nil, false
	}

	var tmpl *control.Control
	children := make([]*control.Control, 0, len(c.Children)+1)
	for _, child := range c.Children {
		if isGalleryTemplateChild(child, desc) {
			if tmpl != nil {
				continue
			}
			tmpl = child
		}
		children = append(children, child)
	}

	stashedName, _ := c.TakeExtra(StashChildName)
	stashedID, _ := c.TakeExtra(StashChildUniqueID)
	// The stashed publish order is superseded by the renumbering below.
	c.TakeExtra(StashChildPublishOrder)

	created := false
	if tmpl == nil {
		name := stashText(stashedName)
		if name == "" || names.Has(name) {
			name = freshName(names, templates.GalleryTemplateName)
		} else {
			names.Add(name)
		}
		id := stashText(stashedID)
		if id == "" {
			id = ids.Next()
		} else {
			ids.Observe(id)
		}

		tmpl = control.NewControl(name, c.Name, control.Template{
			ID:      desc.ID,
			Name:    desc.Name,
			Version: desc.Version,
		})
		tmpl.ControlUniqueID = id
		children = append(children, tmpl)
		created = true
	}

	moveOwnedRules(c, tmpl, desc)
	PropertyStateSync(c)
	PropertyStateSync(tmpl)

	ordered := make([]*control.Control, 0, len(children))
	ordered = append(ordered, tmpl)
	for _, child := range children {
		if child != tmpl {
			ordered = append(ordered, child)
		}
	}
	c.Children = ordered

	for i, child := range c.Children {
		order := i + 1
		child.PublishOrderIndex = &order
	}
	return tmpl, created
}

func isGalleryTemplateChild(c *control.Control, desc *templates.GalleryDescriptor) bool {
	if c.TemplateIs(desc.Name) {
		return true
	}
	return desc.ID != "" && strings.EqualFold(c.Template.ID, desc.ID)
}

func moveOwnedRules(from, to *control.Control, desc *templates.GalleryDescriptor) {
	kept := make([]control.Rule, 0, len(from.Rules))
	for _, r := range from.Rules {
		if !desc.Owns(r.Property) {
			kept = append(kept, r)
			continue
		}
		if i := to.FindRule(r.Property); i >= 0 {
			to.Rules[i] = r
		} else {
			to.Rules = append(to.Rules, r)
		}
	}
	from.Rules = kept
}

func stashText(v jsonvalue.Value) string {
	if v.Kind() == jsonvalue.KindNumber {
		return v.Literal()
	}
	return v.Str()
}

// FlattenGroups lifts the children of group controls up to c. Each group
// keeps its place, loses its children, and records their names in
// GroupedControlsKey. Lifted controls follow every existing child. Groups
// without children are not touched. It returns the number of lifted
// controls.
func FlattenGroups(c *control.Control) int {
	var lifted []*control.Control
	for _, child := range c.Children {
		if !(child.TemplateIs("group") || child.IsGroupControl) || len(child.Children) == 0 {
			continue
		}
		keys := make([]string, 0, len(child.Children))
		for _, grandchild := range child.Children {
			grandchild.Parent = c.Name
			keys = append(keys, grandchild.Name)
			lifted = append(lifted, grandchild)
		}
		child.Children = []*control.Control{}
		child.IsGroupControl = true
		child.GroupedControlsKey = keys
	}
	if len(lifted) == 0 {
		return 0
	}
	c.Children = append(c.Children, lifted...)
	return len(lifted)
}

// Reindex fills in missing Index values from child position and missing
// PublishOrderIndex values from Index.
func Reindex(c *control.Control) {
	for i, child := range c.Children {
		if child.Index == nil {
			idx := i
			child.Index = &idx
		}
		if child.PublishOrderIndex == nil {
			order := *child.Index
			child.PublishOrderIndex = &order
		}
	}
}
