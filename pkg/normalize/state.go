// Package normalize rewrites control trees into the shape the authoring tool
// writes itself.
//
// The work is split into independent stages that callers run in order:
//
//	structure := normalize.NewStructure(desc, names, ids, logger)
//	for _, root := range roots {
//	    structure.NormalizeTree(root)
//	}
//	for _, root := range roots {
//	    normalize.PromoteDynamicProperties(root)
//	}
//
// NormalizeTree runs placeholder pruning, gallery template synthesis, group
// flattening and reindexing children-first. The dynamic property promoter is
// a separate traversal and never resynchronizes ControlPropertyState.
package normalize

import (
	"strings"

	"github.com/openfroyo/pakit/pkg/control"
	"github.com/openfroyo/pakit/pkg/jsonvalue"
)

// appInfoStubProperties get a structured state entry on the app object when
// no prior entry exists.
var appInfoStubProperties = map[string]bool{
	"onstart":     true,
	"startscreen": true,
}

// PropertyStateSync rebuilds ControlPropertyState from the control's rules.
//
// Existing entries that still have a rule keep their relative order and are
// followed by newly bound properties in rule order. Structured entries are
// reused as they were; everything else becomes a bare name.
func PropertyStateSync(c *control.Control) {
	var desired []string
	wanted := make(map[string]bool)
	for _, r := range c.Rules {
		key := strings.ToLower(r.Property)
		if r.Property == "" || wanted[key] {
			continue
		}
		wanted[key] = true
		desired = append(desired, r.Property)
	}

	var existing []string
	prior := make(map[string]control.PropertyState)
	for _, s := range c.PropertyState {
		name := s.ResolvedName()
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, dup := prior[key]; dup {
			continue
		}
		prior[key] = s
		existing = append(existing, name)
	}

	order := make([]string, 0, len(desired))
	for _, name := range existing {
		if wanted[strings.ToLower(name)] {
			order = append(order, name)
		}
	}
	for _, name := range desired {
		if _, ok := prior[strings.ToLower(name)]; !ok {
			order = append(order, name)
		}
	}

	states := make([]control.PropertyState, 0, len(order))
	for _, name := range order {
		key := strings.ToLower(name)
		if s, ok := prior[key]; ok && s.IsStructured() {
			states = append(states, s.Clone())
			continue
		}
		if c.IsAppInfo() && appInfoStubProperties[key] {
			states = append(states, control.NewStructuredState(appInfoStub(name)))
			continue
		}
		states = append(states, control.NewBareState(name))
	}
	c.PropertyState = states
}

func appInfoStub(name string) *jsonvalue.Object {
	return jsonvalue.ObjectOf(
		jsonvalue.Member{Key: control.KeyInvariantPropertyName, Value: jsonvalue.String(name)},
		jsonvalue.Member{Key: "AutoRuleBindingEnabled", Value: jsonvalue.Bool(false)},
		jsonvalue.Member{Key: "AutoRuleBindingString", Value: jsonvalue.String("")},
		jsonvalue.Member{Key: "NameMapSourceSchema", Value: jsonvalue.String("?")},
		jsonvalue.Member{Key: "IsLockable", Value: jsonvalue.Bool(false)},
		jsonvalue.Member{Key: "AFDDataSourceName", Value: jsonvalue.String("")},
	)
}
