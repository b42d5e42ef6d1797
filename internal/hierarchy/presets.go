package hierarchy

import (
	"fmt"
	"sort"

	"github.com/erazemk/shramba/internal/model"
)

// Preset names.
const (
	PresetMinimal  = "minimal"
	PresetStandard = "standard"
	PresetExtended = "extended"
)

var presets = map[string]map[model.LocationType][]model.LocationType{
	PresetMinimal: {
		model.LocationRoom:    {model.LocationShelf, model.LocationCabinet, model.LocationBox},
		model.LocationCabinet: {model.LocationShelf, model.LocationBox},
		model.LocationShelf:   {model.LocationBox},
	},
	PresetStandard: {
		model.LocationRoom:    {model.LocationRack, model.LocationCabinet, model.LocationShelf, model.LocationBox, model.LocationBag},
		model.LocationRack:    {model.LocationShelf, model.LocationBox},
		model.LocationCabinet: {model.LocationShelf, model.LocationDrawer, model.LocationBox},
		model.LocationShelf:   {model.LocationSection, model.LocationBox, model.LocationBag},
		model.LocationSection: {model.LocationBox, model.LocationBag},
		model.LocationDrawer:  {model.LocationBox, model.LocationBag, model.LocationCompartment},
		model.LocationBox:     {model.LocationBag, model.LocationCompartment},
		model.LocationBag:     {model.LocationCompartment},
	},
}

// PresetNames lists the available presets.
func PresetNames() []string {
	names := []string{PresetExtended}
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset returns the rules of a named preset. The extended preset allows every
// larger container to hold every smaller one, following LocationTypes order.
func Preset(name string) ([]model.HierarchyRule, error) {
	if name == PresetExtended {
		var rules []model.HierarchyRule
		for i, parent := range model.LocationTypes {
			for _, child := range model.LocationTypes[i+1:] {
				rules = append(rules, model.HierarchyRule{ParentType: parent, ChildType: child, Allowed: true})
			}
		}
		return rules, nil
	}

	tree, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: preset %q", model.ErrNotFound, name)
	}
	var rules []model.HierarchyRule
	for _, parent := range model.LocationTypes {
		for _, child := range tree[parent] {
			rules = append(rules, model.HierarchyRule{ParentType: parent, ChildType: child, Allowed: true})
		}
	}
	return rules, nil
}

// MustPreset is Preset for names known at compile time.
func MustPreset(name string) *RuleSet {
	rules, err := Preset(name)
	if err != nil {
		panic(err)
	}
	return NewRuleSet(rules)
}
