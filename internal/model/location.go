package model

import "time"

// LocationType is the kind of physical container a location represents.
type LocationType string

// Location types.
const (
	LocationRoom        LocationType = "room"
	LocationSection     LocationType = "section"
	LocationRack        LocationType = "rack"
	LocationCabinet     LocationType = "cabinet"
	LocationShelf       LocationType = "shelf"
	LocationDrawer      LocationType = "drawer"
	LocationBox         LocationType = "box"
	LocationBag         LocationType = "bag"
	LocationCompartment LocationType = "compartment"
)

// LocationTypes lists every location type, roughly from largest to smallest container.
var LocationTypes = []LocationType{
	LocationRoom,
	LocationSection,
	LocationRack,
	LocationCabinet,
	LocationShelf,
	LocationDrawer,
	LocationBox,
	LocationBag,
	LocationCompartment,
}

// Valid reports whether t is a known location type.
func (t LocationType) Valid() bool {
	for _, known := range LocationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Location is a node in an owner's storage tree.
type Location struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"-"`
	Name      string       `json:"name"`
	Type      LocationType `json:"type"`
	ParentID  *string      `json:"parentId"`
	Code      string       `json:"code"`
	CreatedAt time.Time    `json:"createdAt"`

	// Resolved on read, not stored.
	Path []string `json:"path,omitempty"`
}

// IsRoot reports whether the location has no parent.
func (l *Location) IsRoot() bool {
	return l.ParentID == nil
}

// HierarchyRule says whether locations of ChildType may be placed inside ParentType.
type HierarchyRule struct {
	ParentType LocationType `json:"parentType"`
	ChildType  LocationType `json:"childType"`
	Allowed    bool         `json:"allowed"`
}
