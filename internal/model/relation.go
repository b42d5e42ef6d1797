package model

import "time"

// RelationType names a directed edge between two items.
type RelationType string

// Relation types.
const (
	RelOwnsVariant       RelationType = "OWNS_VARIANT"
	RelOwnsInstance      RelationType = "OWNS_INSTANCE"
	RelVariantOfInstance RelationType = "VARIANT_OF_INSTANCE"
)

// relationRoles maps each relation type to the roles of its endpoints.
var relationRoles = map[RelationType][2]Role{
	RelOwnsVariant:       {RoleMaster, RoleVariant},
	RelOwnsInstance:      {RoleMaster, RoleInstance},
	RelVariantOfInstance: {RoleVariant, RoleInstance},
}

// Endpoints returns the roles an edge of type t must connect.
func (t RelationType) Endpoints() (from, to Role, ok bool) {
	roles, ok := relationRoles[t]
	return roles[0], roles[1], ok
}

// Permits reports whether an edge of type t may run from an item with role
// from to an item with role to.
func (t RelationType) Permits(from, to Role) bool {
	wantFrom, wantTo, ok := t.Endpoints()
	return ok && from == wantFrom && to == wantTo && from.LessSpecificThan(to)
}

// Relation is a directed, typed edge between two items of one owner.
type Relation struct {
	ID         string       `json:"id"`
	OwnerID    string       `json:"-"`
	Type       RelationType `json:"relationType"`
	FromItemID string       `json:"fromItemId"`
	ToItemID   string       `json:"toItemId"`
	CreatedAt  time.Time    `json:"createdAt"`
}

// Aggregate is the rollup of every instance reachable from one master.
type Aggregate struct {
	MasterID             string   `json:"masterId"`
	MasterName           string   `json:"masterName,omitempty"`
	TotalQuantity        float64  `json:"totalQuantity"`
	TotalAvailable       float64  `json:"totalAvailable"`
	TotalValue           float64  `json:"totalValue"`
	InstanceCount        int      `json:"instanceCount"`
	DistinctVariantCount int      `json:"distinctVariantCount"`
	DistinctColors       []string `json:"distinctColors"`
}
