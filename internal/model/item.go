package model

import (
	"encoding/json"
	"time"
)

// Role is the part an item plays in the relation graph. It comes from the
// item's category, not from the item itself.
type Role string

// Roles, from least to most specific.
const (
	RoleMaster   Role = "master"
	RoleVariant  Role = "variant"
	RoleInstance Role = "instance"
)

// roleLevels ranks roles by specificity. Unknown roles rank zero.
var roleLevels = map[Role]int{
	RoleMaster:   1,
	RoleVariant:  2,
	RoleInstance: 3,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return roleLevels[r] > 0
}

// LessSpecificThan reports whether r sits strictly above other in the
// master → variant → instance ordering. Unknown roles fail closed.
func (r Role) LessSpecificThan(other Role) bool {
	a, b := roleLevels[r], roleLevels[other]
	return a > 0 && b > 0 && a < b
}

// Default category identifiers created by bootstrap.
const (
	CategoryYarn      = "yarn"
	CategoryYarnColor = "yarn_color"
	CategoryYarnBatch = "yarn_batch"
)

// Category describes which free-form fields apply to items and which role
// those items play. Schema is opaque to the core and interpreted by a validator.
type Category struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Role      Role            `json:"role"`
	Schema    json.RawMessage `json:"schema"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Item is an inventory record: a master product, one of its variants, or a
// countable instance (batch) of it.
type Item struct {
	ID                string          `json:"id"`
	OwnerID           string          `json:"-"`
	CategoryID        string          `json:"categoryId"`
	Role              Role            `json:"role"`
	Name              string          `json:"name"`
	LocationID        *string         `json:"locationId,omitempty"`
	TotalQuantity     float64         `json:"totalQuantity"`
	AvailableQuantity float64         `json:"availableQuantity"`
	Unit              string          `json:"unit,omitempty"`
	Price             *float64        `json:"price,omitempty"`
	ColorCode         string          `json:"colorCode,omitempty"`
	Lot               string          `json:"lot,omitempty"`
	CategoryData      json.RawMessage `json:"categoryData,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// Value is the worth of the available quantity. A missing price counts as zero.
func (i *Item) Value() float64 {
	if i.Price == nil {
		return 0
	}
	return i.AvailableQuantity * *i.Price
}
