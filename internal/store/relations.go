package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/erazemk/shramba/internal/graph"
	"github.com/erazemk/shramba/internal/metrics"
	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/schema"
)

// MasterInput is the input for CreateMaster. An empty CategoryID uses the
// default master category.
type MasterInput struct {
	Name         string          `json:"name" validate:"notblank,max=200"`
	CategoryID   string          `json:"categoryId"`
	LocationID   *string         `json:"locationId"`
	Unit         string          `json:"unit" validate:"max=20"`
	CategoryData json.RawMessage `json:"categoryData"`
}

// VariantInput is the input for CreateVariant. An empty CategoryID uses the
// default variant category.
type VariantInput struct {
	MasterID     string          `json:"masterId" validate:"required"`
	Name         string          `json:"name" validate:"notblank,max=200"`
	ColorCode    string          `json:"colorCode" validate:"omitempty,colorcode"`
	CategoryID   string          `json:"categoryId"`
	CategoryData json.RawMessage `json:"categoryData"`
}

// InstanceInput is the input for CreateInstance. An empty Lot defaults to Name.
type InstanceInput struct {
	MasterID     string          `json:"masterId" validate:"required"`
	VariantID    *string         `json:"variantId"`
	Name         string          `json:"name" validate:"notblank,max=200"`
	Lot          string          `json:"lot" validate:"max=100"`
	Quantity     float64         `json:"quantity" validate:"gt=0"`
	Price        *float64        `json:"price" validate:"omitempty,gte=0"`
	Unit         string          `json:"unit" validate:"max=20"`
	LocationID   *string         `json:"locationId"`
	CategoryID   string          `json:"categoryId"`
	CategoryData json.RawMessage `json:"categoryData"`
}

// checkCategory resolves the category for a new item and validates its
// payload. Field problems come back as a list so they can be merged with the
// input's own; only lookup failures are returned as errors.
func checkCategory(ctx context.Context, q querier, v schema.Validator, id string, role model.Role, payload json.RawMessage) (*model.Category, []model.FieldError, error) {
	cat, s, err := categoryForRole(ctx, q, id, role)
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return nil, verr.Fields, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return cat, v.Validate(s, payload), nil
}

// CreateMaster stores a master item. Every failing field of the input and its
// category payload is reported together.
func CreateMaster(ctx context.Context, db *sql.DB, v schema.Validator, ownerID string, in MasterInput) (*model.Item, error) {
	fields := schema.Struct(in)
	cat, catFields, err := checkCategory(ctx, db, v, in.CategoryID, model.RoleMaster, in.CategoryData)
	if err != nil {
		return nil, err
	}
	if err := model.NewValidationError(append(fields, catFields...)); err != nil {
		return nil, err
	}

	var master *model.Item
	err = withTx(ctx, db, "master", func(tx *sql.Tx) error {
		master, err = createItem(ctx, tx, ownerID, itemRow{
			CategoryID:   cat.ID,
			Name:         in.Name,
			LocationID:   in.LocationID,
			Unit:         in.Unit,
			CategoryData: in.CategoryData,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return master, nil
}

// CreateVariant stores a variant and the OWNS_VARIANT edge from its master in
// one transaction.
func CreateVariant(ctx context.Context, db *sql.DB, v schema.Validator, ownerID string, in VariantInput) (*model.Item, error) {
	fields := schema.Struct(in)
	cat, catFields, err := checkCategory(ctx, db, v, in.CategoryID, model.RoleVariant, in.CategoryData)
	if err != nil {
		return nil, err
	}
	if err := model.NewValidationError(append(fields, catFields...)); err != nil {
		return nil, err
	}

	var variant *model.Item
	err = withTx(ctx, db, "variant", func(tx *sql.Tx) error {
		master, err := getItemWithRole(ctx, tx, ownerID, in.MasterID, model.RoleMaster)
		if err != nil {
			return err
		}

		variant, err = createItem(ctx, tx, ownerID, itemRow{
			CategoryID:   cat.ID,
			Name:         in.Name,
			ColorCode:    in.ColorCode,
			Unit:         master.Unit,
			CategoryData: in.CategoryData,
		})
		if err != nil {
			return err
		}

		_, err = insertRelation(ctx, tx, ownerID, model.RelOwnsVariant, master, variant)
		return err
	})
	if err != nil {
		return nil, err
	}
	return variant, nil
}

// CreateInstance stores a countable batch under a master and optionally one
// of its variants. The lot must be unique under the variant, or under the
// master when there is no variant.
func CreateInstance(ctx context.Context, db *sql.DB, v schema.Validator, ownerID string, in InstanceInput) (*model.Item, error) {
	fields := schema.Struct(in)
	cat, catFields, err := checkCategory(ctx, db, v, in.CategoryID, model.RoleInstance, in.CategoryData)
	if err != nil {
		return nil, err
	}
	if err := model.NewValidationError(append(fields, catFields...)); err != nil {
		return nil, err
	}

	lot := strings.TrimSpace(in.Lot)
	if lot == "" {
		lot = strings.TrimSpace(in.Name)
	}

	var instance *model.Item
	err = withTx(ctx, db, "instance", func(tx *sql.Tx) error {
		master, err := getItemWithRole(ctx, tx, ownerID, in.MasterID, model.RoleMaster)
		if err != nil {
			return err
		}

		scope := master.ID
		var variant *model.Item
		if in.VariantID != nil && *in.VariantID != "" {
			variant, err = getItemWithRole(ctx, tx, ownerID, *in.VariantID, model.RoleVariant)
			if err != nil {
				return err
			}
			owned, err := relationExists(ctx, tx, ownerID, model.RelOwnsVariant, master.ID, variant.ID)
			if err != nil {
				return err
			}
			if !owned {
				return fmt.Errorf("%w: variant %s does not belong to master %s", model.ErrInvalidRelation, variant.ID, master.ID)
			}
			scope = variant.ID
		}

		var dup int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM items WHERE owner_id = ? AND lot_scope = ? AND lot = ?`,
			ownerID, scope, lot,
		).Scan(&dup); err != nil {
			return fmt.Errorf("checking lot: %w", err)
		}
		if dup > 0 {
			return fmt.Errorf("%w: lot %q already exists", model.ErrConflict, lot)
		}

		unit := in.Unit
		if unit == "" {
			unit = master.Unit
		}
		instance, err = createItem(ctx, tx, ownerID, itemRow{
			CategoryID:   cat.ID,
			Name:         in.Name,
			LocationID:   in.LocationID,
			Total:        in.Quantity,
			Available:    in.Quantity,
			Unit:         unit,
			Price:        in.Price,
			Lot:          lot,
			LotScope:     scope,
			CategoryData: in.CategoryData,
		})
		if err != nil {
			return err
		}

		if _, err := insertRelation(ctx, tx, ownerID, model.RelOwnsInstance, master, instance); err != nil {
			return err
		}
		if variant != nil {
			if _, err := insertRelation(ctx, tx, ownerID, model.RelVariantOfInstance, variant, instance); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

// CreateRelation links two existing items. Besides the role order, it keeps
// each variant and instance under a single master, and only lets a variant
// reach instances of its own master.
func CreateRelation(ctx context.Context, db *sql.DB, ownerID string, t model.RelationType, fromID, toID string) (*model.Relation, error) {
	var rel *model.Relation
	err := withTx(ctx, db, "relation", func(tx *sql.Tx) error {
		from, err := getItem(ctx, tx, ownerID, fromID)
		if err != nil {
			return err
		}
		to, err := getItem(ctx, tx, ownerID, toID)
		if err != nil {
			return err
		}
		if !t.Permits(from.Role, to.Role) {
			return fmt.Errorf("%w: %s cannot run from a %s to a %s", model.ErrInvalidRelation, t, from.Role, to.Role)
		}

		switch t {
		case model.RelOwnsVariant, model.RelOwnsInstance:
			masters, err := relationSources(ctx, tx, ownerID, t, to.ID)
			if err != nil {
				return err
			}
			if len(masters) > 0 {
				return fmt.Errorf("%w: %s %s already belongs to master %s", model.ErrInvalidRelation, to.Role, to.ID, masters[0])
			}
		case model.RelVariantOfInstance:
			masters, err := relationSources(ctx, tx, ownerID, model.RelOwnsInstance, to.ID)
			if err != nil {
				return err
			}
			if len(masters) == 0 {
				return fmt.Errorf("%w: instance %s has no master", model.ErrInvalidRelation, to.ID)
			}
			owned, err := relationExists(ctx, tx, ownerID, model.RelOwnsVariant, masters[0], from.ID)
			if err != nil {
				return err
			}
			if !owned {
				return fmt.Errorf("%w: variant %s does not belong to master %s", model.ErrInvalidRelation, from.ID, masters[0])
			}
		}

		rel, err = insertRelation(ctx, tx, ownerID, t, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rel, nil
}

// insertRelation writes one edge after checking that it runs from a less
// specific role to a more specific one.
func insertRelation(ctx context.Context, tx *sql.Tx, ownerID string, t model.RelationType, from, to *model.Item) (*model.Relation, error) {
	if from.ID == to.ID || !t.Permits(from.Role, to.Role) {
		return nil, fmt.Errorf("%w: %s cannot run from a %s to a %s", model.ErrInvalidRelation, t, from.Role, to.Role)
	}

	rel := &model.Relation{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		Type:       t,
		FromItemID: from.ID,
		ToItemID:   to.ID,
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO item_relations (id, owner_id, relation_type, from_item_id, to_item_id) VALUES (?, ?, ?, ?, ?)`,
		rel.ID, ownerID, string(t), from.ID, to.ID,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: %s from %s to %s already exists", model.ErrConflict, t, from.ID, to.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("creating relation: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT created_at FROM item_relations WHERE id = ?`, rel.ID,
	).Scan(&rel.CreatedAt); err != nil {
		return nil, fmt.Errorf("reading relation: %w", err)
	}
	return rel, nil
}

func relationExists(ctx context.Context, q querier, ownerID string, t model.RelationType, fromID, toID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_relations
		 WHERE owner_id = ? AND relation_type = ? AND from_item_id = ? AND to_item_id = ?`,
		ownerID, string(t), fromID, toID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking relation: %w", err)
	}
	return n > 0, nil
}

func relationSources(ctx context.Context, q querier, ownerID string, t model.RelationType, toID string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT from_item_id FROM item_relations
		 WHERE owner_id = ? AND relation_type = ? AND to_item_id = ? ORDER BY created_at, id`,
		ownerID, string(t), toID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing relation sources: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning relation source: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListRelations returns every edge of the owner in one query.
func ListRelations(ctx context.Context, db *sql.DB, ownerID string) ([]model.Relation, error) {
	return listRelations(ctx, db, ownerID)
}

func listRelations(ctx context.Context, q querier, ownerID string) ([]model.Relation, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, owner_id, relation_type, from_item_id, to_item_id, created_at
		 FROM item_relations WHERE owner_id = ?`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing relations: %w", err)
	}
	defer rows.Close()

	var rels []model.Relation
	for rows.Next() {
		var r model.Relation
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.Type, &r.FromItemID, &r.ToItemID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning relation: %w", err)
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// Aggregate rolls up every instance reachable from a master: one query for
// the owner's edges, one for the reached items, then an in-memory walk.
func Aggregate(ctx context.Context, db *sql.DB, ownerID, masterID string) (*model.Aggregate, error) {
	timer := prometheus.NewTimer(metrics.AggregateDuration.WithLabelValues("master"))
	defer timer.ObserveDuration()

	rels, err := listRelations(ctx, db, ownerID)
	if err != nil {
		return nil, err
	}
	g := graph.New(rels)
	reach := g.Reachable(masterID)

	items, err := itemsByID(ctx, db, ownerID, reach.IDs(masterID))
	if err != nil {
		return nil, err
	}
	if m, ok := items[masterID]; !ok || m.Role != model.RoleMaster {
		return nil, fmt.Errorf("%w: master %s", model.ErrNotFound, masterID)
	}

	agg := graph.Aggregate(g, masterID, items)
	return &agg, nil
}

// AggregateAll rolls up every master of the owner from two bulk queries.
func AggregateAll(ctx context.Context, db *sql.DB, ownerID string) ([]model.Aggregate, error) {
	timer := prometheus.NewTimer(metrics.AggregateDuration.WithLabelValues("all"))
	defer timer.ObserveDuration()

	rels, err := listRelations(ctx, db, ownerID)
	if err != nil {
		return nil, err
	}
	all, err := ListItems(ctx, db, ownerID, "")
	if err != nil {
		return nil, err
	}

	items := make(map[string]model.Item, len(all))
	for _, it := range all {
		items[it.ID] = it
	}
	return graph.AggregateAll(graph.New(rels), items), nil
}

// DeleteVariant removes a variant and its OWNS_VARIANT edge. Variants that
// instances still point at cannot be deleted.
func DeleteVariant(ctx context.Context, db *sql.DB, ownerID, variantID string) error {
	return withTx(ctx, db, "variant delete", func(tx *sql.Tx) error {
		if _, err := getItemWithRole(ctx, tx, ownerID, variantID, model.RoleVariant); err != nil {
			return err
		}

		var instances int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM item_relations
			 WHERE owner_id = ? AND relation_type = ? AND from_item_id = ?`,
			ownerID, string(model.RelVariantOfInstance), variantID,
		).Scan(&instances); err != nil {
			return fmt.Errorf("counting variant instances: %w", err)
		}
		if instances > 0 {
			return fmt.Errorf("%w: variant %s still has %d instances", model.ErrConflict, variantID, instances)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM item_relations WHERE owner_id = ? AND (to_item_id = ? OR from_item_id = ?)`,
			ownerID, variantID, variantID,
		); err != nil {
			return fmt.Errorf("deleting variant relations: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM items WHERE id = ? AND owner_id = ?`, variantID, ownerID,
		); err != nil {
			return fmt.Errorf("deleting variant: %w", err)
		}
		return nil
	})
}

// ListVariants returns the variants a master owns, by name.
func ListVariants(ctx context.Context, db *sql.DB, ownerID, masterID string) ([]model.Item, error) {
	return ownedItems(ctx, db, ownerID, masterID, model.RelOwnsVariant)
}

// ListInstances returns the instances a master owns, by name.
func ListInstances(ctx context.Context, db *sql.DB, ownerID, masterID string) ([]model.Item, error) {
	return ownedItems(ctx, db, ownerID, masterID, model.RelOwnsInstance)
}

func ownedItems(ctx context.Context, db *sql.DB, ownerID, masterID string, t model.RelationType) ([]model.Item, error) {
	if _, err := getItemWithRole(ctx, db, ownerID, masterID, model.RoleMaster); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+itemFrom+`
		 JOIN item_relations r ON r.to_item_id = i.id
		 WHERE r.owner_id = ? AND r.relation_type = ? AND r.from_item_id = ? AND i.owner_id = ?`,
		ownerID, string(t), masterID, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing owned items: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}
