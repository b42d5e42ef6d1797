package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/schema"
)

// Default category schemas. Variants carry no category data of their own.
const (
	yarnSchema = `{"fields": [
		{"name": "brand", "type": "string", "rules": "max=60"},
		{"name": "fiber", "type": "string", "rules": "max=60"},
		{"name": "weight", "type": "enum", "options": ["lace", "fingering", "sport", "dk", "worsted", "aran", "bulky"]},
		{"name": "metersPer100g", "type": "number", "rules": "gt=0"}
	]}`
	yarnColorSchema = `{"fields": []}`
	yarnBatchSchema = `{"fields": [
		{"name": "dyeLot", "type": "string", "rules": "max=40"},
		{"name": "purchasedAt", "type": "string", "rules": "datetime=2006-01-02"}
	]}`
)

// DefaultCategories are created by bootstrap, one per role.
var DefaultCategories = []model.Category{
	{ID: model.CategoryYarn, Name: "Yarn", Role: model.RoleMaster, Schema: json.RawMessage(yarnSchema)},
	{ID: model.CategoryYarnColor, Name: "Yarn color", Role: model.RoleVariant, Schema: json.RawMessage(yarnColorSchema)},
	{ID: model.CategoryYarnBatch, Name: "Yarn batch", Role: model.RoleInstance, Schema: json.RawMessage(yarnBatchSchema)},
}

// NewCategory is the input for CreateCategory. An empty ID is generated.
type NewCategory struct {
	ID     string          `json:"id" validate:"omitempty,max=40"`
	Name   string          `json:"name" validate:"notblank,max=100"`
	Role   model.Role      `json:"role"`
	Schema json.RawMessage `json:"schema"`
}

func getCategory(ctx context.Context, q querier, id string) (*model.Category, error) {
	c := &model.Category{}
	var raw string
	err := q.QueryRowContext(ctx,
		`SELECT id, name, role, schema, created_at FROM categories WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Role, &raw, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: category %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	c.Schema = json.RawMessage(raw)
	return c, nil
}

// GetCategory returns a category by id.
func GetCategory(ctx context.Context, db *sql.DB, id string) (*model.Category, error) {
	return getCategory(ctx, db, id)
}

// ListCategories returns all categories, optionally limited to one role.
func ListCategories(ctx context.Context, db *sql.DB, role model.Role) ([]model.Category, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, role, schema, created_at FROM categories
		 WHERE ? = '' OR role = ? ORDER BY name`, string(role), string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var cats []model.Category
	for rows.Next() {
		var c model.Category
		var raw string
		if err := rows.Scan(&c.ID, &c.Name, &c.Role, &raw, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		c.Schema = json.RawMessage(raw)
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// CreateCategory stores a category after checking its role and schema
// definition.
func CreateCategory(ctx context.Context, db *sql.DB, in NewCategory) (*model.Category, error) {
	fields := schema.Struct(in)
	if !in.Role.Valid() {
		fields = append(fields, model.FieldError{Field: "role", Message: "must be one of master, variant, instance"})
	}
	if _, err := schema.Parse(in.Schema); err != nil {
		fields = append(fields, model.FieldError{Field: "schema", Message: err.Error()})
	}
	if err := model.NewValidationError(fields); err != nil {
		return nil, err
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	raw := string(in.Schema)
	if len(in.Schema) == 0 {
		raw = `{"fields":[]}`
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO categories (id, name, role, schema) VALUES (?, ?, ?, ?)`,
		id, in.Name, string(in.Role), raw,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("%w: category %s already exists", model.ErrConflict, id)
	}
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	return getCategory(ctx, db, id)
}

// categoryForRole loads a category and checks that it plays the given role.
// An empty id picks the default category for the role.
func categoryForRole(ctx context.Context, q querier, id string, role model.Role) (*model.Category, schema.Schema, error) {
	if id == "" {
		for _, c := range DefaultCategories {
			if c.Role == role {
				id = c.ID
				break
			}
		}
	}

	cat, err := getCategory(ctx, q, id)
	if err != nil {
		return nil, schema.Schema{}, err
	}
	if cat.Role != role {
		return nil, schema.Schema{}, model.NewValidationError([]model.FieldError{{
			Field:   "categoryId",
			Message: fmt.Sprintf("category %s is for %s items, not %s", cat.ID, cat.Role, role),
		}})
	}

	s, err := schema.Parse(cat.Schema)
	if err != nil {
		return nil, schema.Schema{}, fmt.Errorf("category %s has a broken schema: %w", cat.ID, err)
	}
	return cat, s, nil
}
