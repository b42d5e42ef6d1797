package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/shramba/internal/hierarchy"
	"github.com/erazemk/shramba/internal/model"
)

// RootLocationName is the room created for an owner with no locations.
const RootLocationName = "Home"

// Health reports whether bootstrap has run for an owner.
type Health struct {
	CategoriesReady   bool `json:"categoriesReady"`
	RootLocationReady bool `json:"rootLocationReady"`
	Ready             bool `json:"ready"`
}

// EnsureDefaultCategories creates the default categories that do not exist
// yet. Existing ones are left as they are.
func EnsureDefaultCategories(ctx context.Context, db *sql.DB) error {
	return withTx(ctx, db, "default categories", func(tx *sql.Tx) error {
		for _, c := range DefaultCategories {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO categories (id, name, role, schema) VALUES (?, ?, ?, ?)`,
				c.ID, c.Name, string(c.Role), string(c.Schema),
			); err != nil {
				return fmt.Errorf("creating category %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// EnsureRootLocation creates a root room for an owner that has no locations
// and returns the owner's first root either way.
func EnsureRootLocation(ctx context.Context, db *sql.DB, rules *hierarchy.RuleSet, codes CodeFormat, ownerID string) (*model.Location, error) {
	var root *model.Location
	err := withCodeRetry(ctx, codes, func(ctx context.Context) error {
		return withTx(ctx, db, "root location", func(tx *sql.Tx) error {
			var id string
			err := tx.QueryRowContext(ctx,
				`SELECT id FROM locations WHERE owner_id = ? AND parent_id IS NULL ORDER BY code LIMIT 1`,
				ownerID,
			).Scan(&id)
			switch {
			case err == nil:
				root, err = getLocation(ctx, tx, ownerID, id)
				return err
			case !errors.Is(err, sql.ErrNoRows):
				return fmt.Errorf("finding root location: %w", err)
			}

			root, err = createLocationTx(ctx, tx, rules, codes, ownerID, NewLocation{
				Name: RootLocationName,
				Type: model.LocationRoom,
			})
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// GetHealth checks the default categories and the owner's root location.
func GetHealth(ctx context.Context, db *sql.DB, ownerID string) (*Health, error) {
	h := &Health{}

	ids := make([]any, 0, len(DefaultCategories))
	for _, c := range DefaultCategories {
		ids = append(ids, c.ID)
	}
	var cats int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE id IN (`+placeholders(len(ids))+`)`, ids...,
	).Scan(&cats); err != nil {
		return nil, fmt.Errorf("checking categories: %w", err)
	}
	h.CategoriesReady = cats == len(DefaultCategories)

	var roots int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM locations WHERE owner_id = ? AND parent_id IS NULL`, ownerID,
	).Scan(&roots); err != nil {
		return nil, fmt.Errorf("checking root location: %w", err)
	}
	h.RootLocationReady = roots > 0

	h.Ready = h.CategoriesReady && h.RootLocationReady
	return h, nil
}
