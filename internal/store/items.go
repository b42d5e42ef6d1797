package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/shramba/internal/model"
)

// QuantityDelta adjusts an instance's quantities. Either field may be negative.
type QuantityDelta struct {
	Total     float64 `json:"total"`
	Available float64 `json:"available"`
}

const itemColumns = `i.id, i.owner_id, i.category_id, c.role, i.name, i.location_id,
	i.total_quantity, i.available_quantity, i.unit, i.price, i.color_code, i.lot,
	i.category_data, i.created_at, i.updated_at`

const itemFrom = ` FROM items i JOIN categories c ON c.id = i.category_id`

func scanItem(row interface{ Scan(...any) error }) (*model.Item, error) {
	it := &model.Item{}
	var locationID, colorCode, lot sql.NullString
	var price sql.NullFloat64
	var data string
	err := row.Scan(&it.ID, &it.OwnerID, &it.CategoryID, &it.Role, &it.Name, &locationID,
		&it.TotalQuantity, &it.AvailableQuantity, &it.Unit, &price, &colorCode, &lot,
		&data, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	it.LocationID = stringPtr(locationID)
	if price.Valid {
		p := price.Float64
		it.Price = &p
	}
	it.ColorCode = colorCode.String
	it.Lot = lot.String
	if data != "" && data != "{}" {
		it.CategoryData = []byte(data)
	}
	return it, nil
}

// GetItem returns one of the owner's items with its role.
func GetItem(ctx context.Context, db *sql.DB, ownerID, id string) (*model.Item, error) {
	return getItem(ctx, db, ownerID, id)
}

func getItem(ctx context.Context, q querier, ownerID, id string) (*model.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+itemFrom+` WHERE i.id = ? AND i.owner_id = ?`, id, ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: item %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return it, nil
}

// getItemWithRole is getItem that also treats an item of another role as missing.
func getItemWithRole(ctx context.Context, q querier, ownerID, id string, role model.Role) (*model.Item, error) {
	it, err := getItem(ctx, q, ownerID, id)
	if err != nil {
		return nil, err
	}
	if it.Role != role {
		return nil, fmt.Errorf("%w: %s %s", model.ErrNotFound, role, id)
	}
	return it, nil
}

// ListItems returns the owner's items ordered by name, optionally limited to
// one role.
func ListItems(ctx context.Context, db *sql.DB, ownerID string, role model.Role) ([]model.Item, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+itemColumns+itemFrom+`
		 WHERE i.owner_id = ? AND (? = '' OR c.role = ?)
		 ORDER BY i.name, i.id`,
		ownerID, string(role), string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return collectItems(rows)
}

// itemsByID loads the given items of one owner in a single query.
func itemsByID(ctx context.Context, q querier, ownerID string, ids []string) (map[string]model.Item, error) {
	out := make(map[string]model.Item, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+itemFrom+`
		 WHERE i.owner_id = ? AND i.id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	items, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		out[it.ID] = it
	}
	return out, nil
}

func collectItems(rows *sql.Rows) ([]model.Item, error) {
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// itemRow is what createItem writes. LotScope is the item the lot is unique
// under; it is ignored when Lot is empty.
type itemRow struct {
	CategoryID   string
	Name         string
	LocationID   *string
	Total        float64
	Available    float64
	Unit         string
	Price        *float64
	ColorCode    string
	Lot          string
	LotScope     string
	CategoryData []byte
}

// createItem inserts an item inside the caller's transaction.
func createItem(ctx context.Context, tx *sql.Tx, ownerID string, row itemRow) (*model.Item, error) {
	if row.LocationID != nil {
		if _, err := getLocation(ctx, tx, ownerID, *row.LocationID); err != nil {
			return nil, err
		}
	}

	data := "{}"
	if len(row.CategoryData) > 0 {
		data = string(row.CategoryData)
	}
	var lot, lotScope sql.NullString
	if row.Lot != "" {
		lot = sql.NullString{String: row.Lot, Valid: true}
		lotScope = sql.NullString{String: row.LotScope, Valid: true}
	}
	var price sql.NullFloat64
	if row.Price != nil {
		price = sql.NullFloat64{Float64: *row.Price, Valid: true}
	}
	var colorCode sql.NullString
	if row.ColorCode != "" {
		colorCode = sql.NullString{String: row.ColorCode, Valid: true}
	}

	id := uuid.NewString()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO items (id, owner_id, category_id, name, location_id, total_quantity,
			available_quantity, unit, price, color_code, lot, lot_scope, category_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, ownerID, row.CategoryID, strings.TrimSpace(row.Name), nullString(row.LocationID),
		row.Total, row.Available, row.Unit, price, colorCode, lot, lotScope, data,
	)
	if isUniqueViolation(err) && lot.Valid {
		return nil, fmt.Errorf("%w: lot %q already exists", model.ErrConflict, row.Lot)
	}
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}
	return getItem(ctx, tx, ownerID, id)
}

// UpdateQuantities applies a delta to an instance. The result must keep
// 0 <= available <= total.
func UpdateQuantities(ctx context.Context, db *sql.DB, ownerID, id string, delta QuantityDelta) (*model.Item, error) {
	var updated *model.Item
	err := withTx(ctx, db, "quantities", func(tx *sql.Tx) error {
		it, err := getItem(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		if it.Role != model.RoleInstance {
			return model.NewValidationError([]model.FieldError{{
				Field: "id", Message: fmt.Sprintf("only instances carry quantities, item is a %s", it.Role),
			}})
		}

		total := it.TotalQuantity + delta.Total
		available := it.AvailableQuantity + delta.Available
		var fields []model.FieldError
		if total < 0 {
			fields = append(fields, model.FieldError{Field: "total", Message: "would drop below 0"})
		}
		if available < 0 {
			fields = append(fields, model.FieldError{Field: "available", Message: "would drop below 0"})
		} else if available > total {
			fields = append(fields, model.FieldError{Field: "available", Message: "would exceed the total quantity"})
		}
		if err := model.NewValidationError(fields); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET total_quantity = ?, available_quantity = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ? AND owner_id = ?`,
			total, available, id, ownerID,
		); err != nil {
			return fmt.Errorf("updating quantities: %w", err)
		}

		updated, err = getItem(ctx, tx, ownerID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
