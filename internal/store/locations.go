package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/erazemk/shramba/internal/hierarchy"
	"github.com/erazemk/shramba/internal/metrics"
	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/schema"
	"github.com/erazemk/shramba/internal/tree"
)

// CodeFormat controls how location codes are generated: Prefix followed by a
// sequence number zero padded to Width digits.
type CodeFormat struct {
	Prefix      string
	Width       int
	MaxAttempts int
}

// DefaultCodeFormat yields codes 001, 002, ... and gives up after five
// colliding attempts.
var DefaultCodeFormat = CodeFormat{Width: 3, MaxAttempts: 5}

// NewLocation is the input for CreateLocation. A nil ParentID creates a root.
type NewLocation struct {
	Name     string             `json:"name" validate:"notblank,max=100"`
	Type     model.LocationType `json:"type"`
	ParentID *string            `json:"parentId"`
}

func (in NewLocation) validate() error {
	fields := schema.Struct(in)
	if !in.Type.Valid() {
		fields = append(fields, model.FieldError{Field: "type", Message: "unknown location type"})
	}
	return model.NewValidationError(fields)
}

// LocationNode is a location with its children, for tree snapshots.
type LocationNode struct {
	model.Location
	Children []*LocationNode `json:"children,omitempty"`
}

const locationColumns = `id, owner_id, name, type, parent_id, code, created_at`

func scanLocation(row interface{ Scan(...any) error }) (*model.Location, error) {
	l := &model.Location{}
	var parentID sql.NullString
	if err := row.Scan(&l.ID, &l.OwnerID, &l.Name, &l.Type, &parentID, &l.Code, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.ParentID = stringPtr(parentID)
	return l, nil
}

func getLocation(ctx context.Context, q querier, ownerID, id string) (*model.Location, error) {
	l, err := scanLocation(q.QueryRowContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE id = ? AND owner_id = ?`, id, ownerID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: location %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting location: %w", err)
	}
	return l, nil
}

func listLocations(ctx context.Context, q querier, ownerID string) ([]model.Location, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+locationColumns+` FROM locations WHERE owner_id = ? ORDER BY code`, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locs []model.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locs = append(locs, *l)
	}
	return locs, rows.Err()
}

// loadForest reads every location of the owner in one query.
func loadForest(ctx context.Context, q querier, ownerID string) (*tree.Forest, []model.Location, error) {
	locs, err := listLocations(ctx, q, ownerID)
	if err != nil {
		return nil, nil, err
	}
	return tree.FromLocations(locs), locs, nil
}

// CreateLocation validates and stores a new location with the next free code.
// The parent check, rule check, code scan and insert share one write
// transaction; collisions on the code retry the whole transaction.
func CreateLocation(ctx context.Context, db *sql.DB, rules *hierarchy.RuleSet, codes CodeFormat, ownerID string, in NewLocation) (*model.Location, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var loc *model.Location
	err := withCodeRetry(ctx, codes, func(ctx context.Context) error {
		return withTx(ctx, db, "location", func(tx *sql.Tx) error {
			l, err := createLocationTx(ctx, tx, rules, codes, ownerID, in)
			if err != nil {
				return err
			}
			loc = l
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return loc, nil
}

func createLocationTx(ctx context.Context, tx *sql.Tx, rules *hierarchy.RuleSet, codes CodeFormat, ownerID string, in NewLocation) (*model.Location, error) {
	if in.ParentID != nil {
		parent, err := getLocation(ctx, tx, ownerID, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if !rules.IsAllowed(parent.Type, in.Type) {
			metrics.RuleViolations.WithLabelValues("create").Inc()
			return nil, fmt.Errorf("%w: %s cannot contain %s", model.ErrRuleViolation, parent.Type, in.Type)
		}
	}

	code, err := nextCode(ctx, tx, codes)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO locations (id, owner_id, name, type, parent_id, code) VALUES (?, ?, ?, ?, ?, ?)`,
		id, ownerID, strings.TrimSpace(in.Name), string(in.Type), nullString(in.ParentID), code,
	)
	if err != nil {
		return nil, fmt.Errorf("creating location: %w", err)
	}
	return getLocation(ctx, tx, ownerID, id)
}

// nextCode returns one past the highest code made of the prefix and digits
// only. Codes in any other shape are skipped here but still occupy the unique
// index. The scan covers every owner because codes are unique installation-wide.
// substr counts characters, so the prefix length is given in runes.
func nextCode(ctx context.Context, q querier, codes CodeFormat) (string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT code FROM locations WHERE substr(code, 1, ?) = ?`,
		utf8.RuneCountInString(codes.Prefix), codes.Prefix,
	)
	if err != nil {
		return "", fmt.Errorf("scanning location codes: %w", err)
	}
	defer rows.Close()

	var highest uint64
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return "", fmt.Errorf("scanning location code: %w", err)
		}
		digits, ok := strings.CutPrefix(code, codes.Prefix)
		if !ok {
			continue
		}
		if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
			continue
		}
		n, err := strconv.ParseUint(digits, 10, 64)
		if err != nil {
			continue
		}
		highest = max(highest, n)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("scanning location codes: %w", err)
	}

	width := codes.Width
	if width <= 0 {
		width = DefaultCodeFormat.Width
	}
	return fmt.Sprintf("%s%0*d", codes.Prefix, width, highest+1), nil
}

// withCodeRetry reruns fn while it fails on a unique or busy error, backing
// off exponentially. Exhausting the attempts yields ErrConflict.
func withCodeRetry(ctx context.Context, codes CodeFormat, fn func(ctx context.Context) error) error {
	attempts := codes.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultCodeFormat.MaxAttempts
	}
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(10*time.Millisecond))

	tries := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tries++
		if tries > 1 {
			metrics.CodeRetries.Inc()
		}
		err := fn(ctx)
		if isUniqueViolation(err) || isBusy(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && (isUniqueViolation(err) || isBusy(err)) {
		return fmt.Errorf("%w: no free location code after %d attempts: %v", model.ErrConflict, tries, err)
	}
	return err
}

// MoveLocation reparents a location. A nil newParentID makes it a root.
// Moving under itself or under one of its descendants is rejected, and the
// new parent's type must allow the location's type.
func MoveLocation(ctx context.Context, db *sql.DB, rules *hierarchy.RuleSet, ownerID, id string, newParentID *string) (*model.Location, error) {
	if newParentID != nil && *newParentID == id {
		return nil, fmt.Errorf("%w: location %s cannot be its own parent", model.ErrSelfReference, id)
	}

	var moved *model.Location
	err := withTx(ctx, db, "move", func(tx *sql.Tx) error {
		loc, err := getLocation(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}

		if newParentID != nil {
			parent, err := getLocation(ctx, tx, ownerID, *newParentID)
			if err != nil {
				return err
			}

			forest, _, err := loadForest(ctx, tx, ownerID)
			if err != nil {
				return err
			}
			if forest.IsDescendant(id, parent.ID) {
				metrics.CycleRejections.WithLabelValues("instance").Inc()
				return fmt.Errorf("%w: %s is inside %s", model.ErrCycleDetected, parent.Name, loc.Name)
			}

			if !rules.IsAllowed(parent.Type, loc.Type) {
				metrics.RuleViolations.WithLabelValues("move").Inc()
				return fmt.Errorf("%w: %s cannot contain %s", model.ErrRuleViolation, parent.Type, loc.Type)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE locations SET parent_id = ? WHERE id = ? AND owner_id = ?`,
			nullString(newParentID), id, ownerID,
		); err != nil {
			return fmt.Errorf("moving location: %w", err)
		}

		moved, err = getLocation(ctx, tx, ownerID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

// GetLocation returns a location with its resolved path.
func GetLocation(ctx context.Context, db *sql.DB, ownerID, id string) (*model.Location, error) {
	forest, locs, err := loadForest(ctx, db, ownerID)
	if err != nil {
		return nil, err
	}
	for i := range locs {
		if locs[i].ID == id {
			l := locs[i]
			l.Path = forest.Path(id)
			return &l, nil
		}
	}
	return nil, fmt.Errorf("%w: location %s", model.ErrNotFound, id)
}

// ListLocations returns the owner's locations ordered by code, each with its
// path. A non-nil parentID limits the result to that location's children.
func ListLocations(ctx context.Context, db *sql.DB, ownerID string, parentID *string) ([]model.Location, error) {
	forest, locs, err := loadForest(ctx, db, ownerID)
	if err != nil {
		return nil, err
	}
	if parentID != nil && !forest.Has(*parentID) {
		return nil, fmt.Errorf("%w: location %s", model.ErrNotFound, *parentID)
	}

	out := make([]model.Location, 0, len(locs))
	for _, l := range locs {
		if parentID != nil && (l.ParentID == nil || *l.ParentID != *parentID) {
			continue
		}
		l.Path = forest.Path(l.ID)
		out = append(out, l)
	}
	return out, nil
}

// ResolvePath returns location names from the root down to id.
func ResolvePath(ctx context.Context, db *sql.DB, ownerID, id string) ([]string, error) {
	forest, _, err := loadForest(ctx, db, ownerID)
	if err != nil {
		return nil, err
	}
	if !forest.Has(id) {
		return nil, fmt.Errorf("%w: location %s", model.ErrNotFound, id)
	}
	return forest.Path(id), nil
}

// CompactPath is ResolvePath shortened to first, "...", last when the path
// has more than maxSegments segments.
func CompactPath(ctx context.Context, db *sql.DB, ownerID, id string, maxSegments int) (string, error) {
	path, err := ResolvePath(ctx, db, ownerID, id)
	if err != nil {
		return "", err
	}
	return tree.Compact(path, maxSegments), nil
}

// RenameLocation changes a location's name.
func RenameLocation(ctx context.Context, db *sql.DB, ownerID, id, name string) (*model.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewValidationError([]model.FieldError{{Field: "name", Message: "is required"}})
	}

	res, err := db.ExecContext(ctx,
		`UPDATE locations SET name = ? WHERE id = ? AND owner_id = ?`, name, id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("renaming location: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: location %s", model.ErrNotFound, id)
	}
	return GetLocation(ctx, db, ownerID, id)
}

// DeleteLocation removes an empty location. Locations that still hold child
// locations or items are left alone.
func DeleteLocation(ctx context.Context, db *sql.DB, ownerID, id string) error {
	return withTx(ctx, db, "location delete", func(tx *sql.Tx) error {
		if _, err := getLocation(ctx, tx, ownerID, id); err != nil {
			return err
		}

		var children, items int
		err := tx.QueryRowContext(ctx,
			`SELECT
				(SELECT COUNT(*) FROM locations WHERE parent_id = ?),
				(SELECT COUNT(*) FROM items WHERE location_id = ?)`,
			id, id,
		).Scan(&children, &items)
		if err != nil {
			return fmt.Errorf("checking location contents: %w", err)
		}
		if children > 0 {
			return fmt.Errorf("%w: location %s has %d child locations", model.ErrConflict, id, children)
		}
		if items > 0 {
			return fmt.Errorf("%w: location %s holds %d items", model.ErrConflict, id, items)
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM locations WHERE id = ? AND owner_id = ?`, id, ownerID,
		); err != nil {
			return fmt.Errorf("deleting location: %w", err)
		}
		return nil
	})
}

// LocationTree returns the owner's locations nested under their roots.
func LocationTree(ctx context.Context, db *sql.DB, ownerID string) ([]*LocationNode, error) {
	forest, locs, err := loadForest(ctx, db, ownerID)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*LocationNode, len(locs))
	for _, l := range locs {
		l.Path = forest.Path(l.ID)
		nodes[l.ID] = &LocationNode{Location: l}
	}

	var roots []*LocationNode
	for _, l := range locs {
		n := nodes[l.ID]
		if l.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		if parent, ok := nodes[*l.ParentID]; ok {
			parent.Children = append(parent.Children, n)
		}
	}
	return roots, nil
}

// CheckForest verifies that the owner's locations form a forest.
func CheckForest(ctx context.Context, db *sql.DB, ownerID string) error {
	forest, _, err := loadForest(ctx, db, ownerID)
	if err != nil {
		return err
	}
	return forest.Check()
}
