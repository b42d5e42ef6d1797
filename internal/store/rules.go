package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/erazemk/shramba/internal/hierarchy"
	"github.com/erazemk/shramba/internal/metrics"
	"github.com/erazemk/shramba/internal/model"
)

// GetRuleSet returns the owner's stored hierarchy rules, or the named default
// preset if the owner has never stored any.
func GetRuleSet(ctx context.Context, db *sql.DB, ownerID, defaultPreset string) (*hierarchy.RuleSet, error) {
	rules, stored, err := listRules(ctx, db, ownerID)
	if err != nil {
		return nil, err
	}
	if stored {
		return hierarchy.NewRuleSet(rules), nil
	}

	preset, err := hierarchy.Preset(defaultPreset)
	if err != nil {
		return nil, fmt.Errorf("loading default rules: %w", err)
	}
	return hierarchy.NewRuleSet(preset), nil
}

// rulesKey marks an owner as having stored rules, so that an empty stored set
// is not mistaken for "never configured".
func rulesKey(ownerID string) string {
	return "rules.custom." + ownerID
}

func listRules(ctx context.Context, q querier, ownerID string) ([]model.HierarchyRule, bool, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT parent_type, child_type, allowed
		 FROM hierarchy_rules WHERE owner_id = ?`, ownerID,
	)
	if err != nil {
		return nil, false, fmt.Errorf("listing hierarchy rules: %w", err)
	}
	defer rows.Close()

	var rules []model.HierarchyRule
	for rows.Next() {
		var r model.HierarchyRule
		if err := rows.Scan(&r.ParentType, &r.ChildType, &r.Allowed); err != nil {
			return nil, false, fmt.Errorf("scanning hierarchy rule: %w", err)
		}
		rules = append(rules, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("listing hierarchy rules: %w", err)
	}
	if len(rules) > 0 {
		return rules, true, nil
	}

	_, found, err := getSetting(ctx, q, rulesKey(ownerID))
	if err != nil {
		return nil, false, err
	}
	return rules, found, nil
}

// ReplaceRuleSet validates rules and replaces the owner's whole rule set with
// them. A rejected set leaves the stored rules untouched.
func ReplaceRuleSet(ctx context.Context, db *sql.DB, ownerID string, rules []model.HierarchyRule) (*hierarchy.RuleSet, error) {
	if err := hierarchy.Validate(rules); err != nil {
		if errors.Is(err, model.ErrCycleDetected) {
			metrics.CycleRejections.WithLabelValues("type").Inc()
		}
		return nil, err
	}

	// Store the effective set so duplicate pairs collapse the same way they
	// were validated.
	set := hierarchy.NewRuleSet(rules)
	err := withTx(ctx, db, "rule set", func(tx *sql.Tx) error {
		return writeRules(ctx, tx, ownerID, set.Rules())
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

func writeRules(ctx context.Context, tx *sql.Tx, ownerID string, rules []model.HierarchyRule) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM hierarchy_rules WHERE owner_id = ?`, ownerID,
	); err != nil {
		return fmt.Errorf("clearing hierarchy rules: %w", err)
	}
	if err := putSetting(ctx, tx, rulesKey(ownerID), "1"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO hierarchy_rules (owner_id, parent_type, child_type, allowed) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing rule insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rules {
		if _, err := stmt.ExecContext(ctx, ownerID, string(r.ParentType), string(r.ChildType), r.Allowed); err != nil {
			return fmt.Errorf("inserting rule %s->%s: %w", r.ParentType, r.ChildType, err)
		}
	}
	return nil
}

// ApplyPreset replaces the owner's rules with a named preset.
func ApplyPreset(ctx context.Context, db *sql.DB, ownerID, name string) (*hierarchy.RuleSet, error) {
	rules, err := hierarchy.Preset(name)
	if err != nil {
		return nil, err
	}
	return ReplaceRuleSet(ctx, db, ownerID, rules)
}

// SetRule toggles a single rule. The resulting set must still be acyclic.
// The current set is read inside the write transaction so concurrent toggles
// cannot combine into a cycle.
func SetRule(ctx context.Context, db *sql.DB, ownerID, defaultPreset string, rule model.HierarchyRule) (*hierarchy.RuleSet, error) {
	var result *hierarchy.RuleSet
	err := withTx(ctx, db, "rule", func(tx *sql.Tx) error {
		current, stored, err := listRules(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if !stored {
			if current, err = hierarchy.Preset(defaultPreset); err != nil {
				return fmt.Errorf("loading default rules: %w", err)
			}
		}

		next := hierarchy.NewRuleSet(current).With(rule.ParentType, rule.ChildType, rule.Allowed)
		if err := hierarchy.Validate(next.Rules()); err != nil {
			if errors.Is(err, model.ErrCycleDetected) {
				metrics.CycleRejections.WithLabelValues("type").Inc()
			}
			return err
		}
		if err := writeRules(ctx, tx, ownerID, next.Rules()); err != nil {
			return err
		}
		result = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
