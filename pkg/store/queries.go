package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"compliance-monitor/internal/rules"
)

// LookupRules implements resolver.Store's tier-1 contract: a single read
// keyed by (firm, program_id). A missing row is reported as found=false,
// not an error; the resolver treats both identically as a tier miss.
func (d *DB) LookupRules(ctx context.Context, firm, programID string) (rules.Rules, bool, error) {
	var rulesJSON string
	err := d.conn.QueryRowContext(ctx, `
		SELECT rr.rules_json
		FROM rule_rows rr
		JOIN firms f ON f.id = rr.firm_id
		WHERE f.name = ? AND rr.program_id = ?
	`, firm, programID).Scan(&rulesJSON)

	if err == sql.ErrNoRows {
		return rules.Rules{}, false, nil
	}
	if err != nil {
		return rules.Rules{}, false, fmt.Errorf("store: lookup rules for (%s, %s): %w", firm, programID, err)
	}

	var r rules.Rules
	if err := json.Unmarshal([]byte(rulesJSON), &r); err != nil {
		return rules.Rules{}, false, fmt.Errorf("store: decode stored rules for (%s, %s): %w", firm, programID, err)
	}
	return r, true, nil
}

// SoftRules returns advisory guidance strings for a firm/program, used only
// by the review API when include_soft_rules=true. An empty program_id
// matches firm-wide advisories (rows stored with program_id='').
func (d *DB) SoftRules(ctx context.Context, firm, programID string) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT sr.advisory
		FROM soft_rule_rows sr
		JOIN firms f ON f.id = sr.firm_id
		WHERE f.name = ? AND (sr.program_id = ? OR sr.program_id = '')
		ORDER BY sr.id
	`, firm, programID)
	if err != nil {
		return nil, fmt.Errorf("store: soft rules for (%s, %s): %w", firm, programID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var advisory string
		if err := rows.Scan(&advisory); err != nil {
			return nil, fmt.Errorf("store: scan soft rule: %w", err)
		}
		out = append(out, advisory)
	}
	return out, rows.Err()
}

// UpsertRules writes (or replaces) the rule row for a (firm, program_id)
// pair, creating the firm row if needed. Tests use it to seed a store; no
// CLI subcommand calls it, and the extraction pipeline that would populate
// this in production is out of scope.
func (d *DB) UpsertRules(ctx context.Context, firm string, r rules.Rules) error {
	firmID, err := d.ensureFirm(ctx, firm)
	if err != nil {
		return err
	}

	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: encode rules: %w", err)
	}

	_, err = d.conn.ExecContext(ctx, `
		INSERT INTO rule_rows (firm_id, program_id, rules_json, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(firm_id, program_id) DO UPDATE SET
			rules_json = excluded.rules_json,
			updated_at = CURRENT_TIMESTAMP
	`, firmID, r.ProgramID, string(data))
	if err != nil {
		return fmt.Errorf("store: upsert rules: %w", err)
	}
	return nil
}

// AddSoftRule inserts one advisory string for a firm/program. programID may
// be empty for a firm-wide advisory.
func (d *DB) AddSoftRule(ctx context.Context, firm, programID, advisory string) error {
	firmID, err := d.ensureFirm(ctx, firm)
	if err != nil {
		return err
	}
	_, err = d.conn.ExecContext(ctx, `
		INSERT INTO soft_rule_rows (firm_id, program_id, advisory) VALUES (?, ?, ?)
	`, firmID, programID, advisory)
	if err != nil {
		return fmt.Errorf("store: add soft rule: %w", err)
	}
	return nil
}

func (d *DB) ensureFirm(ctx context.Context, firm string) (int64, error) {
	var id int64
	err := d.conn.QueryRowContext(ctx, `SELECT id FROM firms WHERE name = ?`, firm).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("store: lookup firm %q: %w", firm, err)
	}

	res, err := d.conn.ExecContext(ctx, `INSERT INTO firms (name) VALUES (?)`, firm)
	if err != nil {
		return 0, fmt.Errorf("store: insert firm %q: %w", firm, err)
	}
	return res.LastInsertId()
}
