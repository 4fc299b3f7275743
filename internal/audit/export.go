// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/proofbridge/pkg/types"
)

// exportLimit caps export size so a runaway history cannot exhaust memory.
const exportLimit = 100000

// HistoryExport is the document shape written by ExportYAML and ExportJSON.
type HistoryExport struct {
	Validations []types.ProofValidationResult `json:"validations" yaml:"validations"`
	Consistency []types.ConsistencyVerdict    `json:"consistency_checks" yaml:"consistency_checks"`
}

// ExportYAML writes the full stored history to w as YAML (R4.1).
func (s *Store) ExportYAML(ctx context.Context, w io.Writer) error {
	export, err := s.exportHistory(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(export)
	if err != nil {
		return fmt.Errorf("marshaling history to YAML: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing YAML export: %w", err)
	}
	return nil
}

// ExportJSON writes the full stored history to w as indented JSON (R4.2).
func (s *Store) ExportJSON(ctx context.Context, w io.Writer) error {
	export, err := s.exportHistory(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling history to JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing JSON export: %w", err)
	}
	return nil
}

func (s *Store) exportHistory(ctx context.Context) (HistoryExport, error) {
	export := HistoryExport{
		Validations: []types.ProofValidationResult{},
		Consistency: []types.ConsistencyVerdict{},
	}

	if err := s.collectDocuments(ctx,
		`SELECT result FROM validations ORDER BY rowid LIMIT ?`,
		func(raw string) error {
			var res types.ProofValidationResult
			if err := json.Unmarshal([]byte(raw), &res); err != nil {
				return err
			}
			export.Validations = append(export.Validations, res)
			return nil
		},
	); err != nil {
		return HistoryExport{}, fmt.Errorf("exporting validations: %w", err)
	}

	if err := s.collectDocuments(ctx,
		`SELECT verdict FROM consistency_checks ORDER BY rowid LIMIT ?`,
		func(raw string) error {
			var v types.ConsistencyVerdict
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return err
			}
			export.Consistency = append(export.Consistency, v)
			return nil
		},
	); err != nil {
		return HistoryExport{}, fmt.Errorf("exporting consistency checks: %w", err)
	}

	return export, nil
}

func (s *Store) collectDocuments(ctx context.Context, query string, collect func(raw string) error) error {
	rows, err := s.db.QueryContext(ctx, query, exportLimit)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return err
		}
		if !raw.Valid {
			continue
		}
		if err := collect(raw.String); err != nil {
			return err
		}
	}
	return rows.Err()
}
