package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	scanerrors "github.com/kornysietsma/polyglot-code-scanner/internal/errors"
	"github.com/kornysietsma/polyglot-code-scanner/internal/output"
	"github.com/kornysietsma/polyglot-code-scanner/internal/scan"
	"github.com/kornysietsma/polyglot-code-scanner/internal/tree"
)

// Exporter writes a scan document into a database. Each export replaces the
// previous contents.
type Exporter struct {
	db     *DB
	logger *slog.Logger
}

// NewExporter creates an exporter for db.
func NewExporter(db *DB, logger *slog.Logger) *Exporter {
	return &Exporter{db: db, logger: logger}
}

// ExportFile opens the database at path, exports doc and closes it.
func ExportFile(ctx context.Context, path string, doc *scan.Document, logger *slog.Logger) error {
	db, err := Open(path, logger)
	if err != nil {
		return exportError(path, err)
	}
	defer func() { _ = db.Close() }()
	return NewExporter(db, logger).Export(ctx, doc)
}

// Export writes doc in a single transaction.
func (e *Exporter) Export(ctx context.Context, doc *scan.Document) error {
	var files, bursts int
	err := e.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, table := range exportTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		if err := writeMetadata(ctx, tx, doc); err != nil {
			return err
		}
		if doc.Metadata != nil && doc.Metadata.Git != nil {
			if err := writeUsers(ctx, tx, doc.Metadata.Git); err != nil {
				return err
			}
		}
		var err error
		if files, bursts, err = writeFiles(ctx, tx, doc.Tree); err != nil {
			return err
		}
		return writeEdges(ctx, tx, doc)
	})
	if err != nil {
		return exportError(e.db.Path(), err)
	}

	e.logger.Info("Exported scan to sqlite",
		"path", e.db.Path(),
		"files", files,
		"bursts", bursts,
		"edges", len(doc.Coupling),
	)
	return nil
}

func exportError(path string, cause error) error {
	return scanerrors.NewScanError(scanerrors.ExportFailed, "failed to export scan", cause,
		scanerrors.GetSuggestedFixes(scanerrors.ExportFailed)).
		WithDetails(map[string]string{"path": path})
}

func writeMetadata(ctx context.Context, tx *sql.Tx, doc *scan.Document) error {
	features, err := output.DeterministicEncode(doc.Features)
	if err != nil {
		return err
	}
	rows := map[string]string{
		"version":  doc.Version,
		"name":     doc.Name,
		"id":       doc.ID,
		"features": string(features),
	}
	if md := doc.Metadata; md != nil {
		if md.Git != nil {
			rows["horizon_start"] = strconv.FormatInt(md.Git.HorizonStart, 10)
			rows["reference_time"] = strconv.FormatInt(md.Git.ReferenceTime, 10)
		}
		if md.Coupling != nil {
			params, err := output.DeterministicEncode(md.Coupling)
			if err != nil {
				return err
			}
			rows["coupling"] = string(params)
		}
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO scan_metadata (key, value) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for k, v := range rows {
		if _, err := stmt.ExecContext(ctx, k, v); err != nil {
			return fmt.Errorf("metadata %s: %w", k, err)
		}
	}
	return nil
}

func writeUsers(ctx context.Context, tx *sql.Tx, md *tree.GitMetadata) error {
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO users (id, name, email) VALUES (?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, u := range md.Users {
		if _, err := stmt.ExecContext(ctx, u.ID, u.User.Name, u.User.Email); err != nil {
			return fmt.Errorf("user %d: %w", u.ID, err)
		}
	}
	return nil
}

type fileStatements struct {
	file, user, burst *sql.Stmt
}

func writeFiles(ctx context.Context, tx *sql.Tx, root *tree.Node) (int, int, error) {
	if root == nil {
		return 0, 0, nil
	}
	var (
		st  fileStatements
		err error
	)
	if st.file, err = tx.PrepareContext(ctx, `INSERT INTO files
		(path, age_in_days, last_update, creation_date, user_count) VALUES (?, ?, ?, ?, ?)`); err != nil {
		return 0, 0, err
	}
	defer st.file.Close()
	if st.user, err = tx.PrepareContext(ctx, "INSERT INTO file_users (path, user_id) VALUES (?, ?)"); err != nil {
		return 0, 0, err
	}
	defer st.user.Close()
	if st.burst, err = tx.PrepareContext(ctx, `INSERT INTO bursts
		(path, seq, first_change, last_change, commit_count, users) VALUES (?, ?, ?, ?, ?, ?)`); err != nil {
		return 0, 0, err
	}
	defer st.burst.Close()

	var files, bursts int
	var walk func(n *tree.Node) error
	walk = func(n *tree.Node) error {
		if n.Data != nil && n.Data.Git != nil && !n.IsDir() {
			b, err := writeFile(ctx, st, n.Path, n.Data.Git)
			if err != nil {
				return fmt.Errorf("file %s: %w", n.Path, err)
			}
			files++
			bursts += b
		}
		for _, c := range n.Children {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root); err != nil {
		return 0, 0, err
	}
	return files, bursts, nil
}

func writeFile(ctx context.Context, st fileStatements, path string, g *tree.GitData) (int, error) {
	var created interface{}
	if g.CreationDate != 0 {
		created = g.CreationDate
	}
	if _, err := st.file.ExecContext(ctx, path, g.AgeInDays, g.LastUpdate, created, g.UserCount); err != nil {
		return 0, err
	}
	for _, id := range g.Users {
		if _, err := st.user.ExecContext(ctx, path, id); err != nil {
			return 0, err
		}
	}
	for i, d := range g.Details {
		ids, err := output.DeterministicEncode(d.Users)
		if err != nil {
			return 0, err
		}
		if _, err := st.burst.ExecContext(ctx, path, i, d.FirstChange, d.LastChange, d.CommitCount, string(ids)); err != nil {
			return 0, err
		}
	}
	return len(g.Details), nil
}

func writeEdges(ctx context.Context, tx *sql.Tx, doc *scan.Document) error {
	if len(doc.Coupling) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO coupling_edges
		(from_path, to_path, ratio, shared_buckets, active_buckets, last_shared_period) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, e := range doc.Coupling {
		if _, err := stmt.ExecContext(ctx, e.From, e.To, output.RoundFloat(e.Ratio), e.SharedBuckets, e.ActiveBuckets, e.LastSharedPeriod); err != nil {
			return fmt.Errorf("edge %s -> %s: %w", e.From, e.To, err)
		}
	}
	return nil
}
