package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	driver "github.com/go-sql-driver/mysql"

	domain "github.com/printsafeai/printsafe-api/internal/domain/analysis"
	"github.com/printsafeai/printsafe-api/internal/domain/clients"
	"github.com/printsafeai/printsafe-api/internal/domain/employees"
)

// Store persists clients and analysis records to MySQL. Image copies go
// through the ImageStore so the relational row and the file move together.
type Store struct {
	db     *sql.DB
	images domain.ImageStore
}

func NewStore(db *sql.DB, images domain.ImageStore) *Store {
	return &Store{db: db, images: images}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// ListEmployees returns the selection list, ordered for display.
func (s *Store) ListEmployees(ctx context.Context) ([]employees.Employee, error) {
	const q = `
SELECT id_empleado, nombres, apellidos
FROM empleado
ORDER BY apellidos, nombres;
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: list employees: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var out []employees.Employee
	for rows.Next() {
		var e employees.Employee
		if err := rows.Scan(&e.ID, &e.FirstName, &e.LastName); err != nil {
			return nil, fmt.Errorf("%w: scan employee: %v", domain.ErrStoreUnavailable, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreateClient inserts one client row and returns the assigned id.
func (s *Store) CreateClient(ctx context.Context, c *clients.Client) (int64, error) {
	const q = `
INSERT INTO cliente (nombres, apellidos, dni_ruc, celular, empresa)
VALUES (?,?,?,?,?);
`
	res, err := s.db.ExecContext(ctx, q,
		c.FirstName, c.LastName, c.NationalID, c.Phone, nullString(c.Company))
	if err != nil {
		return 0, wrapExecError("create client", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: client id: %v", domain.ErrStoreUnavailable, err)
	}
	return id, nil
}

// SaveAnalysisBatch creates the client row and one imagen_analisis row per
// entry inside a single transaction. Image copies written before a failure are
// removed best-effort so a rolled-back batch leaves nothing behind.
func (s *Store) SaveAnalysisBatch(ctx context.Context, c *clients.Client, employeeID int64, entries []domain.BatchEntry) (int64, []domain.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: begin batch: %v", domain.ErrStoreUnavailable, err)
	}

	var written []string
	fail := func(op string, err error) (int64, []domain.Record, error) {
		tx.Rollback()
		for _, p := range written {
			_ = s.images.Remove(ctx, p)
		}
		return 0, nil, wrapExecError(op, err)
	}

	const qc = `
INSERT INTO cliente (nombres, apellidos, dni_ruc, celular, empresa)
VALUES (?,?,?,?,?);
`
	res, err := tx.ExecContext(ctx, qc,
		c.FirstName, c.LastName, c.NationalID, c.Phone, nullString(c.Company))
	if err != nil {
		return fail("create client", err)
	}
	clientID, err := res.LastInsertId()
	if err != nil {
		return fail("client id", err)
	}

	const qr = `
INSERT INTO imagen_analisis
(id_empleado, id_cliente, nombre_archivo, resultado, probabilidad, confianza, ruta_imagen)
VALUES (?,?,?,?,?,?,?);
`
	records := make([]domain.Record, 0, len(entries))
	for _, e := range entries {
		path, err := s.images.Save(ctx, e.FileName, e.Data)
		if err != nil {
			return fail("save image copy", err)
		}
		written = append(written, path)

		// probabilidad and confianza both carry the raw score; the schema has
		// always stored them duplicated and downstream reports depend on it.
		res, err := tx.ExecContext(ctx, qr,
			employeeID, clientID, e.FileName, string(e.Label), e.RawScore, e.RawScore, path)
		if err != nil {
			return fail("save analysis row", err)
		}
		recID, err := res.LastInsertId()
		if err != nil {
			return fail("analysis row id", err)
		}
		records = append(records, domain.Record{
			ID:          recID,
			EmployeeID:  employeeID,
			ClientID:    clientID,
			FileName:    e.FileName,
			Result:      e.Label,
			Probability: e.RawScore,
			Confidence:  e.RawScore,
			ImagePath:   path,
		})
	}

	if err := tx.Commit(); err != nil {
		for _, p := range written {
			_ = s.images.Remove(ctx, p)
		}
		return 0, nil, fmt.Errorf("%w: commit batch: %v", domain.ErrStoreUnavailable, err)
	}
	return clientID, records, nil
}

// nullString maps "" to NULL for optional columns.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func wrapExecError(op string, err error) error {
	var me *driver.MySQLError
	if errors.As(err, &me) {
		// 1048 NOT NULL, 1062 duplicate, 1452 FK
		switch me.Number {
		case 1048, 1062, 1452:
			return fmt.Errorf("%w: %s: %v", domain.ErrConstraint, op, err)
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}
