package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	domain "github.com/printsafeai/printsafe-api/internal/domain/analysis"
	"github.com/printsafeai/printsafe-api/internal/domain/clients"
	"github.com/printsafeai/printsafe-api/internal/domain/employees"
)

// Store is the Postgres variant of the record store, for deployments that run
// the same schema there instead of MySQL.
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

func (s *Store) CreateClient(ctx context.Context, c *clients.Client) (int64, error) {
	const q = `
INSERT INTO cliente (nombres, apellidos, dni_ruc, celular, empresa)
VALUES ($1,$2,$3,$4,$5)
RETURNING id_cliente;
`
	var id int64
	err := s.db.QueryRowContext(ctx, q,
		c.FirstName, c.LastName, c.NationalID, c.Phone, nullString(c.Company)).Scan(&id)
	if err != nil {
		return 0, wrapExecError("create client", err)
	}
	return id, nil
}

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
VALUES ($1,$2,$3,$4,$5)
RETURNING id_cliente;
`
	var clientID int64
	if err := tx.QueryRowContext(ctx, qc,
		c.FirstName, c.LastName, c.NationalID, c.Phone, nullString(c.Company)).Scan(&clientID); err != nil {
		return fail("create client", err)
	}

	const qr = `
INSERT INTO imagen_analisis
(id_empleado, id_cliente, nombre_archivo, resultado, probabilidad, confianza, ruta_imagen)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id;
`
	records := make([]domain.Record, 0, len(entries))
	for _, e := range entries {
		path, err := s.images.Save(ctx, e.FileName, e.Data)
		if err != nil {
			return fail("save image copy", err)
		}
		written = append(written, path)

		var recID int64
		// probabilidad and confianza both carry the raw score, same as the
		// MySQL store.
		if err := tx.QueryRowContext(ctx, qr,
			employeeID, clientID, e.FileName, string(e.Label), e.RawScore, e.RawScore, path).Scan(&recID); err != nil {
			return fail("save analysis row", err)
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

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func wrapExecError(op string, err error) error {
	var pe *pq.Error
	if errors.As(err, &pe) && len(pe.Code) >= 2 && pe.Code[0:2] == "23" {
		// class 23 = integrity constraint violation
		return fmt.Errorf("%w: %s: %v", domain.ErrConstraint, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}
