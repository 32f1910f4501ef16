package writer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	pq "github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/omniscale/osmshape/element"
	"github.com/omniscale/osmshape/log"
)

type SQLError struct {
	query         string
	originalError error
}

func (e *SQLError) Error() string {
	return fmt.Sprintf("SQL Error: %s in query %s", e.originalError.Error(), e.query)
}

// Postgres loads records into a table with a jsonb column. Each batch is
// copied within its own transaction.
type Postgres struct {
	db     *sql.DB
	schema string
	table  string
}

// NewPostgres connects to the database and creates table if it does not
// exist. table can be qualified with a schema (schema.table).
func NewPostgres(ctx context.Context, connection, table string) (*Postgres, error) {
	params, err := connectionParams(connection)
	if err != nil {
		return nil, errors.Wrap(err, "parsing connection")
	}
	db, err := sql.Open("postgres", params)
	if err != nil {
		return nil, errors.Wrap(err, "opening PostgreSQL")
	}
	// check that the connection actually works
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "connecting to PostgreSQL")
	}

	pg := &Postgres{db: db, schema: "public", table: table}
	if parts := strings.SplitN(table, ".", 2); len(parts) == 2 {
		pg.schema, pg.table = parts[0], parts[1]
	}
	if err := pg.createTable(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Printf("[info] Connected to PostgreSQL, copying into %s.%s", pg.schema, pg.table)
	return pg, nil
}

func (pg *Postgres) createTableSQL() string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
		id SERIAL PRIMARY KEY,
		type VARCHAR NOT NULL,
		doc JSONB NOT NULL
	)`, pq.QuoteIdentifier(pg.schema), pq.QuoteIdentifier(pg.table))
}

func (pg *Postgres) createTable(ctx context.Context) error {
	sql := pg.createTableSQL()
	if _, err := pg.db.ExecContext(ctx, sql); err != nil {
		return &SQLError{sql, err}
	}
	return nil
}

func (pg *Postgres) Name() string {
	return "postgresql"
}

func (pg *Postgres) Write(ctx context.Context, records []*element.Record) (err error) {
	if len(records) == 0 {
		return nil
	}
	tx, err := pg.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	copySQL := pq.CopyInSchema(pg.schema, pg.table, "type", "doc")
	stmt, err := tx.PrepareContext(ctx, copySQL)
	if err != nil {
		return &SQLError{copySQL, err}
	}
	for _, rec := range records {
		doc, err := json.Marshal(rec)
		if err != nil {
			stmt.Close()
			return errors.Wrapf(err, "encoding %s", rec.Type)
		}
		if _, err := stmt.ExecContext(ctx, rec.Type, string(doc)); err != nil {
			stmt.Close()
			return &SQLError{copySQL, err}
		}
	}
	// flush COPY buffer
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return &SQLError{copySQL, err}
	}
	if err := stmt.Close(); err != nil {
		return &SQLError{copySQL, err}
	}
	return tx.Commit()
}

func (pg *Postgres) Close() error {
	return pg.db.Close()
}

// connectionParams converts postgres:// and postgis:// URLs to key/value
// parameters.
func connectionParams(connection string) (string, error) {
	if strings.HasPrefix(connection, "postgis://") {
		connection = strings.Replace(connection, "postgis", "postgres", 1)
	}
	params := connection
	if strings.HasPrefix(connection, "postgres://") || strings.HasPrefix(connection, "postgresql://") {
		var err error
		params, err = pq.ParseURL(connection)
		if err != nil {
			return "", err
		}
	}
	return disableDefaultSslOnLocalhost(params), nil
}

// disableDefaultSslOnLocalhost adds sslmode=disable to params
// when host is localhost/127.0.0.1 and the sslmode param and
// PGSSLMODE environment are both not set.
func disableDefaultSslOnLocalhost(params string) string {
	isLocalHost := false
	for _, p := range strings.Fields(params) {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		// pq.ParseURL quotes values
		k, v := kv[0], strings.Trim(kv[1], "'")
		if k == "sslmode" {
			return params
		}
		if k == "host" && (v == "localhost" || v == "127.0.0.1") {
			isLocalHost = true
		}
	}
	if !isLocalHost {
		return params
	}
	if _, ok := os.LookupEnv("PGSSLMODE"); ok {
		return params
	}
	return params + " sslmode=disable"
}
