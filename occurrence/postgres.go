package occurrence

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of *pgx.Conn and *pgxpool.Pool used by PostgresSource.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresTable names the occurrence table and its columns.
type PostgresTable struct {
	Schema  string
	Table   string
	Columns Columns
}

// DefaultPostgresTable returns the layout of the OBIS occurrence table.
func DefaultPostgresTable() PostgresTable {
	return PostgresTable{
		Table:   "occurrence",
		Columns: DefaultColumns(),
	}
}

// PostgresSource streams occurrence rows with a single projection query.
type PostgresSource struct {
	db    Querier
	table PostgresTable
}

// NewPostgresSource creates a source reading table through db.
func NewPostgresSource(db Querier, table PostgresTable) (*PostgresSource, error) {
	if db == nil {
		return nil, errors.New("occurrence: nil querier")
	}
	if table.Table == "" {
		return nil, errors.New("occurrence: empty table name")
	}
	for _, c := range table.Columns.names() {
		if c == "" {
			return nil, fmt.Errorf("%w: empty column name", ErrMissingColumn)
		}
	}
	return &PostgresSource{db: db, table: table}, nil
}

// Query returns the projection query. Identifiers are quoted.
func (s *PostgresSource) Query() string {
	c := s.table.Columns
	tbl := pgx.Identifier{s.table.Table}
	if s.table.Schema != "" {
		tbl = pgx.Identifier{s.table.Schema, s.table.Table}
	}
	return fmt.Sprintf("SELECT %s, %s, %s, %s, %s FROM %s",
		pgx.Identifier{c.DatasetID}.Sanitize(),
		pgx.Identifier{c.Longitude}.Sanitize(),
		pgx.Identifier{c.Latitude}.Sanitize(),
		pgx.Identifier{c.SpeciesID}.Sanitize(),
		pgx.Identifier{c.Year}.Sanitize(),
		tbl.Sanitize(),
	)
}

// Scan implements Source.
func (s *PostgresSource) Scan(ctx context.Context, fn func(Record) error) error {
	rows, err := s.db.Query(ctx, s.Query())
	if err != nil {
		return fmt.Errorf("occurrence: query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			dataset  *string
			lon, lat *float64
			species  *int64
			year     *int64
		)
		if err := rows.Scan(&dataset, &lon, &lat, &species, &year); err != nil {
			return fmt.Errorf("occurrence: scan: %w", err)
		}
		if dataset == nil || species == nil {
			continue
		}

		rec := Record{
			DatasetID: *dataset,
			Longitude: orNaN(lon),
			Latitude:  orNaN(lat),
			SpeciesID: *species,
		}
		if year != nil {
			rec = rec.WithYear(int(*year))
		}

		if err := fn(rec); err != nil {
			rows.Close()
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return rows.Err()
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
