package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/trinacria-data/vendorscan/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS vendors (
	id           BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name         TEXT NOT NULL,
	service_type TEXT NOT NULL,
	price_range  TEXT,
	address      TEXT,
	city         TEXT,
	country      TEXT,
	contact      TEXT,
	hours        TEXT,
	picture_url  TEXT,
	website      TEXT,
	instagram    TEXT,
	facebook     TEXT,
	twitter      TEXT,
	linkedin     TEXT,
	youtube      TEXT,
	tiktok       TEXT,
	pinterest    TEXT,
	source       TEXT,
	source_id    TEXT,
	lat          DOUBLE PRECISION,
	lon          DOUBLE PRECISION,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_vendors_name_address
	ON vendors (lower(name), lower(coalesce(address, '')));
CREATE INDEX IF NOT EXISTS idx_vendors_city ON vendors (lower(city));
CREATE INDEX IF NOT EXISTS idx_vendors_service_type ON vendors (service_type);
`

// Migrate creates the vendors table and its indexes.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

const insertVendorSQL = `
INSERT INTO vendors (
	name, service_type, price_range, address, city, country, contact, hours,
	picture_url, website, instagram, facebook, twitter, linkedin, youtube,
	tiktok, pinterest, source, source_id, lat, lon
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
	$16, $17, $18, $19, $20, $21)
RETURNING id`

// InsertVendor inserts one row per call so a mid-run failure keeps all prior
// inserts durable.
func (s *PostgresStore) InsertVendor(ctx context.Context, v *Vendor) error {
	err := s.pool.QueryRow(ctx, insertVendorSQL,
		v.Name, v.ServiceType, v.PriceRange, v.Address, v.City, v.Country,
		v.Contact, v.Hours, v.PictureURL, v.Website, v.Instagram, v.Facebook,
		v.Twitter, v.LinkedIn, v.YouTube, v.TikTok, v.Pinterest,
		v.Source, v.SourceID, v.Lat, v.Lon,
	).Scan(&v.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return eris.Wrap(err, "postgres: insert vendor")
	}
	return nil
}

const vendorColumns = `id, name, service_type, price_range, address, city, country,
	contact, hours, picture_url, website, instagram, facebook, twitter,
	linkedin, youtube, tiktok, pinterest, source, source_id, lat, lon`

func scanVendor(row pgx.Row) (*Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.Name, &v.ServiceType, &v.PriceRange, &v.Address,
		&v.City, &v.Country, &v.Contact, &v.Hours, &v.PictureURL, &v.Website,
		&v.Instagram, &v.Facebook, &v.Twitter, &v.LinkedIn, &v.YouTube,
		&v.TikTok, &v.Pinterest, &v.Source, &v.SourceID, &v.Lat, &v.Lon)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetVendor fetches one vendor by id.
func (s *PostgresStore) GetVendor(ctx context.Context, id int64) (*Vendor, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE id = $1`, id)
	v, err := scanVendor(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get vendor")
	}
	return v, nil
}

// SearchVendors lists vendors matching the filter.
func (s *PostgresStore) SearchVendors(ctx context.Context, f SearchFilter) ([]Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE 1=1`
	var args []any

	add := func(clause, value string) {
		args = append(args, "%"+value+"%")
		query += fmt.Sprintf(" AND %s ILIKE $%d", clause, len(args))
	}
	if f.Name != "" {
		add("name", f.Name)
	}
	if f.ServiceType != "" {
		add("service_type", f.ServiceType)
	}
	if f.City != "" {
		add("city", f.City)
	}

	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search vendors")
	}
	defer rows.Close()

	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan vendor")
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate vendors")
	}
	return out, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
