package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS vendors (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
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
	lat          REAL,
	lon          REAL,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_vendors_name_address
	ON vendors (lower(name), lower(coalesce(address, '')));
CREATE INDEX IF NOT EXISTS idx_vendors_city ON vendors (lower(city));
CREATE INDEX IF NOT EXISTS idx_vendors_service_type ON vendors (service_type);
`

// Migrate creates the vendors table and its indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

const sqliteInsertVendorSQL = `
INSERT INTO vendors (
	name, service_type, price_range, address, city, country, contact, hours,
	picture_url, website, instagram, facebook, twitter, linkedin, youtube,
	tiktok, pinterest, source, source_id, lat, lon
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// InsertVendor inserts one row per call.
func (s *SQLiteStore) InsertVendor(ctx context.Context, v *Vendor) error {
	res, err := s.db.ExecContext(ctx, sqliteInsertVendorSQL,
		v.Name, v.ServiceType, v.PriceRange, v.Address, v.City, v.Country,
		v.Contact, v.Hours, v.PictureURL, v.Website, v.Instagram, v.Facebook,
		v.Twitter, v.LinkedIn, v.YouTube, v.TikTok, v.Pinterest,
		v.Source, v.SourceID, v.Lat, v.Lon,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicate
		}
		return eris.Wrap(err, "sqlite: insert vendor")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: last insert id")
	}
	v.ID = id
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteVendor(row scannable) (*Vendor, error) {
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
func (s *SQLiteStore) GetVendor(ctx context.Context, id int64) (*Vendor, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+vendorColumns+` FROM vendors WHERE id = ?`, id)
	v, err := scanSQLiteVendor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get vendor")
	}
	return v, nil
}

// SearchVendors lists vendors matching the filter.
func (s *SQLiteStore) SearchVendors(ctx context.Context, f SearchFilter) ([]Vendor, error) {
	query := `SELECT ` + vendorColumns + ` FROM vendors WHERE 1=1`
	var args []any

	add := func(column, value string) {
		query += fmt.Sprintf(" AND lower(%s) LIKE ?", column)
		args = append(args, "%"+strings.ToLower(value)+"%")
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
		query += " LIMIT ?"
		args = append(args, f.Limit)
	} else if f.Offset > 0 {
		// SQLite requires a LIMIT clause before OFFSET.
		query += " LIMIT -1"
	}
	if f.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search vendors")
	}
	defer rows.Close()

	var out []Vendor
	for rows.Next() {
		v, err := scanSQLiteVendor(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan vendor")
		}
		out = append(out, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate vendors")
	}
	return out, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
