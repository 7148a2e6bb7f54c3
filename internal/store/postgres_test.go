package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_InsertVendor(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO vendors`).
		WithArgs("Villa Igiea", "venues", "Unknown", "Via Belmonte 43", "Palermo",
			"Italy", "+3909112345", "", "", "https://example.com/villa",
			"", "", "", "", "", "", "", "yelp", "villa-igiea",
			(*float64)(nil), (*float64)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	v := Vendor{
		Name: "Villa Igiea", ServiceType: "venues", PriceRange: "Unknown",
		Address: "Via Belmonte 43", City: "Palermo", Country: "Italy",
		Contact: "+3909112345", Website: "https://example.com/villa",
		Source: "yelp", SourceID: "villa-igiea",
	}
	require.NoError(t, s.InsertVendor(context.Background(), &v))
	assert.Equal(t, int64(7), v.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertVendor_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO vendors`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_vendors_name_address"})

	v := Vendor{Name: "Villa Igiea", ServiceType: "venues"}
	err := s.InsertVendor(context.Background(), &v)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetVendor_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM vendors WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetVendor(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SearchVendors_Filters(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "name", "service_type", "price_range", "address", "city",
		"country", "contact", "hours", "picture_url", "website", "instagram",
		"facebook", "twitter", "linkedin", "youtube", "tiktok", "pinterest",
		"source", "source_id", "lat", "lon",
	}).AddRow(int64(1), "Fioreria Etna", "florists", "Unknown", "", "Catania",
		"Italy", "", "", "", "", "", "", "", "", "", "", "",
		"osm", "node/1", (*float64)(nil), (*float64)(nil))

	mock.ExpectQuery(`SELECT .+ FROM vendors WHERE 1=1 AND name ILIKE \$1 AND city ILIKE \$2 ORDER BY id DESC LIMIT \$3`).
		WithArgs("%fioreria%", "%catania%", 20).
		WillReturnRows(rows)

	got, err := s.SearchVendors(context.Background(), SearchFilter{
		Name: "fioreria", City: "catania", Limit: 20,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Fioreria Etna", got[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS vendors`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
