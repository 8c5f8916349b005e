package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	location "wms-core/internal/location/domain"
)

func TestLocationRepositoryFindByPK(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewLocationRepository(db)
	updated := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "area", "aisle", "x", "y", "z", "plc_code", "erp_code", "group_name",
		"infeed_active", "outfeed_active", "plc_state", "updated_at"}).
		AddRow("L-1", "EXT", "0000", "0001", "0000", "0000", "PLC-1", nil, "ZONE-A", true, false, 4, updated)
	mock.ExpectQuery(regexp.QuoteMeta("FROM locations")).
		WithArgs("EXT", "0000", "0001", "0000", "0000").
		WillReturnRows(rows)

	loc, err := repo.FindByPK(context.Background(), location.LocationPK{Area: "EXT", Aisle: "0000", X: "0001", Y: "0000", Z: "0000"})
	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "L-1", loc.ID)
	assert.Equal(t, "PLC-1", loc.PLCCode)
	assert.Empty(t, loc.ERPCode)
	assert.True(t, loc.InfeedActive)
	assert.Equal(t, 4, loc.PLCState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLocationRepositoryMissingReturnsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM locations").WithArgs("L-404").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	loc, err := NewLocationRepository(db).Get(context.Background(), "L-404")
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestLocationRepositorySaveUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO locations")).
		WithArgs("L-1", "EXT", "0000", "0001", "0000", "0000", "PLC-1", nil, "ZONE-A", true, true, 0, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewLocationRepository(db).Save(context.Background(), &location.Location{
		ID:            "L-1",
		PK:            location.LocationPK{Area: "EXT", Aisle: "0000", X: "0001", Y: "0000", Z: "0000"},
		PLCCode:       "PLC-1",
		GroupName:     "ZONE-A",
		InfeedActive:  true,
		OutfeedActive: true,
		UpdatedAt:     at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryGetAndSave(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewGroupRepository(db)
	at := time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM location_groups").WithArgs("ZONE-A").
		WillReturnRows(sqlmock.NewRows([]string{"name", "parent_name", "group_state_in", "group_state_out", "operation_mode", "updated_at"}).
			AddRow("ZONE-A", "WAREHOUSE", "AVAILABLE", "NOT_AVAILABLE", "BLOCKED", at))

	group, err := repo.Get(context.Background(), "ZONE-A")
	require.NoError(t, err)
	require.NotNil(t, group)
	assert.Equal(t, "WAREHOUSE", group.ParentName)
	assert.True(t, group.IsInfeedAllowed())
	assert.False(t, group.IsOutfeedAllowed())
	assert.Equal(t, location.ModeBlocked, group.OperationMode)

	mock.ExpectExec("INSERT INTO location_groups").
		WithArgs("ZONE-A", "WAREHOUSE", "AVAILABLE", "NOT_AVAILABLE", "BLOCKED", at).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Save(context.Background(), group))
	require.NoError(t, mock.ExpectationsWereMet())
}
