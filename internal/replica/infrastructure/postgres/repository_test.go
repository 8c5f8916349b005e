package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	replica "wms-core/internal/replica/domain"
)

var replicaColumns = []string{"application_name", "state", "request_removal_endpoint", "removal_endpoint", "registered_at", "unregistered_at"}

func TestRepositoryUpsertUsesApplicationNameConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, time.July, 1, 8, 0, 0, 0, time.UTC)
	repo := NewRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (application_name) DO UPDATE")).
		WithArgs("pick-ui", "REGISTERED", "http://a/request", "http://a/remove", at, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), &replica.Replica{
		ApplicationName:        "pick-ui",
		State:                  replica.StateRegistered,
		RequestRemovalEndpoint: "http://a/request",
		RemovalEndpoint:        "http://a/remove",
		RegisteredAt:           &at,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetAndList(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2026, time.July, 1, 8, 0, 0, 0, time.UTC)
	repo := NewRepository(db)

	mock.ExpectQuery("FROM replicas").WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	missing, err := repo.Get(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)

	mock.ExpectQuery("WHERE state = \\$1").WithArgs("REGISTERED").
		WillReturnRows(sqlmock.NewRows(replicaColumns).
			AddRow("pick-ui", "REGISTERED", "http://a/request", "http://a/remove", at, nil))
	list, err := repo.ListRegistered(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Registered())
	require.NotNil(t, list[0].RegisteredAt)
	assert.Nil(t, list[0].UnregisteredAt)
	require.NoError(t, mock.ExpectationsWereMet())
}
