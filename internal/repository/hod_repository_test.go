package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestHODRepositoryFindMatchTreatsNullYearsAsAllYears(t *testing.T) {
	db, mock, cleanup := newExitRequestRepoMock(t)
	defer cleanup()

	repo := NewHODRepository(db)
	// The years column may be NULL; the match must coalesce it so a HOD
	// without an explicit year list still covers every year-level.
	mock.ExpectQuery(regexp.QuoteMeta("(cardinality(COALESCE(years, '{}')) = 0 OR $3 = ANY(years))")).
		WithArgs("KMIT", "CSE", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "phone", "college", "course", "years", "created_at"}).
			AddRow("hod-1", "Dr. Rao", "9000000000", "KMIT", "CSE", nil, time.Now()))

	hod, err := repo.FindMatch(context.Background(), nil, "KMIT", "CSE", 1)
	require.NoError(t, err)
	require.Equal(t, "hod-1", hod.ID)
	require.True(t, hod.OverseesYear(3))
	require.NoError(t, mock.ExpectationsWereMet())
}
