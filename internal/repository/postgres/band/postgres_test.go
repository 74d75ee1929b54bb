package band

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	banddomain "gigbook/internal/domain/band"
)

func newMockRepo(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewPostgres(gdb), mock
}

func TestGetBandNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT \* FROM "bands" WHERE id = \$1`).
		WithArgs("missing", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetBand(context.Background(), "missing")
	require.ErrorIs(t, err, banddomain.ErrBandNotFound)
}

func TestListBandsByUserJoinsMemberships(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "name", "owner_id"}).
		AddRow("band-1", "The Band", "owner").
		AddRow("band-2", "Side Project", "other")
	mock.ExpectQuery(`SELECT .* FROM "bands" join band_members on band_members\.band_id = bands\.id WHERE band_members\.user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(rows)

	bands, err := repo.ListBandsByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, bands, 2)
	require.Equal(t, "The Band", bands[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMemberRoleNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "band_members" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateMemberRole(context.Background(), "band-1", "missing", banddomain.RoleAdmin)
	require.ErrorIs(t, err, banddomain.ErrMemberNotFound)
}

func TestDeleteMember(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "band_members" WHERE band_id = \$1 AND user_id = \$2`).
		WithArgs("band-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteMember(context.Background(), "band-1", "user-1"))
}

func TestGetInviteByToken(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows([]string{"id", "band_id", "token", "status"}).
		AddRow("inv-1", "band-1", "token-1", "pending")
	mock.ExpectQuery(`SELECT \* FROM "band_invites" WHERE token = \$1`).
		WithArgs("token-1", 1).
		WillReturnRows(rows)

	invite, err := repo.GetInviteByToken(context.Background(), "token-1")
	require.NoError(t, err)
	require.Equal(t, "band-1", invite.BandID)
	require.Equal(t, banddomain.InviteStatusPending, invite.Status)
}

func TestUpdateInviteStatusNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "band_invites" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.UpdateInviteStatus(context.Background(), "missing", banddomain.InviteStatusCancelled)
	require.ErrorIs(t, err, banddomain.ErrInviteNotFound)
}
