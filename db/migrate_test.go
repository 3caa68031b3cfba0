package db

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateRunsEmbeddedSchema(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT name FROM schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("001_schema.sql").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), conn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateSkipsAppliedFiles(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT name FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("001_schema.sql"))

	require.NoError(t, Migrate(context.Background(), conn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRollsBackFailingFile(t *testing.T) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer conn.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT name FROM schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS users").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	err = Migrate(context.Background(), conn)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_schema.sql")
	assert.NoError(t, mock.ExpectationsWereMet(), "the failed file must not be recorded")
}

func TestSchemaDeclaresBracketInvariants(t *testing.T) {
	script, err := migrationsFS.ReadFile("migrations/001_schema.sql")
	require.NoError(t, err)

	for _, fragment := range []string{
		"participants_one_winner_idx",
		"matches_group_pair_idx",
		"groupings_group_id_participant_id_key",
		"CHECK (participants_limit BETWEEN 2 AND 96)",
	} {
		assert.Contains(t, string(script), fragment)
	}
}
