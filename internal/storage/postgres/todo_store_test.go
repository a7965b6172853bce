package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/todo-progress/internal/todo"
)

var columns = []string{"id", "title", "description", "completed", "file_url"}

func newMockStore(t *testing.T) (*TodoStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock, "")
	require.NoError(t, err)
	return store, mock
}

func TestNewWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewWithPool(nil, "todos")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	_, err = NewWithPool(mock, "todos; DROP TABLE x")
	require.Error(t, err)
}

func TestNewRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.Error(t, err)
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS todos").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInsertsRow(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	td := todo.Todo{ID: "id-1", Title: "Buy milk", Description: "2l", Completed: false}
	mock.ExpectExec("INSERT INTO todos").
		WithArgs(td.ID, td.Title, td.Description, td.Completed, td.FileURL).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Create(context.Background(), td))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDuplicate(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO todos").
		WithArgs("id-1", "t", "", false, "").
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	err := store.Create(context.Background(), todo.Todo{ID: "id-1", Title: "t"})
	require.ErrorIs(t, err, todo.ErrAlreadyExists)
}

func TestGet(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM todos WHERE id").
		WithArgs("id-1").
		WillReturnRows(pgxmock.NewRows(columns).AddRow("id-1", "Buy milk", "", true, "file:///tmp/x"))

	got, err := store.Get(context.Background(), "id-1")
	require.NoError(t, err)
	assert.Equal(t, todo.Todo{ID: "id-1", Title: "Buy milk", Completed: true, FileURL: "file:///tmp/x"}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM todos WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, todo.ErrNotFound)
}

func TestListOrdersBySequence(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("ORDER BY seq").
		WillReturnRows(pgxmock.NewRows(columns).
			AddRow("b", "first", "", false, "").
			AddRow("a", "second", "d", true, ""))

	got, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []todo.Todo{
		{ID: "b", Title: "first"},
		{ID: "a", Title: "second", Description: "d", Completed: true},
	}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListEmpty(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectQuery("ORDER BY seq").WillReturnRows(pgxmock.NewRows(columns))

	got, err := store.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestUpdate(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	td := todo.Todo{ID: "id-1", Title: "new", Completed: true}
	mock.ExpectExec("UPDATE todos").
		WithArgs(td.ID, td.Title, td.Description, td.Completed, td.FileURL).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE todos").
		WithArgs("gone", "", "", false, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, store.Update(context.Background(), td))
	require.ErrorIs(t, store.Update(context.Background(), todo.Todo{ID: "gone"}), todo.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete(t *testing.T) {
	t.Parallel()
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM todos").
		WithArgs("id-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM todos").
		WithArgs("gone").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec("DELETE FROM todos").
		WithArgs("broken").
		WillReturnError(errors.New("connection reset"))

	require.NoError(t, store.Delete(context.Background(), "id-1"))
	require.ErrorIs(t, store.Delete(context.Background(), "gone"), todo.ErrNotFound)
	require.Error(t, store.Delete(context.Background(), "broken"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()
	store, err := NewWithPool(mock, "todos")
	require.NoError(t, err)

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("no route to host"))

	require.NoError(t, store.Ping(context.Background()))
	require.ErrorContains(t, store.Ping(context.Background()), "no route to host")
	require.NoError(t, mock.ExpectationsWereMet())
}
