package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/academyreg/handoff/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesystemStorage_FindUserByID(t *testing.T) {
	fs, err := NewFilesystemStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	user := &models.User{ID: "u1", Username: "jdoe", DisplayName: "Jane Doe", Role: models.RoleStaff}
	require.NoError(t, fs.SaveUser(ctx, user))

	got, err := fs.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, user, got)

	missing, err := fs.FindUserByID(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.NoError(t, fs.Ping(ctx))
}

func TestFilesystemStorage_RejectsTraversal(t *testing.T) {
	base := t.TempDir()
	fs, err := NewFilesystemStorage(base)
	require.NoError(t, err)

	secret := filepath.Join(base, "secret.json")
	require.NoError(t, os.WriteFile(secret, []byte(`{"id":"x","role":"ADMIN"}`), 0644))

	got, err := fs.FindUserByID(context.Background(), "../secret")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFilesystemStorage_CorruptFile(t *testing.T) {
	base := t.TempDir()
	fs, err := NewFilesystemStorage(base)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(base, "users", "bad.json"), []byte("{"), 0644))

	_, err = fs.FindUserByID(context.Background(), "bad")
	assert.Error(t, err)
}

func TestStaticStorage(t *testing.T) {
	data := []byte(`
users:
  - id: u1
    username: jdoe
    name: Jane Doe
    role: STAFF
  - id: u2
    username: tsmith
    name: Tom Smith
    role: TEACHER
`)
	st, err := ParseStaticUsers(data)
	require.NoError(t, err)

	got, err := st.FindUserByID(context.Background(), "u2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Tom Smith", got.DisplayName)
	assert.Equal(t, models.RoleTeacher, got.Role)

	missing, err := st.FindUserByID(context.Background(), "u3")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStaticStorage_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing id":   "users:\n  - username: a\n    role: STAFF\n",
		"bad role":     "users:\n  - id: u1\n    role: JANITOR\n",
		"duplicate id": "users:\n  - id: u1\n    role: STAFF\n  - id: u1\n    role: ADMIN\n",
		"not yaml":     "users: [",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseStaticUsers([]byte(data))
			assert.Error(t, err)
		})
	}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		*(d.(*string)) = r.values[i].(string)
	}
	return nil
}

type fakeQuerier struct {
	row     fakeRow
	lastSQL string
	lastArg any
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.lastSQL = sql
	if len(args) > 0 {
		q.lastArg = args[0]
	}
	return q.row
}

func (q *fakeQuerier) Ping(ctx context.Context) error { return nil }

func TestPostgresStorage_FindUserByID(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{values: []any{"u1", "jdoe", "Jane Doe", "STAFF"}}}
	p := &PostgresStorage{db: q}

	got, err := p.FindUserByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, &models.User{ID: "u1", Username: "jdoe", DisplayName: "Jane Doe", Role: models.RoleStaff}, got)
	assert.Equal(t, findUserQuery, q.lastSQL)
	assert.Equal(t, "u1", q.lastArg)
}

func TestPostgresStorage_NoRows(t *testing.T) {
	p := &PostgresStorage{db: &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}}

	got, err := p.FindUserByID(context.Background(), "gone")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresStorage_QueryError(t *testing.T) {
	p := &PostgresStorage{db: &fakeQuerier{row: fakeRow{err: errors.New("connection reset")}}}

	_, err := p.FindUserByID(context.Background(), "u1")
	assert.Error(t, err)
}
