package storage

import (
	"testing"

	"github.com/dmitrijs2005/passkeeper/internal/common"
	"github.com/dmitrijs2005/passkeeper/internal/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCredentialBackend(t *testing.T) {
	tests := []struct {
		in      string
		want    CredentialBackend
		wantErr bool
	}{
		{in: "postgresql", want: CredentialPostgres},
		{in: " SQLite ", want: CredentialSQLite},
		{in: "mysql", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCredentialBackend(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, common.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRequestBackend(t *testing.T) {
	got, err := ParseRequestBackend("memory")
	require.NoError(t, err)
	assert.Equal(t, RequestMemory, got)

	got, err = ParseRequestBackend("Redis")
	require.NoError(t, err)
	assert.Equal(t, RequestRedis, got)

	_, err = ParseRequestBackend("memcached")
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestCredentialBackend_Dialect(t *testing.T) {
	assert.Equal(t, dbx.Postgres, CredentialPostgres.Dialect())
	assert.Equal(t, dbx.SQLite, CredentialSQLite.Dialect())
}
