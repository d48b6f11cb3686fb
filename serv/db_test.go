package serv

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnString(t *testing.T) {
	c := &Config{}
	assert.Equal(t, "mongodb://localhost:27017", connString(c))

	c.DB = Database{Host: "db", Port: 27018, User: "app", Password: "p@ss"}
	assert.Equal(t, "mongodb://app:p%40ss@db:27018", connString(c))

	c.DB.ConnString = "mongodb+srv://cluster.example.com"
	assert.Equal(t, "mongodb+srv://cluster.example.com", connString(c))
}

func TestClientOptions(t *testing.T) {
	c, err := NewConfig("app_name: api\ndatabase: {pool_size: 25}\n", "")
	require.NoError(t, err)

	opts, err := clientOptions(c, afero.NewMemMapFs())
	require.NoError(t, err)
	require.NotNil(t, opts.AppName)
	assert.Equal(t, "api", *opts.AppName)
	require.NotNil(t, opts.MaxPoolSize)
	assert.EqualValues(t, 25, *opts.MaxPoolSize)
	assert.Nil(t, opts.TLSConfig)
}

func TestTLSConfigErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := &Config{}
	c.DB.EnableTLS = true

	_, err := clientOptions(c, fs)
	assert.ErrorContains(t, err, "server_name is required")

	c.DB.ServerName = "db"
	_, err = tlsConfig(c, fs)
	assert.ErrorContains(t, err, "server_cert is required")

	c.DB.ServerCert = "certs/ca.pem"
	_, err = tlsConfig(c, fs)
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "certs/ca.pem", []byte("not a cert"), 0o600))
	_, err = tlsConfig(c, fs)
	assert.ErrorContains(t, err, "failed to append pem")
}

func TestReadPEM(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := &Config{}
	c.ConfigPath = "/app"
	require.NoError(t, afero.WriteFile(fs, "/app/ca.pem", []byte("file"), 0o600))

	b, err := readPEM(c, fs, "ca.pem")
	require.NoError(t, err)
	assert.Equal(t, "file", string(b))

	b, err = readPEM(c, fs, `-----BEGIN CERTIFICATE-----\nabc`)
	require.NoError(t, err)
	assert.Equal(t, "-----BEGIN CERTIFICATE-----\nabc", string(b))
}
