package serv

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadInConfigWithEnvVars(t *testing.T) {
	devConfig := "app_name: dev-app\ndatabase:\n  host: dev-host\n  dbname: devdb\n"

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/config/dev.yml", []byte(devConfig), 0o666))

	c, err := ReadInConfigFS("/config/dev.yml", fs)
	require.NoError(t, err)
	assert.Equal(t, "dev-app", c.AppName)
	assert.Equal(t, "devdb", c.DB.DBName)
	assert.Equal(t, "/config", c.ConfigPath)

	t.Setenv("BQ_DATABASE_DBNAME", "envdb")
	t.Setenv("BQ_DATABASE_PORT", "27018")

	c, err = ReadInConfigFS("/config/dev.yml", fs)
	require.NoError(t, err)
	assert.Equal(t, "envdb", c.DB.DBName)
	assert.EqualValues(t, 27018, c.DB.Port)
	assert.Equal(t, "dev-host", c.DB.Host)
}

func TestReadInConfigInherits(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/config/dev.yml", []byte(`
app_name: base
log_level: debug
collections:
  - name: users
    columns:
      - {name: email, path: contact.email, type: string}
`), 0o666))
	require.NoError(t, afero.WriteFile(fs, "/config/prod.yml", []byte(`
inherits: dev
app_name: prod-app
production: true
`), 0o666))

	c, err := ReadInConfigFS("/config/prod.yml", fs)
	require.NoError(t, err)
	assert.Equal(t, "prod-app", c.AppName)
	assert.Equal(t, "debug", c.LogLevel)
	assert.True(t, c.Production)
	require.Len(t, c.Collections, 1)
	assert.Equal(t, "contact.email", c.Collections[0].Columns[0].Path)
	assert.True(t, c.ShouldUseJSONLogs())
}

func TestReadInConfigNestedInherits(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/config/a.yml", []byte("inherits: b\n"), 0o666))
	require.NoError(t, afero.WriteFile(fs, "/config/b.yml", []byte("inherits: c\n"), 0o666))

	_, err := ReadInConfigFS("/config/a.yml", fs)
	assert.ErrorContains(t, err, "cannot itself inherit")
}

func TestNewConfigDefaults(t *testing.T) {
	c, err := NewConfig(`
id_generator: ksuid
`, "")
	require.NoError(t, err)

	assert.Equal(t, "bsonq", c.AppName)
	assert.Equal(t, "ksuid", c.IDGenerator)
	assert.Equal(t, "localhost", c.DB.Host)
	assert.EqualValues(t, 27017, c.DB.Port)
	assert.EqualValues(t, 10, c.DB.PoolSize)
	assert.Equal(t, 10*time.Second, c.DB.ConnectTimeout)
	assert.Equal(t, 5*time.Second, c.DB.PingTimeout)
	assert.Equal(t, 500, c.Bulk.BatchSize)
	assert.True(t, c.Bulk.Ordered)
	assert.Equal(t, 100, c.Introspect.SampleSize)
	assert.True(t, c.Introspect.IncludeValidators)
	assert.False(t, c.ShouldUseJSONLogs())
}

func TestNewConfigJSON(t *testing.T) {
	c, err := NewConfig(`{"log_format": "json", "database": {"dbname": "app"}, "bulk": {"ordered": false}}`, "json")
	require.NoError(t, err)
	assert.True(t, c.ShouldUseJSONLogs())
	assert.Equal(t, "app", c.DB.DBName)
	assert.False(t, c.Bulk.Ordered)
}

func TestAbsolutePath(t *testing.T) {
	c := &Config{}
	assert.Equal(t, "q.yml", c.AbsolutePath("q.yml"))

	c.ConfigPath = "/etc/bsonq"
	assert.Equal(t, "/etc/bsonq/q.yml", c.AbsolutePath("q.yml"))
	assert.Equal(t, "/tmp/q.yml", c.AbsolutePath("/tmp/q.yml"))
}

func TestGetConfigName(t *testing.T) {
	tests := map[string]string{
		"":            "dev",
		"Production":  "prod",
		"stage":       "stage",
		"testing":     "test",
		"integration": "integration",
	}
	for env, want := range tests {
		t.Setenv("GO_ENV", env)
		assert.Equal(t, want, GetConfigName(), env)
	}
}
