package dbcontainer

import (
	"testing"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

func buildRequest(t *testing.T, opts Options) testcontainers.GenericContainerRequest {
	t.Helper()
	var req testcontainers.GenericContainerRequest
	for _, c := range customizers(opts.withDefaults()) {
		require.NoError(t, c.Customize(&req))
	}
	return req
}

func TestCustomizers_Defaults(t *testing.T) {
	req := buildRequest(t, Options{})

	assert.Equal(t, "mysql", req.Env["MYSQL_ROOT_PASSWORD"])
	assert.Equal(t, "spotify", req.Env["MYSQL_DATABASE"])
	assert.Contains(t, req.ExposedPorts, "3306/tcp")
	assert.NotNil(t, req.WaitingFor)

	require.NotNil(t, req.HostConfigModifier)
	var hc container.HostConfig
	req.HostConfigModifier(&hc)
	assert.Equal(t, []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "3306"}}, hc.PortBindings[nat.Port("3306/tcp")])
}

func TestCustomizers_CustomPortAndCredentials(t *testing.T) {
	req := buildRequest(t, Options{RootPassword: "s3cret", Database: "music", HostPort: 13306})

	assert.Equal(t, "s3cret", req.Env["MYSQL_ROOT_PASSWORD"])
	assert.Equal(t, "music", req.Env["MYSQL_DATABASE"])

	var hc container.HostConfig
	req.HostConfigModifier(&hc)
	assert.Equal(t, "13306", hc.PortBindings[nat.Port("3306/tcp")][0].HostPort)
}

func TestCustomizers_RandomPortSkipsBinding(t *testing.T) {
	req := buildRequest(t, Options{RandomPort: true})
	assert.Nil(t, req.HostConfigModifier)
}

func TestMySQL_DSNAndConnParams(t *testing.T) {
	m := &MySQL{Host: "127.0.0.1", Port: 3306, Password: "mysql", Database: "spotify"}

	cfg, err := mysql.ParseDSN(m.DSN())
	require.NoError(t, err)
	assert.Equal(t, "root", cfg.User)
	assert.Equal(t, "mysql", cfg.Passwd)
	assert.Equal(t, "127.0.0.1:3306", cfg.Addr)
	assert.Equal(t, "spotify", cfg.DBName)
	assert.True(t, cfg.ParseTime)

	p := m.ConnParams()
	assert.Equal(t, "root", p.User)
	assert.Equal(t, 3306, p.Port)
}
