package datawarehouse

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/straye-as/measure-api/internal/config"
	"go.uber.org/zap"
)

func TestBuildConnectionString(t *testing.T) {
	raw := BuildConnectionString(&config.DataWarehouseConfig{
		URL:      "dw.example.net/erp",
		User:     "reader",
		Password: "p@ss",
	})

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "sqlserver", u.Scheme)
	assert.Equal(t, "dw.example.net:1433", u.Host)
	assert.Equal(t, "reader", u.User.Username())
	pw, _ := u.User.Password()
	assert.Equal(t, "p@ss", pw)
	assert.Equal(t, "erp", u.Query().Get("database"))
	assert.Equal(t, "true", u.Query().Get("encrypt"))
}

func TestBuildConnectionString_KeepsPort(t *testing.T) {
	raw := BuildConnectionString(&config.DataWarehouseConfig{URL: "10.0.0.4:14330", User: "u", Password: "p"})
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.4:14330", u.Host)
	assert.Empty(t, u.Query().Get("database"))
}

func TestNewClient_DisabledReturnsNil(t *testing.T) {
	c, err := NewClient(&config.DataWarehouseConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c)

	c, err = NewClient(&config.DataWarehouseConfig{Enabled: true, URL: "x"}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.False(t, c.IsEnabled())
	assert.NoError(t, c.Close())
	assert.Equal(t, "disabled", c.HealthCheck(context.Background()).Status)

	_, err := c.GetContractInvoicedAmount(context.Background(), "K-1")
	assert.ErrorIs(t, err, ErrDisabled)
}
