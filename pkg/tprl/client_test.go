package tprl

import (
	"testing"

	"github.com/phdev/Final-Assignment-Template/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
)

func TestOptions(t *testing.T) {
	opts := Options(config.Temporal{})
	assert.Equal(t, client.DefaultHostPort, opts.HostPort)
	assert.Equal(t, client.DefaultNamespace, opts.Namespace)
	assert.NotNil(t, opts.Logger)

	opts = Options(config.Temporal{Address: "temporal:7233", Namespace: "agents"})
	assert.Equal(t, "temporal:7233", opts.HostPort)
	assert.Equal(t, "agents", opts.Namespace)
}

func TestNewClientIsLazy(t *testing.T) {
	cl, err := NewClient(config.Temporal{Address: "127.0.0.1:1"})
	require.NoError(t, err)
	require.NotNil(t, cl)
}
