package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apologystake/stake-server/pkg/config"
)

func TestMemoryConfig(t *testing.T) {
	ctx := context.Background()

	c := NewConfig(nil)
	_, err := c.Get(ctx)
	assert.Equal(t, config.ErrNoValue, err)

	c.SetValue(uint64(16))
	val, err := c.Get(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 16, val)

	c.SetFailing(true)
	_, err = c.Get(ctx)
	assert.Equal(t, errDeveloperInduced, err)

	c.SetFailing(false)
	c.SetValue(nil)
	_, err = c.Get(ctx)
	assert.Equal(t, config.ErrNoValue, err)

	c.Shutdown()
	_, err = c.Get(ctx)
	assert.Equal(t, config.ErrShutdown, err)
}
