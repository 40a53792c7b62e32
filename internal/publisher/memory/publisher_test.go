package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dining-menu-sync/internal/menu"
)

func TestPublisherStoresReports(t *testing.T) {
	t.Parallel()
	pub := New()
	id, err := pub.Publish(context.Background(), "menus", menu.RunReport{RunID: "r1", Observations: 3})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id)
	id, err = pub.Publish(context.Background(), "retail", menu.RunReport{RunID: "r2", Aborted: true})
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "menus", msgs[0].Topic)
	report, ok := msgs[1].Payload.(menu.RunReport)
	require.True(t, ok)
	assert.True(t, report.Aborted)
}

func TestPublisherInjectedError(t *testing.T) {
	t.Parallel()
	pub := New()
	pub.Err = assert.AnError
	_, err := pub.Publish(context.Background(), "menus", menu.RunReport{})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, pub.Messages())
}
