package docstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRef(t *testing.T) {
	t.Parallel()

	hall := Doc("diningHalls", "ford-dining-court")
	dish := hall.Sub("dishes", "scrambled-eggs")

	require.Equal(t, "diningHalls/ford-dining-court", hall.Path())
	require.Equal(t, "ford-dining-court", hall.ID())
	require.Equal(t, "diningHalls", hall.Collection())
	require.Equal(t, "diningHalls/ford-dining-court/dishes/scrambled-eggs", dish.String())
	require.Equal(t, "scrambled-eggs", dish.ID())
	require.Equal(t, "diningHalls/ford-dining-court/dishes", dish.Collection())
}

func TestIsQuota(t *testing.T) {
	t.Parallel()

	require.False(t, IsQuota(nil))
	require.False(t, IsQuota(errors.New("deadline exceeded")))
	require.True(t, IsQuota(fmt.Errorf("commit: %w", ErrQuotaExceeded)))
	require.True(t, IsQuota(errors.New("rpc error: code = ResourceExhausted desc = Quota exceeded.")))
	require.True(t, IsQuota(errors.New("HTTP 429 Too Many Requests")))
}
