package option

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuerySortByWhitelist(t *testing.T) {
	require.Equal(t, "created_at", QuerySortBy{}.column())
	require.Equal(t, "created_at", QuerySortBy{SortBy: "amount; DROP TABLE users"}.column())
	require.Equal(t, "id", QuerySortBy{SortBy: "id", Allow: map[string]bool{"id": true}}.column())

	require.Equal(t, "DESC", QuerySortBy{}.direction())
	require.Equal(t, "ASC", QuerySortBy{OrderBy: "asc"}.direction())
}
