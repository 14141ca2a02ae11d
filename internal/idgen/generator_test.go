package idgen

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStrategiesGenerateUniqueIDs(t *testing.T) {
	for _, strategy := range []string{StrategyUUID, StrategyULID, StrategyKSUID, StrategyNanoID, StrategyCUID2} {
		t.Run(strategy, func(t *testing.T) {
			gen, err := New(strategy)
			require.NoError(t, err)
			assert.Equal(t, strategy, gen.Name())

			seen := make(map[string]struct{}, 500)
			for i := 0; i < 500; i++ {
				id, err := gen.Generate()
				require.NoError(t, err)
				require.NotEmpty(t, id)
				_, dup := seen[id]
				require.False(t, dup, "duplicate id %s", id)
				seen[id] = struct{}{}
			}
		})
	}
}

func TestDefaultStrategyIsUUID(t *testing.T) {
	gen, err := New("")
	require.NoError(t, err)
	assert.Equal(t, StrategyUUID, gen.Name())
}

func TestUnknownStrategy(t *testing.T) {
	_, err := New("snowflake")
	assert.Error(t, err)
}

func TestULIDsSortInGenerationOrder(t *testing.T) {
	gen := NewULIDGenerator()
	ids := make([]string, 50)
	for i := range ids {
		id, err := gen.Generate()
		require.NoError(t, err)
		ids[i] = id
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed{Generator: NewUUIDGenerator(), Prefix: "tmp_"}
	id, err := gen.Generate()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "tmp_"))
	assert.Equal(t, StrategyUUID, gen.Name())
}

func TestNanoIDBounds(t *testing.T) {
	_, err := NewNanoIDGenerator(0, DefaultNanoIDAlphabet)
	assert.Error(t, err)
	_, err = NewNanoIDGenerator(10, "a")
	assert.Error(t, err)
}
