package syncstate

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomProgress(rng *rand.Rand) DayProgress {
	p := NewDayProgress()
	for i := 0; i < rng.Intn(8); i++ {
		p.Singles["s"+strconv.Itoa(rng.Intn(10))] = struct{}{}
	}
	for i := 0; i < rng.Intn(8); i++ {
		p.Repeatables["r"+strconv.Itoa(rng.Intn(10))] = int64(1 + rng.Intn(20))
	}
	return p
}

func TestMergeUnionAndMax(t *testing.T) {
	a := DayProgress{
		Singles:     NewStringSet("morning", "evening"),
		Repeatables: map[string]int64{"beads": 3, "chain/ps:12": 1},
	}
	b := DayProgress{
		Singles:     NewStringSet("evening", "noon"),
		Repeatables: map[string]int64{"beads": 5},
	}
	m := Merge(a, b)
	require.ElementsMatch(t, []string{"evening", "morning", "noon"}, m.Singles.Items())
	require.Equal(t, int64(5), m.Repeatables["beads"])
	require.Equal(t, int64(1), m.Repeatables["chain/ps:12"])
}

func TestMergeCommutative(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		a, b := randomProgress(rng), randomProgress(rng)
		require.True(t, Equal(Merge(a, b), Merge(b, a)), "merge must be commutative")
	}
}

func TestMergeAssociative(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 200; i++ {
		a, b, c := randomProgress(rng), randomProgress(rng), randomProgress(rng)
		left := Merge(Merge(a, b), c)
		right := Merge(a, Merge(b, c))
		require.True(t, Equal(left, right), "merge must be associative")
	}
}

func TestMergeIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		a := randomProgress(rng)
		require.True(t, Equal(Merge(a, a), a), "merge must be idempotent")
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	a := DayProgress{Singles: NewStringSet("x"), Repeatables: map[string]int64{"r": 1}}
	b := DayProgress{Singles: NewStringSet("y"), Repeatables: map[string]int64{"r": 9}}
	_ = Merge(a, b)
	require.Equal(t, int64(1), a.Repeatables["r"])
	require.False(t, a.Singles.Has("y"))
	require.False(t, b.Singles.Has("x"))
}

func TestStringSetJSONRoundTrip(t *testing.T) {
	s := NewStringSet("b", "a", "c")
	raw, err := s.MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t, `["a","b","c"]`, string(raw))

	var back StringSet
	require.NoError(t, back.UnmarshalJSON(raw))
	require.True(t, Equal(DayProgress{Singles: s, Repeatables: map[string]int64{}},
		DayProgress{Singles: back, Repeatables: map[string]int64{}}))
}
