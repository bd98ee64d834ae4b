package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringStorage_AddIsIdempotent(t *testing.T) {
	s := NewStringStorage()

	id1 := s.Add("storm")
	id2 := s.Add("storm")

	assert.Equal(t, id1, id2)
	assert.NotEqual(t, StringID(0), id1)
	assert.Equal(t, 1, s.Len())
}

func TestStringStorage_EmptyStringIsReserved(t *testing.T) {
	s := NewStringStorage()

	assert.Equal(t, StringID(0), s.Add(""))

	id, ok := s.FindID("")
	assert.True(t, ok)
	assert.Equal(t, StringID(0), id)

	str, err := s.Str(0)
	require.NoError(t, err)
	assert.Equal(t, "", str)
}

func TestStringStorage_UnknownID(t *testing.T) {
	s := NewStringStorage()

	_, err := s.Str(99)
	assert.ErrorIs(t, err, ErrUnknownString)
	assert.Equal(t, "fallback", s.StrDefault(99, "fallback"))
}

func TestStringStorage_FindID(t *testing.T) {
	s := NewStringStorage()
	id := s.Add("Category")

	found, ok := s.FindID("Category")
	require.True(t, ok)
	assert.Equal(t, id, found)

	_, ok = s.FindID("missing")
	assert.False(t, ok)
}

func TestStringStorage_FindRegex(t *testing.T) {
	s := NewStringStorage()
	nn := s.Add("NN")
	nns := s.Add("NNS")
	s.Add("VBZ")
	s.Add("DT")

	ids, err := s.FindRegex("N.*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []StringID{nn, nns}, ids)
}

func TestStringStorage_FindRegexFullMatchOnly(t *testing.T) {
	s := NewStringStorage()
	s.Add("storms")
	storm := s.Add("storm")

	ids, err := s.FindRegex("storm")
	require.NoError(t, err)
	assert.Equal(t, []StringID{storm}, ids)
}

func TestStringStorage_FindRegexInvalidPattern(t *testing.T) {
	s := NewStringStorage()
	s.Add("a")

	_, err := s.FindRegex("[invalid")
	assert.ErrorIs(t, err, ErrInvalidRegex)
}

func TestStringStorage_FindRegexNoPrefix(t *testing.T) {
	s := NewStringStorage()
	abc := s.Add("abc")
	xbc := s.Add("xbc")
	s.Add("ab")

	ids, err := s.FindRegex(".bc")
	require.NoError(t, err)
	assert.ElementsMatch(t, []StringID{abc, xbc}, ids)
}

func TestPossibleMatchRange(t *testing.T) {
	lower, upper, bounded := PossibleMatchRange("storm.*")
	require.True(t, bounded)
	assert.Equal(t, "storm", lower)
	assert.Equal(t, "storn", upper)

	_, _, bounded = PossibleMatchRange(".*")
	assert.False(t, bounded)
}

func TestStringStorage_AvgLength(t *testing.T) {
	s := NewStringStorage()
	s.Add("ab")
	s.Add("abcd")

	assert.InDelta(t, 3.0, s.AvgLength(), 0.001)
}

func TestStringStorage_Clear(t *testing.T) {
	s := NewStringStorage()
	s.Add("x")
	s.Clear()

	assert.Equal(t, 0, s.Len())
	_, ok := s.FindID("x")
	assert.False(t, ok)
}

func TestStringStorage_AddWithID(t *testing.T) {
	s := NewStringStorage()
	s.AddWithID(7, "restored")

	str, err := s.Str(7)
	require.NoError(t, err)
	assert.Equal(t, "restored", str)

	// new IDs continue past the restored one
	next := s.Add("fresh")
	assert.Greater(t, next, StringID(7))
}

func TestStringStorage_EachIsOrderedByValue(t *testing.T) {
	s := NewStringStorage()
	s.Add("b")
	s.Add("a")
	s.Add("c")

	var values []string
	s.Each(func(_ StringID, value string) bool {
		values = append(values, value)
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, values)
}
