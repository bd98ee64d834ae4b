package graph

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAnnoStorage(t *testing.T) (*StringStorage, *NodeAnnoStorage) {
	t.Helper()
	strings := NewStringStorage()
	return strings, NewNodeAnnoStorage(strings)
}

func TestNodeAnnoStorage_AddAndGet(t *testing.T) {
	strings, annos := testAnnoStorage(t)

	name := strings.Add("pos")
	ns := strings.Add("tiger")
	value := strings.Add("NN")
	annos.Add(1, Annotation{Name: name, NS: ns, Value: value})

	anno, ok := annos.Get(1, ns, name)
	require.True(t, ok)
	assert.Equal(t, value, anno.Value)

	_, ok = annos.Get(2, ns, name)
	assert.False(t, ok)
}

func TestNodeAnnoStorage_OneValuePerKey(t *testing.T) {
	strings, annos := testAnnoStorage(t)

	name := strings.Add("pos")
	ns := strings.Add("tiger")
	annos.Add(1, Annotation{Name: name, NS: ns, Value: strings.Add("NN")})
	annos.Add(1, Annotation{Name: name, NS: ns, Value: strings.Add("VBZ")})

	all := annos.GetAll(1)
	require.Len(t, all, 1)
	vbz, _ := strings.FindID("VBZ")
	assert.Equal(t, vbz, all[0].Value)
	assert.Equal(t, 1, annos.KeyCount(AnnotationKey{Name: name, NS: ns}))
}

func TestNodeAnnoStorage_Delete(t *testing.T) {
	strings, annos := testAnnoStorage(t)

	name := strings.Add("pos")
	ns := strings.Add("tiger")
	key := AnnotationKey{Name: name, NS: ns}
	annos.Add(1, Annotation{Name: name, NS: ns, Value: strings.Add("NN")})

	annos.Delete(1, key)

	_, ok := annos.Get(1, ns, name)
	assert.False(t, ok)
	// count dropping to zero removes the key entirely
	assert.Empty(t, annos.Keys())
}

func TestNodeAnnoStorage_ForwardAndInverseStayInSync(t *testing.T) {
	strings, annos := testAnnoStorage(t)

	name := strings.Add("pos")
	ns := strings.Add("tiger")
	nn := strings.Add("NN")
	for node := NodeID(1); node <= 5; node++ {
		annos.Add(node, Annotation{Name: name, NS: ns, Value: nn})
	}

	var inverseNodes []NodeID
	anno := Annotation{Name: name, NS: ns, Value: nn}
	annos.EachInRange(anno, anno, func(_ Annotation, node NodeID) bool {
		inverseNodes = append(inverseNodes, node)
		return true
	})
	assert.Equal(t, []NodeID{1, 2, 3, 4, 5}, inverseNodes)
}

func TestNodeAnnoStorage_NextFreeID(t *testing.T) {
	strings, annos := testAnnoStorage(t)

	assert.Equal(t, NodeID(0), annos.NextFreeID())

	annos.Add(41, Annotation{Name: strings.Add("a"), NS: strings.Add("x"), Value: strings.Add("v")})
	assert.Equal(t, NodeID(42), annos.NextFreeID())
}

func TestNodeAnnoStorage_GuessMaxCountWithoutStatistics(t *testing.T) {
	strings, annos := testAnnoStorage(t)
	annos.Add(1, Annotation{Name: strings.Add("pos"), NS: strings.Add("tiger"), Value: strings.Add("NN")})

	assert.False(t, annos.HasStatistics())
	assert.Equal(t, int64(-1), annos.GuessMaxCount("pos", "NN"))
}

func TestNodeAnnoStorage_GuessMaxCountEstimatorSanity(t *testing.T) {
	strings, annos := testAnnoStorage(t)

	name := strings.Add("pos")
	ns := strings.Add("tiger")
	values := []string{"NN", "NNS", "VBZ", "DT", "IN", "JJ"}
	node := NodeID(0)
	for _, v := range values {
		id := strings.Add(v)
		for i := 0; i < 20; i++ {
			annos.Add(node, Annotation{Name: name, NS: ns, Value: id})
			node++
		}
	}
	annos.CalculateStatistics()
	require.True(t, annos.HasStatistics())

	universe := int64(annos.KeyCount(AnnotationKey{Name: name, NS: ns}))
	guess := annos.GuessMaxCountNS("tiger", "pos", "NN")

	assert.Greater(t, guess, int64(0))
	assert.LessOrEqual(t, guess, universe)
}

func TestNodeAnnoStorage_GuessMaxCountUnknownName(t *testing.T) {
	_, annos := testAnnoStorage(t)
	annos.CalculateStatistics()

	assert.Equal(t, int64(0), annos.GuessMaxCount("missing", "x"))
}

func TestNodeAnnoStorage_GuessMaxCountRegex(t *testing.T) {
	strings, annos := testAnnoStorage(t)

	name := strings.Add("pos")
	ns := strings.Add("tiger")
	node := NodeID(0)
	for _, v := range []string{"NN", "NNS", "VBZ", "DT"} {
		id := strings.Add(v)
		for i := 0; i < 25; i++ {
			annos.Add(node, Annotation{Name: name, NS: ns, Value: id})
			node++
		}
	}
	annos.CalculateStatistics()

	guess := annos.GuessMaxCountRegex("tiger", "pos", "N.*")
	universe := int64(annos.KeyCount(AnnotationKey{Name: name, NS: ns}))

	assert.Greater(t, guess, int64(0))
	assert.LessOrEqual(t, guess, universe)
}

func TestNodeAnnoStorage_StatisticsSampling(t *testing.T) {
	strings, annos := testAnnoStorage(t)

	name := strings.Add("word")
	ns := strings.Add("annis")
	// more distinct values than the sampling bound
	for i := 0; i < 3000; i++ {
		annos.Add(NodeID(i), Annotation{
			Name: name, NS: ns,
			Value: strings.Add(fmt.Sprintf("value-%04d", i)),
		})
	}
	annos.CalculateStatistics()

	guess := annos.GuessMaxCountNS("annis", "word", "value-1500")
	assert.GreaterOrEqual(t, guess, int64(0))
	assert.LessOrEqual(t, guess, int64(3000))
}

func TestNodeAnnoStorage_AddBulk(t *testing.T) {
	strings, annos := testAnnoStorage(t)

	name := strings.Add("tok")
	ns := strings.Add("annis")
	entries := []NodeAnnotation{
		{Node: 1, Anno: Annotation{Name: name, NS: ns, Value: strings.Add("That")}},
		{Node: 2, Anno: Annotation{Name: name, NS: ns, Value: strings.Add("is")}},
	}
	annos.AddBulk(entries)

	assert.Equal(t, 2, annos.Len())
	assert.Equal(t, 2, annos.KeyCount(AnnotationKey{Name: name, NS: ns}))
}

func TestNodeAnnoStorage_WritesInvalidateStatistics(t *testing.T) {
	strings, annos := testAnnoStorage(t)

	name := strings.Add("pos")
	ns := strings.Add("tiger")
	annos.Add(1, Annotation{Name: name, NS: ns, Value: strings.Add("NN")})
	annos.CalculateStatistics()
	require.True(t, annos.HasStatistics())

	annos.Add(2, Annotation{Name: name, NS: ns, Value: strings.Add("DT")})
	assert.False(t, annos.HasStatistics())
}
