package annosearch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
)

// fixtureDB builds a corpus with six nodes:
//
//	nodes 1..4: tiger:pos in {NN, NN, VBZ, DT}
//	node  5:    other:pos = NN
//	node  6:    tiger:lemma = storm
//
// Every node carries the reserved node-name label.
func fixtureDB(t *testing.T) *corpus.DB {
	t.Helper()
	db := corpus.NewDB("fixture")

	addAnno := func(node graph.NodeID, ns, name, value string) {
		db.NodeAnnos.Add(node, graph.Annotation{
			Name:  db.Strings.Add(name),
			NS:    db.Strings.Add(ns),
			Value: db.Strings.Add(value),
		})
	}

	for i := 1; i <= 6; i++ {
		db.NodeAnnos.Add(graph.NodeID(i), graph.Annotation{
			Name:  db.NodeNameStringID(),
			NS:    db.NamespaceStringID(),
			Value: db.Strings.Add(nodeName(i)),
		})
	}
	addAnno(1, "tiger", "pos", "NN")
	addAnno(2, "tiger", "pos", "NN")
	addAnno(3, "tiger", "pos", "VBZ")
	addAnno(4, "tiger", "pos", "DT")
	addAnno(5, "other", "pos", "NN")
	addAnno(6, "tiger", "lemma", "storm")

	return db
}

func nodeName(i int) string {
	return "doc1#n" + string(rune('0'+i))
}

func drainSearch(s MatchIterator) []graph.Match {
	var result []graph.Match
	for m, ok := s.Next(); ok; m, ok = s.Next() {
		result = append(result, m)
	}
	return result
}

func nodesOf(matches []graph.Match) []graph.NodeID {
	var nodes []graph.NodeID
	for _, m := range matches {
		nodes = append(nodes, m.Node)
	}
	return nodes
}

func TestExactAnnoValueSearch_WithNamespace(t *testing.T) {
	db := fixtureDB(t)

	s := NewExactAnnoValueSearch(db, "tiger", "pos", "NN")
	matches := drainSearch(s)

	assert.ElementsMatch(t, []graph.NodeID{1, 2}, nodesOf(matches))
	for _, m := range matches {
		assert.Equal(t, "NN", db.Strings.StrDefault(m.Anno.Value, ""))
	}
}

func TestExactAnnoValueSearch_WithoutNamespaceUnionsKeys(t *testing.T) {
	db := fixtureDB(t)

	s := NewExactAnnoValueSearch(db, "", "pos", "NN")
	assert.ElementsMatch(t, []graph.NodeID{1, 2, 5}, nodesOf(drainSearch(s)))
}

func TestExactAnnoValueSearch_MissingStringIsEmpty(t *testing.T) {
	db := fixtureDB(t)

	s := NewExactAnnoValueSearch(db, "tiger", "pos", "never-interned")
	assert.Empty(t, drainSearch(s))
	assert.Equal(t, int64(0), s.GuessMaxCount())
}

func TestExactAnnoValueSearch_Reset(t *testing.T) {
	db := fixtureDB(t)
	s := NewExactAnnoValueSearch(db, "tiger", "pos", "NN")

	first := drainSearch(s)
	s.Reset()
	second := drainSearch(s)
	assert.Equal(t, first, second)
}

func TestExactAnnoValueSearch_NodeNameGuessIsOne(t *testing.T) {
	db := fixtureDB(t)

	s := NewExactAnnoValueSearch(db, graph.Namespace, graph.NodeNameLabel, nodeName(1))
	assert.Equal(t, int64(1), s.GuessMaxCount())
}

func TestExactAnnoKeySearch(t *testing.T) {
	db := fixtureDB(t)

	s := NewExactAnnoKeySearch(db, "", "pos")
	assert.ElementsMatch(t, []graph.NodeID{1, 2, 3, 4, 5}, nodesOf(drainSearch(s)))

	keys := s.ValidAnnotationKeys()
	assert.Len(t, keys, 2)
}

func TestExactAnnoKeySearch_GuessIsKeyCountSum(t *testing.T) {
	db := fixtureDB(t)

	s := NewExactAnnoKeySearch(db, "", "pos")
	assert.Equal(t, int64(5), s.GuessMaxCount())

	nsOnly := NewExactAnnoKeySearch(db, "tiger", "pos")
	assert.Equal(t, int64(4), nsOnly.GuessMaxCount())
}

func TestRegexAnnoValueSearch(t *testing.T) {
	db := fixtureDB(t)

	s := NewRegexAnnoValueSearch(db, "tiger", "pos", "N.*")
	matches := drainSearch(s)

	assert.ElementsMatch(t, []graph.NodeID{1, 2}, nodesOf(matches))
	assert.NotEmpty(t, s.ValidAnnotations())
}

func TestRegexAnnoValueSearch_CountMatchesKeySum(t *testing.T) {
	db := fixtureDB(t)
	db.NodeAnnos.CalculateStatistics()

	s := NewRegexAnnoValueSearch(db, "tiger", "pos", "(NN|VBZ)")
	matches := drainSearch(s)

	// NN twice plus VBZ once
	assert.Len(t, matches, 3)
}

func TestRegexAnnoValueSearch_InvalidPatternIsEmpty(t *testing.T) {
	db := fixtureDB(t)

	s := NewRegexAnnoValueSearch(db, "tiger", "pos", "[broken")
	assert.Empty(t, drainSearch(s))
	assert.Empty(t, s.ValidAnnotations())
}

func TestConstAnnoWrapper_ReplacesAnnotationAndDeduplicates(t *testing.T) {
	db := fixtureDB(t)
	// node 1 carries two annotations matching the key search
	constAnno := graph.Annotation{Name: db.NodeNameStringID(), NS: db.NamespaceStringID()}

	inner := NewExactAnnoKeySearch(db, "", "")
	w := NewConstAnnoWrapper(inner, constAnno)

	matches := drainSearch(w)
	seen := make(map[graph.NodeID]int)
	for _, m := range matches {
		seen[m.Node]++
		assert.Equal(t, constAnno, m.Anno)
	}
	for node, count := range seen {
		assert.Equal(t, 1, count, "node %d duplicated", node)
	}
	assert.Len(t, seen, 6)
}

func TestConstAnnoWrapper_Reset(t *testing.T) {
	db := fixtureDB(t)
	constAnno := graph.Annotation{Name: db.NodeNameStringID(), NS: db.NamespaceStringID()}
	w := NewConstAnnoWrapper(NewExactAnnoKeySearch(db, "", ""), constAnno)

	first := drainSearch(w)
	w.Reset()
	second := drainSearch(w)
	require.Equal(t, len(first), len(second))
}

func TestEstimatorSanity_GuessNeverExceedsUniverse(t *testing.T) {
	db := fixtureDB(t)
	db.NodeAnnos.CalculateStatistics()

	s := NewExactAnnoValueSearch(db, "tiger", "pos", "NN")
	guess := s.GuessMaxCount()
	posID, _ := db.Strings.FindID("pos")
	tigerID, _ := db.Strings.FindID("tiger")
	universe := int64(db.NodeAnnos.KeyCount(graph.AnnotationKey{Name: posID, NS: tigerID}))

	assert.GreaterOrEqual(t, guess, int64(0))
	assert.LessOrEqual(t, guess, universe)
}

func TestSearchDebugStrings(t *testing.T) {
	db := fixtureDB(t)

	assert.Equal(t, `tiger:pos="NN"`, NewExactAnnoValueSearch(db, "tiger", "pos", "NN").DebugString())
	assert.Equal(t, "pos", NewExactAnnoKeySearch(db, "", "pos").DebugString())
	assert.Equal(t, "tiger:pos=/N.*/", NewRegexAnnoValueSearch(db, "tiger", "pos", "N.*").DebugString())
}
