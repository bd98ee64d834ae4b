package operators

import (
	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/graphstorage"
)

// TokenHelper resolves the token span of a node through the LEFT_TOKEN and
// RIGHT_TOKEN components. Tokens are self-aligned: their left and right
// token is the node itself.
type TokenHelper struct {
	db *corpus.DB

	leftEdges  graphstorage.GraphStorage
	rightEdges graphstorage.GraphStorage
	covEdges   graphstorage.GraphStorage

	tokKey graph.AnnotationKey
}

// NewTokenHelper creates a helper, or ok == false when one of the
// required components has no storage.
func NewTokenHelper(db *corpus.DB) (*TokenHelper, bool) {
	left, okL := db.GetStorage(graph.Component{Type: graph.LeftToken, Layer: graph.Namespace})
	right, okR := db.GetStorage(graph.Component{Type: graph.RightToken, Layer: graph.Namespace})
	cov, okC := db.GetStorage(graph.Component{Type: graph.Coverage, Layer: graph.Namespace})
	if !okL || !okR || !okC {
		return nil, false
	}
	return &TokenHelper{
		db:         db,
		leftEdges:  left,
		rightEdges: right,
		covEdges:   cov,
		tokKey:     graph.AnnotationKey{Name: db.TokStringID(), NS: db.NamespaceStringID()},
	}, true
}

// IsToken reports whether a node is a token: it carries the reserved token
// label and covers nothing.
func (h *TokenHelper) IsToken(node graph.NodeID) bool {
	if _, ok := h.db.NodeAnnos.Get(node, h.tokKey.NS, h.tokKey.Name); !ok {
		return false
	}
	return len(h.covEdges.GetOutgoingEdges(node)) == 0
}

// LeftTokenFor returns the leftmost token covered by a node.
func (h *TokenHelper) LeftTokenFor(node graph.NodeID) (graph.NodeID, bool) {
	if h.IsToken(node) {
		return node, true
	}
	out := h.leftEdges.GetOutgoingEdges(node)
	if len(out) == 0 {
		return 0, false
	}
	return out[0], true
}

// RightTokenFor returns the rightmost token covered by a node.
func (h *TokenHelper) RightTokenFor(node graph.NodeID) (graph.NodeID, bool) {
	if h.IsToken(node) {
		return node, true
	}
	out := h.rightEdges.GetOutgoingEdges(node)
	if len(out) == 0 {
		return 0, false
	}
	return out[0], true
}

// LeftAlignedNodes returns every non-token node whose leftmost covered
// token is the given token.
func (h *TokenHelper) LeftAlignedNodes(token graph.NodeID) []graph.NodeID {
	return h.leftEdges.GetIncomingEdges(token)
}

// CoveringNodes returns every non-token node covering the given token.
func (h *TokenHelper) CoveringNodes(token graph.NodeID) []graph.NodeID {
	return h.covEdges.GetIncomingEdges(token)
}

// CoveredTokens returns the tokens covered by a node; a token covers
// itself.
func (h *TokenHelper) CoveredTokens(node graph.NodeID) []graph.NodeID {
	if h.IsToken(node) {
		return []graph.NodeID{node}
	}
	var result []graph.NodeID
	it := h.covEdges.FindConnected(node, 1, 1)
	for n, ok := it.Next(); ok; n, ok = it.Next() {
		result = append(result, n)
	}
	return result
}
