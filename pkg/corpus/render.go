package corpus

import (
	"fmt"

	"github.com/orneryd/corpusdb/pkg/graph"
)

// RenderNodeName renders a match for external consumers as a salt URI:
// salt:/<corpus>/<document>/#<node_name>. When the matched annotation is
// not the node-name label itself, the result is prefixed with
// <ns>::<name>::. The document segment comes from the node's document
// label and may be empty.
func (db *DB) RenderNodeName(m graph.Match) string {
	nodeName := ""
	if anno, ok := db.NodeAnnos.Get(m.Node, db.NamespaceStringID(), db.NodeNameStringID()); ok {
		nodeName = db.Strings.StrDefault(anno.Value, "")
	}

	document := ""
	if docNameID, ok := db.Strings.FindID("document"); ok {
		if anno, ok := db.NodeAnnos.Get(m.Node, db.NamespaceStringID(), docNameID); ok {
			document = db.Strings.StrDefault(anno.Value, "")
		}
	}

	uri := fmt.Sprintf("salt:/%s/%s/#%s", db.Name, document, nodeName)

	if m.Anno.Name != 0 && m.Anno.Name != db.NodeNameStringID() {
		ns := db.Strings.StrDefault(m.Anno.NS, "")
		name := db.Strings.StrDefault(m.Anno.Name, "")
		return ns + "::" + name + "::" + uri
	}
	return uri
}
