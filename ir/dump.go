package ir

import (
	"encoding/json"
	"strconv"
)

// ============================================================
// JSON debug rendering
// ============================================================

func (g *Graph) nodeJSON(v Vid) map[string]interface{} {
	n := g.nodes[v]
	m := map[string]interface{}{"vid": int(v), "kind": n.kind.String()}
	switch n.kind {
	case KindConstant:
		m["value"] = g.constants[n.start].RatString()
	case KindVariable:
		if g.vars[n.start].integer {
			m["integer"] = true
		}
		if d := g.vars[n.start].discrete; len(d) > 0 {
			vals := make([]string, len(d))
			for i, r := range d {
				vals[i] = r.RatString()
			}
			m["discrete"] = vals
		}
	case KindOperation:
		m["op"] = n.op.String()
		ops := make([]int, n.count)
		for i := range ops {
			ops[i] = int(g.operands[n.start+int32(i)])
		}
		m["operands"] = ops
	}
	if n.kind != KindConstant && !n.bound.IsUnbounded() {
		m["bound"] = []string{n.bound.Lo.String(), n.bound.Hi.String()}
	}
	if n.row >= 0 {
		r := g.rows[n.row]
		row := map[string]interface{}{"index": int(n.row)}
		if r.Goal {
			row["goal"] = true
			row["minimize"] = r.Minimize
			row["priority"] = r.Priority
		}
		m["row"] = row
	}
	return m
}

// Dump renders the graph as deterministic JSON: nodes in vid order with
// their kind, payload, operands, bound and row metadata. Solver numbering is
// not included.
func (g *Graph) Dump() (string, error) {
	nodes := make([]map[string]interface{}, len(g.nodes))
	for i := range g.nodes {
		nodes[i] = g.nodeJSON(Vid(i))
	}
	b, err := json.Marshal(map[string]interface{}{"nodes": nodes})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// String renders a vid for diagnostics.
func (v Vid) String() string { return "v" + strconv.Itoa(int(v)) }
