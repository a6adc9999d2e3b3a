package tasks

import (
	"fmt"
	"strings"

	"github.com/akinizer/akinizer/pkg/engine"
)

// ToDOT renders the unit tree under root in DOT format. Parallel groups fan
// out to their children; series groups chain them in order. The output can
// be rendered with Graphviz tools.
func ToDOT(root engine.Unit) string {
	var sb strings.Builder

	sb.WriteString("digraph Units {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	writeNode(&sb, root)

	sb.WriteString("}\n")
	return sb.String()
}

func writeNode(sb *strings.Builder, u engine.Unit) {
	t, ok := u.(*Task)
	kind := KindTask
	if ok {
		kind = t.kind
	}

	sb.WriteString(fmt.Sprintf("  %q [label=%q, fillcolor=%q, style=\"filled,rounded\"];\n",
		u.Name(), fmt.Sprintf("%s\n%s", u.Name(), kind), kindColor(kind)))

	if !ok {
		return
	}

	prev := t.name
	for _, child := range t.children {
		writeNode(sb, child)
		switch t.kind {
		case KindParallel:
			sb.WriteString(fmt.Sprintf("  %q -> %q [style=dashed, color=blue];\n", t.name, child.Name()))
		case KindSeries:
			sb.WriteString(fmt.Sprintf("  %q -> %q [style=solid, color=black];\n", prev, child.Name()))
			prev = child.Name()
		}
	}
}

// kindColor returns a fill color for a unit kind.
func kindColor(k Kind) string {
	switch k {
	case KindParallel:
		return "lightblue"
	case KindSeries:
		return "lightgreen"
	default:
		return "white"
	}
}
