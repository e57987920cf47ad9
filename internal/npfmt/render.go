package npfmt

import "strings"

// formatShaped lays out pre-formatted elements according to shape:
// nested brackets, one dimension per nesting level, rows wrapped at the
// line width and large axes summarized with "...".
func formatShaped(elems []string, shape []uint64, opts Options) string {
	if len(shape) == 0 {
		if len(elems) == 1 {
			return elems[0]
		}
		shape = []uint64{uint64(len(elems))}
	}

	summarize := opts.Threshold > 0 && len(elems) > opts.Threshold
	return renderBlock(elems, shape, opts, summarize, 0)
}

// renderBlock renders one dimension level. depth is the nesting depth,
// which fixes the indentation of continuation rows.
func renderBlock(elems []string, shape []uint64, opts Options, summarize bool, depth int) string {
	if len(shape) == 1 {
		return renderRow(elems, opts, summarize, depth)
	}

	n := int(shape[0])
	if n == 0 {
		return "[]"
	}
	stride := len(elems) / n

	rows := make([]string, 0, n)
	indices, _ := axisIndices(n, opts, summarize)
	for _, i := range indices {
		if i < 0 {
			rows = append(rows, "...")
			continue
		}
		rows = append(rows, renderBlock(elems[i*stride:(i+1)*stride], shape[1:], opts, summarize, depth+1))
	}

	// Sibling blocks of dimension k sit k-1 newlines apart, then indent
	// to align under the opening bracket.
	sep := strings.Repeat("\n", len(shape)-1) + strings.Repeat(" ", depth+1)
	return "[" + strings.Join(rows, sep) + "]"
}

// renderRow renders the innermost dimension: elements joined by single
// spaces, wrapped at the line width with continuation lines aligned
// under the first element.
func renderRow(elems []string, opts Options, summarize bool, depth int) string {
	if len(elems) == 0 {
		return "[]"
	}

	indices, _ := axisIndices(len(elems), opts, summarize)
	parts := make([]string, 0, len(indices))
	for _, i := range indices {
		if i < 0 {
			parts = append(parts, "...")
			continue
		}
		parts = append(parts, elems[i])
	}

	if opts.LineWidth <= 0 {
		return "[" + strings.Join(parts, " ") + "]"
	}

	var sb strings.Builder
	sb.WriteString("[")
	indent := strings.Repeat(" ", depth+1)
	col := depth + 1
	for i, part := range parts {
		if i > 0 {
			if col+1+len(part) > opts.LineWidth {
				sb.WriteString("\n")
				sb.WriteString(indent)
				col = depth + 1
			} else {
				sb.WriteString(" ")
				col++
			}
		}
		sb.WriteString(part)
		col += len(part)
	}
	sb.WriteString("]")
	return sb.String()
}

// axisIndices returns the element indices to show along an axis of n
// items; -1 marks the "..." gap. The second result reports whether
// anything was elided.
func axisIndices(n int, opts Options, summarize bool) ([]int, bool) {
	edge := opts.EdgeItems
	if !summarize || edge <= 0 || n <= 2*edge {
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		return indices, false
	}

	indices := make([]int, 0, 2*edge+1)
	for i := 0; i < edge; i++ {
		indices = append(indices, i)
	}
	indices = append(indices, -1)
	for i := n - edge; i < n; i++ {
		indices = append(indices, i)
	}
	return indices, true
}
