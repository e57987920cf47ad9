// Package npfmt renders shaped numeric and string payloads the way a
// numpy-style array printer does: bracket nesting per dimension, aligned
// elements, line wrapping at a column limit, and "..." summarization of
// large arrays. Formatting behavior is carried entirely by the Options
// value passed per call; there is no package-level print state.
package npfmt

import (
	"math"
	"strconv"
	"strings"
)

// Options controls one rendering call.
type Options struct {
	// Precision is the number of significant digits for float elements.
	Precision int
	// LineWidth is the wrap column; 0 disables wrapping.
	LineWidth int
	// Threshold is the element count above which the array is summarized
	// with "..."; 0 disables summarization.
	Threshold int
	// EdgeItems is how many leading and trailing items each summarized
	// dimension keeps.
	EdgeItems int
}

// Defaults mirrors the printer defaults: 8 significant digits, wrap at
// 75 columns, summarize above 1000 elements keeping 3 items per edge.
func Defaults() Options {
	return Options{Precision: 8, LineWidth: 75, Threshold: 1000, EdgeItems: 3}
}

// Unlimited renders every element with no wrapping.
func Unlimited() Options {
	return Options{Precision: 8}
}

// FormatFloats renders a row-major float payload with the given shape.
func FormatFloats(vals []float64, shape []uint64, opts Options) string {
	elems := make([]string, len(vals))
	for i, v := range vals {
		elems[i] = formatFloatElement(v, opts.Precision)
	}
	alignRight(elems)
	return formatShaped(elems, shape, opts)
}

// FormatInts renders integer values (widened to float64 on read) without
// decimal points.
func FormatInts(vals []float64, shape []uint64, opts Options) string {
	elems := make([]string, len(vals))
	for i, v := range vals {
		elems[i] = strconv.FormatInt(int64(v), 10)
	}
	alignRight(elems)
	return formatShaped(elems, shape, opts)
}

// FormatStrings renders a string payload as a quoted element array.
func FormatStrings(vals []string, shape []uint64, opts Options) string {
	elems := make([]string, len(vals))
	for i, v := range vals {
		elems[i] = "'" + v + "'"
	}
	return formatShaped(elems, shape, opts)
}

// FormatScalarFloat renders a rank-0 float the way a scalar prints:
// "1.0" rather than the "1." element form.
func FormatScalarFloat(v float64) string {
	if math.IsNaN(v) {
		return "nan"
	}
	if math.IsInf(v, 0) {
		if v > 0 {
			return "inf"
		}
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// FormatList renders names as a Python-style list of quoted strings:
// ['a', 'b'].
func FormatList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "'" + item + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// formatFloatElement renders one float the way array elements print:
// shortest form within precision, always keeping a decimal point or
// exponent ("1.", "0.5", "1.e+20").
func formatFloatElement(v float64, precision int) string {
	if math.IsNaN(v) {
		return "nan"
	}
	if math.IsInf(v, 0) {
		if v > 0 {
			return "inf"
		}
		return "-inf"
	}
	if precision <= 0 {
		precision = 8
	}

	s := strconv.FormatFloat(v, 'g', precision, 64)
	// Shorten when fewer digits round-trip identically.
	if short := strconv.FormatFloat(v, 'g', -1, 64); len(short) < len(s) {
		if parsed, err := strconv.ParseFloat(short, 64); err == nil && parsed == v {
			s = short
		}
	}

	if !strings.Contains(s, ".") {
		if idx := strings.IndexAny(s, "eE"); idx >= 0 {
			s = s[:idx] + "." + s[idx:]
		} else {
			s += "."
		}
	}
	return s
}

// alignRight pads elements to a common width so columns line up.
func alignRight(elems []string) {
	width := 0
	for _, e := range elems {
		if len(e) > width {
			width = len(e)
		}
	}
	for i, e := range elems {
		if len(e) < width {
			elems[i] = strings.Repeat(" ", width-len(e)) + e
		}
	}
}
