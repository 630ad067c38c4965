// Package facts encodes datasets and partial charts as Draco ASP facts and
// decodes solver answer sets back into chart specifications.
package facts

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/vizeval-cli/internal/dataset"
)

// Schema is the per-dataset statistics Draco reasons over.
type Schema struct {
	NumberRows int
	Fields     []FieldStats
}

// FieldStats describes one column. Min, Max, Std are set for number fields
// with at least one value; Freq for string fields.
type FieldStats struct {
	Name    string
	Type    string
	Unique  int
	Entropy int

	HasRange bool
	Min      int
	Max      int
	Std      int

	HasFreq bool
	Freq    int
}

// SchemaFromTable computes Draco field statistics for every column in file order.
func SchemaFromTable(t *dataset.Table) Schema {
	s := Schema{NumberRows: t.Rows}
	for _, c := range t.Columns {
		s.Fields = append(s.Fields, fieldStats(c))
	}
	return s
}

func fieldStats(c *dataset.Column) FieldStats {
	fs := FieldStats{Name: c.Name, Type: c.Kind}
	vals := c.NonNull()

	counts := map[string]int{}
	for _, v := range vals {
		counts[fmt.Sprint(v)]++
	}
	fs.Unique = len(counts)
	fs.Entropy = int(math.Round(entropy(counts, len(vals)) * 1000))

	switch c.Kind {
	case dataset.KindNumber:
		if len(vals) == 0 {
			break
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		var n int
		var mean, m2 float64
		for _, v := range vals {
			x := v.(float64)
			lo = math.Min(lo, x)
			hi = math.Max(hi, x)
			// Welford
			n++
			delta := x - mean
			mean += delta / float64(n)
			m2 += delta * (x - mean)
		}
		fs.HasRange = true
		fs.Min = int(lo)
		fs.Max = int(hi)
		if n > 1 {
			fs.Std = int(math.Sqrt(m2 / float64(n-1)))
		}
	case dataset.KindString:
		fs.HasFreq = true
		for _, n := range counts {
			if n > fs.Freq {
				fs.Freq = n
			}
		}
	}
	return fs
}

// entropy is the Shannon entropy in nats of the value distribution.
func entropy(counts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	var h float64
	for _, n := range counts {
		p := float64(n) / float64(total)
		h -= p * math.Log(p)
	}
	return h
}
