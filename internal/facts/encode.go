package facts

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/KaramelBytes/vizeval-cli/internal/dataset"
)

var constantRe = regexp.MustCompile(`^_*[a-z][A-Za-z0-9_']*$`)

// ToFacts renders a schema as Draco facts. Entity ids come from one integer
// counter starting at 0.
func ToFacts(s Schema) []string {
	out := []string{attribute("number_rows", "root", s.NumberRows)}
	for id, f := range s.Fields {
		ref := strconv.Itoa(id)
		out = append(out, entity("field", "root", ref))
		out = append(out,
			attribute("(field,name)", ref, f.Name),
			attribute("(field,type)", ref, f.Type),
			attribute("(field,unique)", ref, f.Unique),
			attribute("(field,entropy)", ref, f.Entropy),
		)
		if f.HasRange {
			out = append(out,
				attribute("(field,min)", ref, f.Min),
				attribute("(field,max)", ref, f.Max),
				attribute("(field,std)", ref, f.Std),
			)
		}
		if f.HasFreq {
			out = append(out, attribute("(field,freq)", ref, f.Freq))
		}
	}
	return out
}

// FromTable is SchemaFromTable followed by ToFacts.
func FromTable(t *dataset.Table) []string {
	return ToFacts(SchemaFromTable(t))
}

// PartialSpec extends the dataset facts with one view holding one mark whose
// two encodings are bound to the given columns. The result is a fresh slice.
func PartialSpec(schema []string, col1, col2 string) []string {
	out := make([]string, 0, len(schema)+7)
	out = append(out, schema...)
	return append(out,
		entity("view", "root", "v0"),
		entity("mark", "v0", "m0"),
		entity("encoding", "m0", "e0"),
		attribute("(encoding,field)", "e0", col1),
		entity("encoding", "m0", "e1"),
		attribute("(encoding,field)", "e1", col2),
	)
}

func entity(kind, parent, id string) string {
	return fmt.Sprintf("entity(%s,%s,%s).", kind, parent, id)
}

func attribute(path, owner string, value any) string {
	return fmt.Sprintf("attribute(%s,%s,%s).", path, owner, Term(value))
}

// Term formats a Go value as an ASP term. Strings that are not valid
// constants are quoted.
func Term(v any) string {
	switch x := v.(type) {
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case string:
		if constantRe.MatchString(x) {
			return x
		}
		return quote(x)
	default:
		return quote(fmt.Sprint(x))
	}
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
