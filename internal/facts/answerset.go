package facts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Spec is a decoded chart specification.
type Spec struct {
	NumberRows int     `mapstructure:"number_rows"`
	Task       string  `mapstructure:"task"`
	Fields     []Field `mapstructure:"field"`
	Views      []View  `mapstructure:"view"`
}

type Field struct {
	Name    string `mapstructure:"name"`
	Type    string `mapstructure:"type"`
	Unique  int    `mapstructure:"unique"`
	Entropy int    `mapstructure:"entropy"`
	Min     int    `mapstructure:"min"`
	Max     int    `mapstructure:"max"`
	Std     int    `mapstructure:"std"`
	Freq    int    `mapstructure:"freq"`
}

type View struct {
	Coordinates string  `mapstructure:"coordinates"`
	Marks       []Mark  `mapstructure:"mark"`
	Scales      []Scale `mapstructure:"scale"`
	Facets      []Facet `mapstructure:"facet"`
}

type Mark struct {
	Type      string     `mapstructure:"type"`
	Encodings []Encoding `mapstructure:"encoding"`
}

type Encoding struct {
	Channel   string `mapstructure:"channel"`
	Field     string `mapstructure:"field"`
	Aggregate string `mapstructure:"aggregate"`
	Binning   int    `mapstructure:"binning"`
	Stack     string `mapstructure:"stack"`
}

type Scale struct {
	Channel string `mapstructure:"channel"`
	Type    string `mapstructure:"type"`
	Zero    bool   `mapstructure:"zero"`
}

type Facet struct {
	Channel string `mapstructure:"channel"`
	Field   string `mapstructure:"field"`
	Binning int    `mapstructure:"binning"`
}

// AnswerSetToSpec decodes a solver answer set into a typed Spec.
func AnswerSetToSpec(atoms []string) (Spec, error) {
	m, err := AnswerSetToMap(atoms)
	if err != nil {
		return Spec{}, err
	}
	var spec Spec
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &spec,
	})
	if err != nil {
		return Spec{}, fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return Spec{}, fmt.Errorf("decode answer set: %w", err)
	}
	return spec, nil
}

// AnswerSetToMap nests entity and attribute atoms under their owners. Each
// entity kind becomes a list under its parent, in the order entities appear.
// Atoms other than entity/attribute are ignored.
func AnswerSetToMap(atoms []string) (map[string]any, error) {
	type ent struct {
		kind, parent string
		props        map[string]any
	}
	root := map[string]any{}
	owners := map[string]map[string]any{"root": root}
	var ents []ent
	var attrs []term

	for _, a := range atoms {
		t, err := parseAtom(a)
		if err != nil {
			return nil, err
		}
		switch {
		case t.Name == "entity" && len(t.Args) == 3:
			e := ent{kind: t.Args[0].String(), parent: t.Args[1].String(), props: map[string]any{}}
			id := t.Args[2].String()
			if _, dup := owners[id]; dup {
				return nil, fmt.Errorf("duplicate entity id %s", id)
			}
			owners[id] = e.props
			ents = append(ents, e)
		case t.Name == "attribute" && len(t.Args) == 3:
			attrs = append(attrs, t)
		}
	}

	for _, e := range ents {
		parent, ok := owners[e.parent]
		if !ok {
			return nil, fmt.Errorf("entity %s refers to unknown parent %s", e.kind, e.parent)
		}
		list, _ := parent[e.kind].([]any)
		parent[e.kind] = append(list, e.props)
	}

	for _, t := range attrs {
		path, owner, value := t.Args[0], t.Args[1].String(), t.Args[2]
		props, ok := owners[owner]
		if !ok {
			return nil, fmt.Errorf("attribute %s refers to unknown entity %s", path.String(), owner)
		}
		key := path.String()
		if path.Tuple {
			if len(path.Args) == 0 {
				return nil, fmt.Errorf("empty attribute path on %s", owner)
			}
			key = path.Args[len(path.Args)-1].String()
		}
		v := value.Value()
		switch prev := props[key].(type) {
		case nil:
			props[key] = v
		case []any:
			props[key] = append(prev, v)
		default:
			props[key] = []any{prev, v}
		}
	}
	return root, nil
}

// term is a parsed ASP term: a function/constant, a tuple, a string or an integer.
type term struct {
	Name   string
	Args   []term
	Tuple  bool
	Quoted bool
	IsInt  bool
	Int    int
}

// Value converts a leaf term to a Go value.
func (t term) Value() any {
	switch {
	case t.IsInt:
		return t.Int
	case t.Quoted:
		return t.Name
	default:
		return t.String()
	}
}

func (t term) String() string {
	switch {
	case t.IsInt:
		return strconv.Itoa(t.Int)
	case t.Quoted:
		return t.Name
	}
	if len(t.Args) == 0 && !t.Tuple {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return t.Name + "(" + strings.Join(parts, ",") + ")"
}

// parseAtom parses one fact such as `attribute((encoding,field),e0,"Miles per Gallon").`.
func parseAtom(s string) (term, error) {
	src := strings.TrimSpace(s)
	src = strings.TrimSuffix(src, ".")
	p := &parser{src: src}
	t, err := p.term()
	if err != nil {
		return term{}, fmt.Errorf("parse atom %q: %w", s, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return term{}, fmt.Errorf("parse atom %q: trailing input at %d", s, p.pos)
	}
	return t, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *parser) term() (term, error) {
	p.skipSpace()
	switch c := p.peek(); {
	case c == 0:
		return term{}, fmt.Errorf("unexpected end of input")
	case c == '"':
		return p.quoted()
	case c == '(':
		args, err := p.args()
		if err != nil {
			return term{}, err
		}
		return term{Args: args, Tuple: true}, nil
	case c == '-' || (c >= '0' && c <= '9'):
		return p.integer()
	case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		name := p.ident()
		if p.peek() == '(' {
			args, err := p.args()
			if err != nil {
				return term{}, err
			}
			return term{Name: name, Args: args}, nil
		}
		return term{Name: name}, nil
	default:
		return term{}, fmt.Errorf("unexpected %q at %d", c, p.pos)
	}
}

func (p *parser) args() ([]term, error) {
	p.pos++ // (
	var out []term
	for {
		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			return out, nil
		}
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ')':
		default:
			return nil, fmt.Errorf("expected ',' or ')' at %d", p.pos)
		}
	}
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if c == '_' || c == '\'' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) integer() (term, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		return term{}, fmt.Errorf("bad integer %q", p.src[start:p.pos])
	}
	return term{IsInt: true, Int: n}, nil
}

func (p *parser) quoted() (term, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '\\':
			if p.pos+1 >= len(p.src) {
				return term{}, fmt.Errorf("dangling escape")
			}
			switch n := p.src[p.pos+1]; n {
			case 'n':
				b.WriteByte('\n')
			default:
				b.WriteByte(n)
			}
			p.pos += 2
		case '"':
			p.pos++
			return term{Name: b.String(), Quoted: true}, nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return term{}, fmt.Errorf("unterminated string")
}
