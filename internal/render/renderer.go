package render

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/KaramelBytes/vizeval-cli/internal/dataset"
	"github.com/KaramelBytes/vizeval-cli/internal/facts"
)

// ErrMultipleViews is returned for specifications with more than one view.
var ErrMultipleViews = errors.New("multiple views not supported")

var supportedMarks = map[string]bool{
	"point": true, "bar": true, "line": true, "area": true,
	"text": true, "tick": true, "rect": true, "arc": true,
}

// Renderer builds Vega-Lite charts bound to one dataset.
type Renderer struct {
	// ViewWidth and ViewHeight set config.view; zero means the Vega-Lite default.
	ViewWidth  int
	ViewHeight int
}

// Render converts a decoded specification into a chart over t's rows.
func (r *Renderer) Render(spec facts.Spec, t *dataset.Table) (*Chart, error) {
	switch len(spec.Views) {
	case 0:
		return nil, errors.New("specification has no view")
	case 1:
	default:
		return nil, ErrMultipleViews
	}
	view := spec.Views[0]
	if len(view.Marks) == 0 {
		return nil, errors.New("view has no mark")
	}

	fieldTypes := map[string]string{}
	for _, c := range t.Columns {
		fieldTypes[c.Name] = c.Kind
	}
	for _, f := range spec.Fields {
		if f.Name != "" && f.Type != "" {
			fieldTypes[f.Name] = f.Type
		}
	}
	scales := map[string]facts.Scale{}
	for _, s := range view.Scales {
		scales[s.Channel] = s
	}
	polar := view.Coordinates == "polar"

	units := make([]UnitSpec, 0, len(view.Marks))
	for _, m := range view.Marks {
		u, err := renderMark(m, fieldTypes, scales, polar)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	var body UnitSpec
	if len(units) == 1 {
		body = units[0]
	} else {
		body = UnitSpec{Layer: units}
	}

	name, records, err := inlineData(t)
	if err != nil {
		return nil, err
	}
	w, h := r.ViewWidth, r.ViewHeight
	if w <= 0 {
		w = DefaultViewWidth
	}
	if h <= 0 {
		h = DefaultViewHeight
	}
	chart := &Chart{
		Config:   &Config{View: ViewConfig{ContinuousWidth: w, ContinuousHeight: h}},
		Data:     &NamedData{Name: name},
		Schema:   SchemaURL,
		Datasets: map[string][]map[string]any{name: records},
	}

	facet, err := renderFacets(view.Facets, fieldTypes)
	if err != nil {
		return nil, err
	}
	if facet != nil {
		chart.Facet = facet
		chart.Spec = &body
	} else {
		chart.UnitSpec = body
	}
	return chart, nil
}

func renderMark(m facts.Mark, fieldTypes map[string]string, scales map[string]facts.Scale, polar bool) (UnitSpec, error) {
	markType := m.Type
	if !supportedMarks[markType] {
		return UnitSpec{}, fmt.Errorf("unsupported mark type %q", markType)
	}
	if polar && markType == "bar" {
		markType = "arc"
	}
	enc := &Encoding{}
	for _, e := range m.Encodings {
		def, err := channelDef(e, fieldTypes, scales[e.Channel])
		if err != nil {
			return UnitSpec{}, err
		}
		channel := e.Channel
		if polar {
			switch channel {
			case "x":
				channel = "theta"
			case "y":
				channel = "radius"
			}
		}
		if err := enc.set(channel, def); err != nil {
			return UnitSpec{}, err
		}
	}
	return UnitSpec{Mark: &Mark{Type: markType}, Encoding: enc}, nil
}

func channelDef(e facts.Encoding, fieldTypes map[string]string, scale facts.Scale) (*ChannelDef, error) {
	if e.Field == "" {
		if e.Aggregate == "count" {
			return &ChannelDef{Aggregate: "count", Type: "quantitative"}, nil
		}
		return nil, fmt.Errorf("encoding on channel %q has no field", e.Channel)
	}
	ft, ok := fieldTypes[e.Field]
	if !ok {
		return nil, fmt.Errorf("encoding refers to unknown field %q", e.Field)
	}
	def := &ChannelDef{
		Field:     e.Field,
		Type:      encodingType(ft, scale.Type),
		Aggregate: e.Aggregate,
		Stack:     e.Stack,
	}
	if e.Binning > 0 {
		def.Bin = &Bin{MaxBins: e.Binning}
	}
	var s Scale
	if scale.Type != "" && scale.Type != "ordinal" && scale.Type != "categorical" {
		s.Type = scale.Type
	}
	if scale.Zero {
		zero := true
		s.Zero = &zero
	}
	if s.Type != "" || s.Zero != nil {
		def.Scale = &s
	}
	return def, nil
}

// encodingType maps a field type, overridden by discrete scale types, to a Vega-Lite type.
func encodingType(fieldType, scaleType string) string {
	switch scaleType {
	case "ordinal":
		return "ordinal"
	case "categorical":
		return "nominal"
	}
	switch fieldType {
	case dataset.KindNumber:
		return "quantitative"
	case dataset.KindDatetime:
		return "temporal"
	default:
		return "nominal"
	}
}

func renderFacets(fs []facts.Facet, fieldTypes map[string]string) (*Facet, error) {
	if len(fs) == 0 {
		return nil, nil
	}
	out := &Facet{}
	for _, f := range fs {
		ft, ok := fieldTypes[f.Field]
		if !ok {
			return nil, fmt.Errorf("facet refers to unknown field %q", f.Field)
		}
		def := &ChannelDef{Field: f.Field, Type: encodingType(ft, "")}
		if f.Binning > 0 {
			def.Bin = &Bin{MaxBins: f.Binning}
		}
		switch f.Channel {
		case "row":
			out.Row = def
		case "col", "column":
			out.Column = def
		default:
			return nil, fmt.Errorf("unsupported facet channel %q", f.Channel)
		}
	}
	return out, nil
}

func (e *Encoding) set(channel string, def *ChannelDef) error {
	var slot **ChannelDef
	switch channel {
	case "x":
		slot = &e.X
	case "y":
		slot = &e.Y
	case "theta":
		slot = &e.Theta
	case "radius":
		slot = &e.Radius
	case "color":
		slot = &e.Color
	case "size":
		slot = &e.Size
	case "shape":
		slot = &e.Shape
	case "text":
		slot = &e.Text
	default:
		return fmt.Errorf("unsupported encoding channel %q", channel)
	}
	if *slot != nil {
		return fmt.Errorf("channel %q encoded twice", channel)
	}
	*slot = def
	return nil
}

// inlineData names the dataset by a content hash of its records.
func inlineData(t *dataset.Table) (string, []map[string]any, error) {
	records := t.Records()
	b, err := json.Marshal(records)
	if err != nil {
		return "", nil, fmt.Errorf("hash dataset: %w", err)
	}
	sum := sha256.Sum256(b)
	return "data-" + hex.EncodeToString(sum[:])[:32], records, nil
}
