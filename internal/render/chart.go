// Package render turns decoded Draco specifications into Vega-Lite v5 JSON.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SchemaURL is the Vega-Lite schema charts declare.
const SchemaURL = "https://vega.github.io/schema/vega-lite/v5.json"

// Default continuous view size, matching Vega-Lite's own default.
const (
	DefaultViewWidth  = 300
	DefaultViewHeight = 300
)

// Chart is a top-level Vega-Lite specification. Field order is the key order
// of the serialized JSON.
type Chart struct {
	Config *Config    `json:"config,omitempty"`
	Data   *NamedData `json:"data,omitempty"`
	Facet  *Facet     `json:"facet,omitempty"`
	Spec   *UnitSpec  `json:"spec,omitempty"`
	UnitSpec
	Schema   string                      `json:"$schema"`
	Datasets map[string][]map[string]any `json:"datasets,omitempty"`
}

// UnitSpec is a single-mark chart or a layer of them.
type UnitSpec struct {
	Mark     *Mark      `json:"mark,omitempty"`
	Encoding *Encoding  `json:"encoding,omitempty"`
	Layer    []UnitSpec `json:"layer,omitempty"`
}

type Config struct {
	View ViewConfig `json:"view"`
}

type ViewConfig struct {
	ContinuousWidth  int `json:"continuousWidth"`
	ContinuousHeight int `json:"continuousHeight"`
}

type NamedData struct {
	Name string `json:"name"`
}

type Mark struct {
	Type string `json:"type"`
}

// Encoding lists the channels a unit spec may use.
type Encoding struct {
	X      *ChannelDef `json:"x,omitempty"`
	Y      *ChannelDef `json:"y,omitempty"`
	Theta  *ChannelDef `json:"theta,omitempty"`
	Radius *ChannelDef `json:"radius,omitempty"`
	Color  *ChannelDef `json:"color,omitempty"`
	Size   *ChannelDef `json:"size,omitempty"`
	Shape  *ChannelDef `json:"shape,omitempty"`
	Text   *ChannelDef `json:"text,omitempty"`
}

// Facet holds row and column facet definitions.
type Facet struct {
	Row    *ChannelDef `json:"row,omitempty"`
	Column *ChannelDef `json:"column,omitempty"`
}

// ChannelDef is a field or aggregate bound to a channel.
type ChannelDef struct {
	Aggregate string `json:"aggregate,omitempty"`
	Bin       *Bin   `json:"bin,omitempty"`
	Field     string `json:"field,omitempty"`
	Scale     *Scale `json:"scale,omitempty"`
	Stack     string `json:"stack,omitempty"`
	Type      string `json:"type"`
}

type Bin struct {
	MaxBins int `json:"maxbins"`
}

type Scale struct {
	Type string `json:"type,omitempty"`
	Zero *bool  `json:"zero,omitempty"`
}

// HasColumnFacet reports whether the chart is faceted into columns.
func (c *Chart) HasColumnFacet() bool {
	return c.Facet != nil && c.Facet.Column != nil
}

// ConfigureView sets the continuous view size.
func (c *Chart) ConfigureView(width, height int) {
	if c.Config == nil {
		c.Config = &Config{}
	}
	c.Config.View = ViewConfig{ContinuousWidth: width, ContinuousHeight: height}
}

// JSON serializes the chart with 2-space indentation and without HTML escaping.
func (c *Chart) JSON() (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return "", fmt.Errorf("encode chart: %w", err)
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
