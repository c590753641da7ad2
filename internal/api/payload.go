package api

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/abhisek/kgraph/internal/mastery"
)

// Position is a node coordinate in unscaled graph space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a knowledge-graph topic as delivered by the backend, after
// lenient decoding. Counters keep their raw (possibly negative or NaN)
// values; sanitizing them is the scoring engine's job.
type Node struct {
	ID               int
	Label            string
	Position         Position
	CorrectResponses float64
	Occurrences      float64
	IsActive         *bool
	LastReviewed     *time.Time
	LastQuizAttempts *float64
	LastQuizCorrect  *float64
}

// Edge links two node ids.
type Edge struct {
	Source int
	Target int
}

// Payload is a decoded knowledge-graph response.
type Payload struct {
	Nodes             []Node
	Edges             []Edge
	TrackingThreshold *float64
	HalfLifeDays      *float64
	// Warnings lists everything that was defaulted or dropped while decoding.
	Warnings []string
}

// Overrides returns the server-supplied mastery config overrides.
func (p Payload) Overrides() mastery.Overrides {
	return mastery.Overrides{
		TrackingThreshold: p.TrackingThreshold,
		HalfLifeDays:      p.HalfLifeDays,
	}
}

// DecodePayload decodes a knowledge-graph response body. Only bodies that
// are not valid JSON fail; every other defect (missing arrays, wrong types,
// unparseable fields) is defaulted and reported in Payload.Warnings.
func DecodePayload(body []byte) (Payload, error) {
	var p Payload
	if !json.Valid(body) {
		return p, &ErrDecode{Err: fmt.Errorf("response is not valid JSON")}
	}

	p.Warnings = append(p.Warnings, schemaWarnings(body)...)

	var top struct {
		Nodes             json.RawMessage `json:"nodes"`
		Edges             json.RawMessage `json:"edges"`
		TrackingThreshold number          `json:"trackingThreshold"`
		HalfLifeDays      number          `json:"halfLifeDays"`
	}
	if err := json.Unmarshal(body, &top); err != nil {
		p.Warnings = append(p.Warnings, "response is not an object; using an empty graph")
		return p, nil
	}

	if top.TrackingThreshold.ok {
		v := top.TrackingThreshold.value
		p.TrackingThreshold = &v
	}
	if top.HalfLifeDays.ok && !math.IsNaN(top.HalfLifeDays.value) && !math.IsInf(top.HalfLifeDays.value, 0) {
		v := top.HalfLifeDays.value
		p.HalfLifeDays = &v
	}

	for i, raw := range decodeArray(top.Nodes, "nodes", &p.Warnings) {
		n, err := decodeNode(raw)
		if err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("nodes[%d]: %v", i, err))
			continue
		}
		p.Nodes = append(p.Nodes, n)
	}

	for i, raw := range decodeArray(top.Edges, "edges", &p.Warnings) {
		var we struct {
			Source number `json:"source"`
			Target number `json:"target"`
		}
		if err := json.Unmarshal(raw, &we); err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("edges[%d]: not an object", i))
			continue
		}
		src, okSrc := we.Source.id()
		dst, okDst := we.Target.id()
		if !okSrc || !okDst {
			p.Warnings = append(p.Warnings, fmt.Sprintf("edges[%d]: invalid endpoint", i))
			continue
		}
		p.Edges = append(p.Edges, Edge{Source: src, Target: dst})
	}

	return p, nil
}

func decodeArray(raw json.RawMessage, field string, warnings *[]string) []json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		*warnings = append(*warnings, fmt.Sprintf("%s is not an array; using none", field))
		return nil
	}
	return items
}

type wireNode struct {
	ID               number   `json:"id"`
	Label            text     `json:"label"`
	Position         position `json:"position"`
	CorrectResponses number   `json:"correctResponses"`
	Occurrences      number   `json:"occurrences"`
	IsActive         flag     `json:"isActive"`
	LastReviewed     text     `json:"lastReviewed"`
	LastQuizAttempts number   `json:"lastQuizAttempts"`
	LastQuizCorrect  number   `json:"lastQuizCorrect"`
}

func decodeNode(raw json.RawMessage) (Node, error) {
	var wn wireNode
	if err := json.Unmarshal(raw, &wn); err != nil {
		return Node{}, fmt.Errorf("not an object")
	}
	id, ok := wn.ID.id()
	if !ok {
		return Node{}, fmt.Errorf("missing or invalid id")
	}

	n := Node{
		ID:               id,
		Label:            wn.Label.value,
		Position:         Position{X: wn.Position.x.finite(), Y: wn.Position.y.finite()},
		CorrectResponses: wn.CorrectResponses.value,
		Occurrences:      wn.Occurrences.value,
	}
	if wn.IsActive.ok {
		v := wn.IsActive.value
		n.IsActive = &v
	}
	if wn.LastQuizAttempts.ok {
		v := wn.LastQuizAttempts.value
		n.LastQuizAttempts = &v
	}
	if wn.LastQuizCorrect.ok {
		v := wn.LastQuizCorrect.value
		n.LastQuizCorrect = &v
	}
	if s := strings.TrimSpace(wn.LastReviewed.value); s != "" {
		if t, ok := parseTimestamp(s); ok {
			n.LastReviewed = &t
		}
	}
	return n, nil
}

var timestampLayouts = []struct {
	layout string
	// local marks date-times without a zone, which read as local time.
	local bool
}{
	{time.RFC3339Nano, false},
	{"2006-01-02T15:04:05.999999999", true},
	{"2006-01-02 15:04:05.999999999Z07:00", false},
	{"2006-01-02 15:04:05.999999999", true},
	{"2006-01-02", false},
}

// parseTimestamp accepts ISO-8601 timestamps. Date-times without a zone
// are local time; a bare date is midnight UTC.
func parseTimestamp(s string) (time.Time, bool) {
	for _, tl := range timestampLayouts {
		loc := time.UTC
		if tl.local {
			loc = time.Local
		}
		if t, err := time.ParseInLocation(tl.layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// number decodes JSON numbers and numeric strings. Anything else leaves it
// unset with a zero value.
type number struct {
	value float64
	ok    bool
}

func (n *number) UnmarshalJSON(b []byte) error {
	*n = number{}
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return nil
		}
		s = strings.TrimSpace(str)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	n.value, n.ok = v, true
	return nil
}

func (n number) finite() float64 {
	if !n.ok || math.IsNaN(n.value) || math.IsInf(n.value, 0) {
		return 0
	}
	return n.value
}

func (n number) id() (int, bool) {
	if !n.ok || n.value != math.Trunc(n.value) || math.IsInf(n.value, 0) {
		return 0, false
	}
	if math.Abs(n.value) > math.MaxInt32 {
		return 0, false
	}
	return int(n.value), true
}

// text decodes JSON strings; numbers are kept as their literal.
type text struct {
	value string
}

func (t *text) UnmarshalJSON(b []byte) error {
	*t = text{}
	s := strings.TrimSpace(string(b))
	switch {
	case s == "" || s == "null":
	case s[0] == '"':
		_ = json.Unmarshal(b, &t.value)
	case s[0] == '-' || (s[0] >= '0' && s[0] <= '9'):
		t.value = s
	}
	return nil
}

// flag decodes JSON booleans and "true"/"false" strings.
type flag struct {
	value bool
	ok    bool
}

func (f *flag) UnmarshalJSON(b []byte) error {
	*f = flag{}
	switch strings.Trim(strings.TrimSpace(string(b)), `"`) {
	case "true":
		f.value, f.ok = true, true
	case "false":
		f.value, f.ok = false, true
	}
	return nil
}

// position tolerates non-object values by leaving both axes unset.
type position struct {
	x, y number
}

func (p *position) UnmarshalJSON(b []byte) error {
	*p = position{}
	var wp struct {
		X number `json:"x"`
		Y number `json:"y"`
	}
	if err := json.Unmarshal(b, &wp); err != nil {
		return nil
	}
	p.x, p.y = wp.X, wp.Y
	return nil
}
