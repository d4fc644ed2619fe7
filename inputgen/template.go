// Package inputgen implements the input template grammar used to synthesize
// fuzz inputs.
//
// A template is one of four forms:
//
//	[e1,e2,...]  List: the children rendered in order and concatenated
//	{e1,e2,...}  Set: exactly one child, chosen uniformly at random
//	(min-max)    RandInt: a uniform integer in [min, max], inclusive
//	anything     Const: the text itself
//
// Children are separated by commas at nesting depth zero, so ranges and nested
// lists or sets may appear anywhere a child is expected. Whitespace around a
// bracketed child is ignored; whitespace in Const text is kept. Const text
// understands the escapes \n, \t and \\, and a backslash before a comma or
// bracket makes it literal.
package inputgen

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

// Kind identifies the form of a template node.
type Kind string

const (
	KindConst   Kind = "const"
	KindList    Kind = "list"
	KindSet     Kind = "set"
	KindRandInt Kind = "randint"
)

// Node is a parsed template. Nodes are immutable and every call to Generate
// evaluates the tree afresh.
type Node interface {
	Kind() Kind
	// Generate appends one rendering of the node to b.
	Generate(rng *rand.Rand, b *strings.Builder)
	// String returns template text that parses back into an equal node.
	String() string
}

// Render evaluates a node once and returns the generated text.
func Render(n Node, rng *rand.Rand) string {
	var b strings.Builder
	n.Generate(rng, &b)
	return b.String()
}

// Const renders its text verbatim.
type Const struct {
	Text string
}

func (c Const) Kind() Kind { return KindConst }

func (c Const) Generate(_ *rand.Rand, b *strings.Builder) {
	b.WriteString(c.Text)
}

func (c Const) String() string {
	return escapeConst(c.Text)
}

// List concatenates its children without a separator.
type List struct {
	Children []Node
}

func (l List) Kind() Kind { return KindList }

func (l List) Generate(rng *rand.Rand, b *strings.Builder) {
	for _, child := range l.Children {
		child.Generate(rng, b)
	}
}

func (l List) String() string {
	return "[" + joinNodes(l.Children) + "]"
}

// Set renders one child picked uniformly at random. Children that are not
// picked are not evaluated.
type Set struct {
	Children []Node
}

func (s Set) Kind() Kind { return KindSet }

func (s Set) Generate(rng *rand.Rand, b *strings.Builder) {
	if len(s.Children) == 0 {
		return
	}
	s.Children[rng.IntN(len(s.Children))].Generate(rng, b)
}

func (s Set) String() string {
	return "{" + joinNodes(s.Children) + "}"
}

// RandInt renders a uniformly sampled integer in [Min, Max] as decimal text.
type RandInt struct {
	Min int64
	Max int64
}

func (r RandInt) Kind() Kind { return KindRandInt }

func (r RandInt) Generate(rng *rand.Rand, b *strings.Builder) {
	b.WriteString(strconv.FormatInt(r.Sample(rng), 10))
}

// Sample draws one value from the range.
func (r RandInt) Sample(rng *rand.Rand) int64 {
	span := uint64(r.Max-r.Min) + 1
	if span == 0 {
		// The range covers every int64.
		return int64(rng.Uint64())
	}
	return r.Min + int64(rng.Uint64N(span))
}

func (r RandInt) String() string {
	return "(" + strconv.FormatInt(r.Min, 10) + "-" + strconv.FormatInt(r.Max, 10) + ")"
}

func joinNodes(nodes []Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.String()
	}
	return strings.Join(parts, ",")
}

var constEscaper = strings.NewReplacer(
	`\`, `\\`, "\n", `\n`, "\t", `\t`,
	",", `\,`, "[", `\[`, "]", `\]`, "{", `\{`, "}", `\}`, "(", `\(`, ")", `\)`,
)

var constUnescaper = strings.NewReplacer(
	`\\`, `\`, `\n`, "\n", `\t`, "\t",
	`\,`, ",", `\[`, "[", `\]`, "]", `\{`, "{", `\}`, "}", `\(`, "(", `\)`, ")",
)

func escapeConst(s string) string {
	return constEscaper.Replace(s)
}

func unescapeConst(s string) string {
	return constUnescaper.Replace(s)
}
