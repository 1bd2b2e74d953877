package media

import (
	"fmt"
	"strconv"
	"strings"
)

// Filter is one named ffmpeg filter node with ordered parameters. Building
// filters as values keeps escaping and rendering in one place instead of
// scattering string concatenation through the stages.
type Filter struct {
	name   string
	params []filterParam
}

type filterParam struct {
	key    string
	value  string
	quoted bool
}

// NewFilter creates a filter node with the given name.
func NewFilter(name string) *Filter {
	return &Filter{name: name}
}

// Param adds a raw key=value parameter. The value is escaped for filter
// syntax; use Quoted for expression values that must keep inner commas.
func (f *Filter) Param(key, value string) *Filter {
	f.params = append(f.params, filterParam{key: key, value: EscapeFilterValue(value)})
	return f
}

// Int adds an integer parameter.
func (f *Filter) Int(key string, v int) *Filter {
	f.params = append(f.params, filterParam{key: key, value: strconv.Itoa(v)})
	return f
}

// Float adds a float parameter with trailing zeros trimmed.
func (f *Filter) Float(key string, v float64) *Filter {
	f.params = append(f.params, filterParam{key: key, value: formatFloat(v)})
	return f
}

// Quoted adds a single-quoted parameter, used for ffmpeg expressions such
// as enable='between(t,1,2)' where commas must not split parameters.
func (f *Filter) Quoted(key, value string) *Filter {
	f.params = append(f.params, filterParam{key: key, value: value, quoted: true})
	return f
}

// String renders the node as name=k1=v1:k2=v2.
func (f *Filter) String() string {
	if len(f.params) == 0 {
		return f.name
	}

	var b strings.Builder
	b.WriteString(f.name)
	for i, p := range f.params {
		if i == 0 {
			b.WriteByte('=')
		} else {
			b.WriteByte(':')
		}
		if p.key != "" {
			b.WriteString(p.key)
			b.WriteByte('=')
		}
		if p.quoted {
			b.WriteByte('\'')
			b.WriteString(p.value)
			b.WriteByte('\'')
		} else {
			b.WriteString(p.value)
		}
	}
	return b.String()
}

// Chain is an ordered sequence of filters applied to one stream.
type Chain []*Filter

// String renders the chain comma-joined.
func (c Chain) String() string {
	parts := make([]string, 0, len(c))
	for _, f := range c {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, ",")
}

// Graph is a filter_complex: labeled chains joined with semicolons.
type Graph struct {
	chains []string
}

// Add appends one labeled chain, e.g. Add([]string{"0:a"}, chain, "voice")
// renders as [0:a]...[voice].
func (g *Graph) Add(inputs []string, chain Chain, outputs ...string) *Graph {
	var b strings.Builder
	for _, in := range inputs {
		fmt.Fprintf(&b, "[%s]", in)
	}
	b.WriteString(chain.String())
	for _, out := range outputs {
		fmt.Fprintf(&b, "[%s]", out)
	}
	g.chains = append(g.chains, b.String())
	return g
}

// String renders the full filter_complex argument.
func (g *Graph) String() string {
	return strings.Join(g.chains, ";")
}

// EscapeFilterValue escapes a value for use inside an ffmpeg filter
// description: backslash, quote, colon, comma, semicolon and brackets all
// have syntactic meaning there.
func EscapeFilterValue(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`,`, `\,`,
		`;`, `\;`,
		`[`, `\[`,
		`]`, `\]`,
	)
	return r.Replace(s)
}

// EscapeDrawText escapes caption text for a single-quoted drawtext text=
// parameter. Backslash is literal inside a quoted filtergraph section, so a
// quote cannot be backslash-escaped there; it is rendered by closing the
// quote, emitting \' and reopening. Percent and backslash are escaped at
// the drawtext expansion level.
func EscapeDrawText(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `'\''`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return r.Replace(s)
}

// formatFloat renders a float without scientific notation or trailing
// zeros, matching the values ffmpeg filter args expect.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if s == "-0" {
		return "0"
	}
	return s
}
