package ffmpeg

import (
	"fmt"
	"strconv"
	"strings"
)

// FilterBuilder helps construct a linear ffmpeg filter chain
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// Scale adds a scale filter
func (fb *FilterBuilder) Scale(width, height int) *FilterBuilder {
	if width <= 0 || height <= 0 {
		// Return self without adding filter - allows chaining to continue
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:%d", width, height))
	return fb
}

// SAR forces the sample aspect ratio
func (fb *FilterBuilder) SAR(num, den int) *FilterBuilder {
	if num <= 0 || den <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("setsar=%d/%d", num, den))
	return fb
}

// Format adds a pixel format conversion
func (fb *FilterBuilder) Format(pixFmt string) *FilterBuilder {
	if pixFmt == "" {
		return fb
	}
	fb.filters = append(fb.filters, "format="+pixFmt)
	return fb
}

// Filter adds a named filter with key=value options in the given order. Values
// are escaped for use inside a filtergraph.
func (fb *FilterBuilder) Filter(name string, opts ...Option) *FilterBuilder {
	if len(opts) == 0 {
		fb.filters = append(fb.filters, name)
		return fb
	}
	parts := make([]string, len(opts))
	for i, o := range opts {
		parts[i] = o.Key + "=" + EscapeFilterValue(o.Value)
	}
	fb.filters = append(fb.filters, name+"="+strings.Join(parts, ":"))
	return fb
}

// Custom adds a custom filter string
func (fb *FilterBuilder) Custom(filter string) *FilterBuilder {
	fb.filters = append(fb.filters, filter)
	return fb
}

// Len returns the number of filters added so far
func (fb *FilterBuilder) Len() int {
	return len(fb.filters)
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

// Option is a single filter option
type Option struct {
	Key   string
	Value string
}

// Opt builds an Option
func Opt(key, value string) Option {
	return Option{Key: key, Value: value}
}

// OptFloat builds an Option from a number, trimmed to millisecond precision
func OptFloat(key string, v float64) Option {
	return Option{Key: key, Value: formatFloat(v)}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
