package catalog

import (
	"slices"

	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/logging"
)

// DefaultCap bounds how many tools are shown to the model at once.
const DefaultCap = 15

// Selection is the outcome of filtering a catalog for one message.
type Selection struct {
	Tools      []domain.ToolDescriptor
	Categories []domain.ToolCategory
	Defaulted  bool // no category keyword matched the message
}

// Names returns the selected tool names in order.
func (s Selection) Names() []string {
	names := make([]string, len(s.Tools))
	for i, t := range s.Tools {
		names[i] = t.Name
	}
	return names
}

// Filter reduces a full catalog to a bounded, message-relevant subset.
type Filter struct {
	cap int
	log *logging.Logger
}

// NewFilter creates a filter. A non-positive cap uses DefaultCap.
func NewFilter(cap int, log *logging.Logger) *Filter {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &Filter{cap: cap, log: log.Sub("catalog")}
}

// Cap returns the maximum selection size.
func (f *Filter) Cap() int { return f.cap }

// Apply keeps the tools whose category is relevant to message, removes
// duplicate names (first wins) and truncates to the cap. The result is an
// order-preserving subset of catalog.
func (f *Filter) Apply(catalog []domain.ToolDescriptor, message string) Selection {
	cats, matched := RelevantCategories(message)
	sel := Selection{Categories: cats, Defaulted: !matched}

	seen := make(map[string]bool, len(catalog))
	for _, t := range catalog {
		if len(sel.Tools) >= f.cap {
			break
		}
		if seen[t.Name] {
			continue
		}
		if !slices.Contains(cats, Classify(t)) {
			continue
		}
		seen[t.Name] = true
		sel.Tools = append(sel.Tools, t)
	}

	f.log.Debug().
		Int("catalog", len(catalog)).
		Int("selected", len(sel.Tools)).
		Bool("defaulted", sel.Defaulted).
		Msg("catalog filtered")
	return sel
}
