package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JakeFAU/voterstat/internal/lookup"
)

// Resolve returns the layout registered under name. Custom layouts (usually
// from the config file) shadow built-ins of the same name. Names are matched
// case-insensitively. The resolved layout is validated before it is returned.
func Resolve(name string, custom map[string]Layout) (Layout, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultLayout
	}
	layout, ok := lookupLayout(key, custom)
	if !ok {
		return nil, fmt.Errorf("%w: unknown layout %q (known: %s)",
			lookup.ErrConfiguration, name, strings.Join(Names(custom), ", "))
	}
	if err := Validate(layout); err != nil {
		return nil, fmt.Errorf("layout %q: %w", key, err)
	}
	return layout.clone(), nil
}

// Validate checks that layout names only canonical attributes, defines every
// one of them, and uses non-negative indexes.
func Validate(layout Layout) error {
	if unknown := unknownAttributes(layout); len(unknown) > 0 {
		return fmt.Errorf("%w: invalid field(s): %s", lookup.ErrConfiguration, strings.Join(unknown, ", "))
	}
	var missing []string
	for _, attr := range Attributes {
		idx, ok := layout[attr]
		if !ok {
			missing = append(missing, attr)
			continue
		}
		if idx < 0 {
			return fmt.Errorf("%w: %s has negative column index %d", lookup.ErrConfiguration, attr, idx)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing attribute: %s", lookup.ErrConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// Names lists every resolvable layout name, sorted.
func Names(custom map[string]Layout) []string {
	seen := make(map[string]struct{}, len(builtins)+len(custom))
	for name := range builtins {
		seen[name] = struct{}{}
	}
	for name := range custom {
		seen[strings.ToLower(name)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// MaxIndex returns the largest column index referenced by layout.
func (l Layout) MaxIndex() int {
	highest := -1
	for _, idx := range l {
		if idx > highest {
			highest = idx
		}
	}
	return highest
}

func (l Layout) clone() Layout {
	out := make(Layout, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

func lookupLayout(key string, custom map[string]Layout) (Layout, bool) {
	for name, layout := range custom {
		if strings.ToLower(name) == key {
			return layout, true
		}
	}
	layout, ok := builtins[key]
	return layout, ok
}
