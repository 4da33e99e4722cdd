package httpadmin

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/nekodylan/OVL-MD/internal/registry"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Filters captures the parsed query parameters of a command listing.
type Filters struct {
	Categories []string
	Names      []string
	Premium    *bool
	Limit      int
}

// ParseFilters parses query parameters into a Filters struct.
func ParseFilters(values url.Values) (Filters, error) {
	f := Filters{Limit: defaultLimit}

	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return Filters{}, errors.New("limit must be a positive integer")
		}
		if n > maxLimit {
			n = maxLimit
		}
		f.Limit = n
	}

	if raw := values.Get("premium"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Filters{}, errors.New("premium must be true or false")
		}
		f.Premium = &v
	}

	f.Categories = collect(values, "category")
	f.Names = collect(values, "name")
	return f, nil
}

// collect gathers the comma-separated, lower-cased, de-duplicated values of key.
func collect(values url.Values, key string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range values[key] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			if _, exists := seen[part]; !exists {
				out = append(out, part)
				seen[part] = struct{}{}
			}
		}
	}
	return out
}

// Matches reports whether the command satisfies the filters. Names match on a
// substring of the name or any alias.
func (f Filters) Matches(d registry.Descriptor) bool {
	if len(f.Categories) > 0 {
		cat := strings.ToLower(registry.CategoryOf(d))
		match := false
		for _, c := range f.Categories {
			if c == cat {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}

	if len(f.Names) > 0 {
		match := false
		for _, n := range f.Names {
			if strings.Contains(d.Name, n) {
				match = true
				break
			}
			for _, a := range d.Aliases {
				if strings.Contains(a, n) {
					match = true
					break
				}
			}
		}
		if !match {
			return false
		}
	}

	if f.Premium != nil && d.PremiumOnly != *f.Premium {
		return false
	}
	return true
}
