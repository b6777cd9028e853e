package replica

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Layout maps a location key to the status of the replica there.
type Layout map[string]Status

// Keys returns the location keys in sorted order.
func (l Layout) Keys() []string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String renders the layout in scenario notation, keys sorted.
func (l Layout) String() string {
	parts := make([]string, 0, len(l))
	for _, k := range l.Keys() {
		parts = append(parts, fmt.Sprintf("%s: %s", k, l[k].Symbol()))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Replica is one row of a replica listing.
type Replica struct {
	Number    int
	Hierarchy string
	Status    Status
}

// Resource returns the leaf of the replica's resource hierarchy.
func (r Replica) Resource() string {
	if i := strings.LastIndex(r.Hierarchy, ";"); i >= 0 {
		return r.Hierarchy[i+1:]
	}
	return r.Hierarchy
}

// Listing parses replica listings with a regular expression. The pattern
// must have named groups "resource" and "status"; a "number" group is
// optional. Lines that do not match are ignored.
type Listing struct {
	pattern  *regexp.Regexp
	resource int
	status   int
	number   int
}

// NewListing compiles the pattern and checks its groups.
func NewListing(pattern string) (*Listing, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("listing pattern: %w", err)
	}
	l := &Listing{
		pattern:  re,
		resource: re.SubexpIndex("resource"),
		status:   re.SubexpIndex("status"),
		number:   re.SubexpIndex("number"),
	}
	if l.resource < 0 || l.status < 0 {
		return nil, fmt.Errorf("listing pattern %q needs named groups resource and status", pattern)
	}
	return l, nil
}

// Parse returns every replica found in text, in listing order.
func (l *Listing) Parse(text string) []Replica {
	var replicas []Replica
	for _, line := range strings.Split(text, "\n") {
		m := l.pattern.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		r := Replica{
			Number:    len(replicas),
			Hierarchy: m[l.resource],
			Status:    ParseListed(m[l.status]),
		}
		if l.number >= 0 {
			if n, err := strconv.Atoi(m[l.number]); err == nil {
				r.Number = n
			}
		}
		replicas = append(replicas, r)
	}
	return replicas
}

// Observe reduces replicas to a layout over the given locations. locations
// maps a location key to a resource name. A location with no replica is
// Absent; with several, the first listed wins.
func Observe(replicas []Replica, locations map[string]string) Layout {
	byResource := make(map[string]Status, len(replicas))
	for _, r := range replicas {
		if _, seen := byResource[r.Resource()]; !seen {
			byResource[r.Resource()] = r.Status
		}
	}
	layout := make(Layout, len(locations))
	for key, resource := range locations {
		if st, ok := byResource[resource]; ok {
			layout[key] = st
		} else {
			layout[key] = Absent
		}
	}
	return layout
}
