// Package mount resolves document paths against a tenant's mount table
// (fstab): the mapping from path prefixes to external content origins.
package mount

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mount maps one path prefix to an origin.
type Mount struct {
	Path string `yaml:"path"`
	Type string `yaml:"type"`
	URL  string `yaml:"url"`
}

// Table is a tenant's full mount configuration.
type Table struct {
	Mounts []Mount `yaml:"mounts"`
}

// Match is a resolved mount plus the path remainder below it.
type Match struct {
	Mount   Mount
	RelPath string
}

// ParseTable decodes a YAML fstab.
func ParseTable(b []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("parse mount table: %w", err)
	}
	for i, m := range t.Mounts {
		if m.Path == "" || m.URL == "" {
			return nil, fmt.Errorf("mount %d: path and url are required", i)
		}
	}
	return &t, nil
}

// Resolve matches docPath against the table, longest prefix first. The match
// is on whole path segments: /mnt matches /mnt/a.md but not /mntx/a.md.
func (t *Table) Resolve(docPath string) (*Match, bool) {
	var best *Mount
	for i := range t.Mounts {
		m := &t.Mounts[i]
		if !segmentPrefix(docPath, m.Path) {
			continue
		}
		if best == nil || len(m.Path) > len(best.Path) {
			best = m
		}
	}
	if best == nil {
		return nil, false
	}
	rel := strings.TrimPrefix(docPath, strings.TrimSuffix(best.Path, "/"))
	rel = strings.TrimPrefix(rel, "/")
	return &Match{Mount: *best, RelPath: rel}, true
}

func segmentPrefix(p, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	return len(p) == len(prefix) || p[len(prefix)] == '/'
}
