// Package config loads converter configuration files.
package config

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// UIDMap maps detector uids to table names.
type UIDMap map[int]string

// LoadUIDMap reads a YAML uid map file of the form
//
//	5: det00
//	7: det01
func LoadUIDMap(path string) (UIDMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseUIDMap(data)
}

// ParseUIDMap parses the YAML uid map document in data.
func ParseUIDMap(data []byte) (UIDMap, error) {
	m := UIDMap{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing uid map: %w", err)
	}

	seen := make(map[string]int, len(m))
	for uid, name := range m {
		if name == "" {
			return nil, fmt.Errorf("uid %d: empty table name", uid)
		}
		if other, ok := seen[name]; ok {
			return nil, fmt.Errorf("table %q is mapped by uid %d and %d", name, min(uid, other), max(uid, other))
		}
		seen[name] = uid
	}
	return m, nil
}

// UIDs returns the uids in ascending order.
func (m UIDMap) UIDs() []int {
	uids := make([]int, 0, len(m))
	for uid := range m {
		uids = append(uids, uid)
	}
	sort.Ints(uids)
	return uids
}
