// Package partition implements the Partition Grouper (spec §4.1): a pure
// function that parses staging object keys into (partition, key) pairs and
// groups keys by partition, preserving input order within each group.
package partition

import "regexp"

// keyPattern anchors on the staging namespace: data/<partition>/<rest>.
// A partition segment is any non-empty run of non-slash characters.
var keyPattern = regexp.MustCompile(`^data/([^/]+)/`)

// Group parses each key in keys with the anchored pattern ^data/([^/]+)/
// and returns a mapping from partition to the keys in that partition, in
// their original relative order. Keys that do not match the pattern, or
// whose partition segment is empty, are silently dropped — they are not
// in the staging namespace and must not be touched (spec §4.1).
//
// Group cannot fail. An empty result means "nothing to do".
func Group(keys []string) map[string][]string {
	groups := make(map[string][]string)
	for _, key := range keys {
		m := keyPattern.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		part := m[1]
		if part == "" {
			continue
		}
		groups[part] = append(groups[part], key)
	}
	return groups
}

// Of returns the partition segment of key, and whether key is well-formed
// staging key (matches ^data/([^/]+)/ with a non-empty segment).
func Of(key string) (string, bool) {
	m := keyPattern.FindStringSubmatch(key)
	if m == nil || m[1] == "" {
		return "", false
	}
	return m[1], true
}
