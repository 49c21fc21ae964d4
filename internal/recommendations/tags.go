package recommendations

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gorm.io/datatypes"
)

// TagSet is a set of normalized (lower-cased, trimmed, non-empty) tags.
type TagSet map[string]struct{}

// Has reports whether tag is in the set. tag is normalized first.
func (s TagSet) Has(tag string) bool {
	_, ok := s[normalizeTag(tag)]
	return ok
}

// Sorted returns the tags in lexical order.
func (s TagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NormalizeTags turns any upstream tag representation into a TagSet.
//
// Accepted inputs are string slices, []any, comma-separated strings and JSON
// (raw bytes or a string holding an encoded array or string). Input that looks
// like JSON but does not parse is treated as a comma list. It never fails.
func NormalizeTags(raw any) TagSet {
	set := TagSet{}
	addTags(set, raw, 0)
	return set
}

const maxTagDepth = 4

func addTags(set TagSet, raw any, depth int) {
	if raw == nil || depth > maxTagDepth {
		return
	}

	switch v := raw.(type) {
	case TagSet:
		for t := range v {
			set[t] = struct{}{}
		}
	case []string:
		for _, t := range v {
			addTag(set, t)
		}
	case []any:
		for _, item := range v {
			switch item := item.(type) {
			case nil:
			case string:
				addTag(set, item)
			case map[string]any:
				addTags(set, item, depth+1)
			default:
				addTag(set, fmt.Sprint(item))
			}
		}
	case string:
		addTagString(set, v, depth)
	case []byte:
		addTagString(set, string(v), depth)
	case json.RawMessage:
		addTagString(set, string(v), depth)
	case datatypes.JSON:
		addTagString(set, string(v), depth)
	case *string:
		if v != nil {
			addTagString(set, *v, depth)
		}
	case map[string]any:
		// Tag objects carry their label under "name".
		if name, ok := v["name"].(string); ok {
			addTag(set, name)
		}
	default:
		addTag(set, fmt.Sprint(v))
	}
}

func addTagString(set TagSet, s string, depth int) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return
	}

	if looksLikeJSON(s) {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err == nil {
			if inner, ok := decoded.(string); ok {
				addTagString(set, inner, depth+1)
				return
			}
			addTags(set, decoded, depth+1)
			return
		}
		s = strings.Trim(s, "[]")
	}

	for _, part := range strings.Split(s, ",") {
		addTag(set, strings.Trim(strings.TrimSpace(part), `"'`))
	}
}

func looksLikeJSON(s string) bool {
	switch s[0] {
	case '[', '"', '{':
		return true
	}
	return false
}

func addTag(set TagSet, t string) {
	if t = normalizeTag(t); t != "" {
		set[t] = struct{}{}
	}
}

func normalizeTag(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
