package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/tickcheck/internal/verify"
)

// segment is one step of a field path: a map key, an array index, or an
// array filter selecting the first element whose field equals a value.
type segment struct {
	key      string
	index    int
	isIndex  bool
	filterK  string
	filterV  string
	isFilter bool
}

// parsePath splits a field path such as "assignedTo.id", "0.id" or
// "[role=EMPLOYEE].id" into segments. The empty path and "." address the
// whole document.
func parsePath(path string) ([]segment, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "." {
		return nil, nil
	}

	var segs []segment
	rest := path
	for rest != "" {
		switch {
		case rest[0] == '.':
			rest = rest[1:]
			if rest == "" || rest[0] == '.' {
				return nil, fmt.Errorf("path %q: empty segment", path)
			}
		case rest[0] == '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("path %q: unterminated '['", path)
			}
			inner := rest[1:end]
			rest = rest[end+1:]
			if k, v, ok := strings.Cut(inner, "="); ok {
				if k == "" {
					return nil, fmt.Errorf("path %q: filter needs a field name", path)
				}
				segs = append(segs, segment{filterK: k, filterV: v, isFilter: true})
				continue
			}
			n, err := strconv.Atoi(inner)
			if err != nil || n < 0 {
				return nil, fmt.Errorf("path %q: bad index %q", path, inner)
			}
			segs = append(segs, segment{index: n, isIndex: true})
		default:
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			name := rest[:end]
			rest = rest[end:]
			if n, err := strconv.Atoi(name); err == nil && n >= 0 {
				segs = append(segs, segment{index: n, isIndex: true, key: name})
			} else {
				segs = append(segs, segment{key: name})
			}
		}
	}
	return segs, nil
}

// Lookup resolves path in a decoded JSON document. It reports false when
// any segment is missing; a present JSON null resolves to nil, true.
func Lookup(doc any, path string) (any, bool, error) {
	segs, err := parsePath(path)
	if err != nil {
		return nil, false, err
	}
	cur := doc
	for _, s := range segs {
		next, ok := step(cur, s)
		if !ok {
			return nil, false, nil
		}
		cur = next
	}
	return cur, true, nil
}

func step(cur any, s segment) (any, bool) {
	switch node := cur.(type) {
	case map[string]any:
		if s.isFilter {
			return nil, false
		}
		v, ok := node[s.key]
		return v, ok
	case []any:
		switch {
		case s.isFilter:
			for _, el := range node {
				obj, ok := el.(map[string]any)
				if !ok {
					continue
				}
				if v, ok := obj[s.filterK]; ok && verify.Normalize(v) == s.filterV {
					return obj, true
				}
			}
			return nil, false
		case s.isIndex:
			if s.index >= len(node) {
				return nil, false
			}
			return node[s.index], true
		}
	}
	return nil, false
}
