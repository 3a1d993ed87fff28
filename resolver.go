package litdrive

import (
	"context"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// The backend key space is partitioned per writer: every key is
// "<component>/<relative path>". The helpers here compose and decompose
// keys and resolve which component namespaces hold a path.

func backendKey(component, rel string) string {
	return component + "/" + rel
}

func splitKey(key string) (component, rel string, ok bool) {
	i := strings.Index(key, "/")
	if i <= 0 || i == len(key)-1 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}

// normalizeRel cleans a caller-supplied relative path to the slash-separated
// form used in backend keys. "." and "/" normalize to the empty path (the
// drive root).
func normalizeRel(p string) (string, error) {
	cleaned := path.Clean(filepath.ToSlash(strings.TrimSpace(p)))
	if cleaned == "." || cleaned == "/" {
		return "", nil
	}

	if path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", InvalidPathError{Path: p}
	}

	return cleaned, nil
}

// matchesRel reports whether a stored path equals rel or lies below it.
func matchesRel(stored, rel string) bool {
	if rel == "" {
		return true
	}
	return stored == rel || strings.HasPrefix(stored, rel+"/")
}

// owners returns the component namespaces holding rel, sorted. When pinned
// is non-empty, only that namespace is considered.
func owners(ctx context.Context, b Backend, rel, pinned string) ([]string, error) {
	keys, err := b.List(ctx, pinned)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{})
	for _, key := range keys {
		component, stored, ok := splitKey(key)
		if !ok {
			continue
		}
		if pinned != "" && component != pinned {
			continue
		}
		if matchesRel(stored, rel) {
			set[component] = struct{}{}
		}
	}

	components := make([]string, 0, len(set))
	for component := range set {
		components = append(components, component)
	}
	sort.Strings(components)

	return components, nil
}

// namespaceFiles returns the stored paths below rel within a single
// component namespace, sorted.
func namespaceFiles(ctx context.Context, b Backend, component, rel string) ([]string, error) {
	keys, err := b.List(ctx, component)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, key := range keys {
		comp, stored, ok := splitKey(key)
		if !ok || comp != component {
			continue
		}
		if matchesRel(stored, rel) {
			files = append(files, stored)
		}
	}
	sort.Strings(files)

	return files, nil
}

// ownerIndex maps every stored path to the sorted components holding it.
func ownerIndex(ctx context.Context, b Backend) (map[string][]string, error) {
	keys, err := b.List(ctx, "")
	if err != nil {
		return nil, err
	}

	index := make(map[string][]string)
	for _, key := range keys {
		component, stored, ok := splitKey(key)
		if !ok {
			continue
		}
		index[stored] = append(index[stored], component)
	}
	for _, components := range index {
		sort.Strings(components)
	}

	return index, nil
}
