package cache

// tagIndex maps a tag to the set of keys whose current entry carries it.
//
// Invariant: key ∈ idx[tag] iff the entry stored under key lists tag.
// Every mutation goes through replace so insert, overwrite and removal
// cannot drift apart.
type tagIndex map[string]map[string]struct{}

func newTagIndex() tagIndex {
	return make(tagIndex)
}

// replace moves key from the old tag set to the new one. Removal passes
// next == nil; a fresh insert passes prev == nil.
func (idx tagIndex) replace(key string, prev, next []string) {
	for _, tag := range prev {
		keys, ok := idx[tag]
		if !ok {
			continue
		}
		delete(keys, key)
		if len(keys) == 0 {
			delete(idx, tag)
		}
	}
	for _, tag := range next {
		keys, ok := idx[tag]
		if !ok {
			keys = make(map[string]struct{})
			idx[tag] = keys
		}
		keys[key] = struct{}{}
	}
}

// union returns the deduplicated keys carrying any of tags.
func (idx tagIndex) union(tags []string) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, tag := range tags {
		for key := range idx[tag] {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	return keys
}
