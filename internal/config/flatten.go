package config

// Pair is a single key/value override, e.g. one local.conf assignment.
type Pair struct {
	Key   string
	Value string
}

// Flatten turns a list of override entries into an ordered list of pairs.
//
// Every entry is either a [key, value] pair or a group of such pairs. Groups
// usually come from YAML aliases:
//
//	common: &common
//	  - [MACHINE, qemux86-64]
//	  - [DISTRO, poky]
//	conf:
//	  - *common
//	  - [IMAGE_FSTYPES, ext4]
//
// Only one level of grouping is unwrapped; a group nested in a group is an
// error. Order and duplicates are preserved.
func Flatten(v Value) ([]Pair, error) {
	entries, err := v.Items()
	if err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsList() {
			return nil, Errorf(entry.Mark(), "expected array on %q node", entry.describe())
		}
		if entry.Len() == 0 {
			return nil, Errorf(entry.Mark(), "empty entry at %q", entry.describe())
		}

		if !entry.Index(0).IsList() {
			p, err := pairOf(entry)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, p)
			continue
		}

		inner, _ := entry.Items()
		for _, x := range inner {
			if !x.IsList() {
				return nil, Errorf(x.Mark(), "expected array on %q node", x.describe())
			}
			if x.Len() > 0 && x.Index(0).IsList() {
				return nil, Errorf(x.Mark(), "too deeply nested entry at %q", x.describe())
			}
			p, err := pairOf(x)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, p)
		}
	}
	return pairs, nil
}

func pairOf(v Value) (Pair, error) {
	if v.Len() != 2 {
		return Pair{}, Errorf(v.Mark(),
			"expected [key, value] at %q, got %d elements", v.describe(), v.Len())
	}
	k, err := v.Index(0).AsString()
	if err != nil {
		return Pair{}, err
	}
	val, err := v.Index(1).AsString()
	if err != nil {
		return Pair{}, err
	}
	return Pair{Key: k, Value: val}, nil
}
