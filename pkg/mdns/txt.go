package mdns

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// ErrMalformedTXT is returned for TXT rdata that is not a valid sequence of
// KEY=VALUE strings.
var ErrMalformedTXT = errors.New("malformed TXT record")

// ParseTXT decodes TXT rdata into a property map.
//
// The rdata is a sequence of entries, each a one-byte length followed by that
// many bytes of KEY=VALUE. Entries are split on the first '='. An empty rdata
// or a single zero-length entry yields an empty map.
func ParseTXT(raw []byte) (map[string]string, error) {
	props := make(map[string]string)
	for i := 0; i < len(raw); {
		n := int(raw[i])
		i++
		if n == 0 {
			continue
		}
		if i+n > len(raw) {
			return nil, fmt.Errorf("%w: entry of %d bytes exceeds remaining %d", ErrMalformedTXT, n, len(raw)-i)
		}
		key, value, err := splitEntry(string(raw[i : i+n]))
		if err != nil {
			return nil, err
		}
		props[key] = value
		i += n
	}
	return props, nil
}

// PropertiesFromStrings builds a property map from already split TXT strings,
// as delivered by resolvers that decode the length prefixes themselves.
func PropertiesFromStrings(entries []string) (map[string]string, error) {
	props := make(map[string]string, len(entries))
	for _, entry := range entries {
		if entry == "" {
			continue
		}
		key, value, err := splitEntry(entry)
		if err != nil {
			return nil, err
		}
		props[key] = value
	}
	return props, nil
}

// EncodeTXT is the inverse of ParseTXT. Keys are written in sorted order.
func EncodeTXT(props map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var raw []byte
	for _, k := range keys {
		if k == "" || strings.Contains(k, "=") {
			return nil, fmt.Errorf("%w: invalid key %q", ErrMalformedTXT, k)
		}
		entry := k + "=" + props[k]
		if len(entry) > 255 {
			return nil, fmt.Errorf("%w: entry %q longer than 255 bytes", ErrMalformedTXT, k)
		}
		raw = append(raw, byte(len(entry)))
		raw = append(raw, entry...)
	}
	return raw, nil
}

func splitEntry(entry string) (string, string, error) {
	if !utf8.ValidString(entry) {
		return "", "", fmt.Errorf("%w: entry is not valid UTF-8", ErrMalformedTXT)
	}
	key, value, ok := strings.Cut(entry, "=")
	if !ok || key == "" {
		return "", "", fmt.Errorf("%w: entry %q has no key", ErrMalformedTXT, entry)
	}
	return key, value, nil
}
