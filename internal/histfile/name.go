// Package histfile normalizes model history filenames and computes pairwise
// correspondences between two sets of them. Identity is structural: a file is
// identified by the portion of its basename starting at the model component
// tag, with any run-specific prefix and save-suffix stripped.
package histfile

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrModelTagNotFound indicates a filename that does not contain the model
// component tag it was listed under. This is a configuration or archive bug,
// not a recoverable comparison outcome.
var ErrModelTagNotFound = errors.New("model tag not found in filename")

// ErrSuffixMismatch indicates a filename that was listed under a save-suffix
// it does not actually carry.
var ErrSuffixMismatch = errors.New("filename does not end with expected suffix")

// Identity is the parsed, canonical identity of one history file.
//
// Key is the normalized key used for matching. For ensemble-member files of
// the form <stem>_NNNN<rest> (rest ending in ".nc"), Instance holds the
// "_NNNN" token and Stripped holds the key with the instance token removed;
// for single-instance files Instance is empty and Stripped equals Key.
type Identity struct {
	Raw      string
	Key      string
	Instance string
	Stripped string
}

// MultiInstance reports whether this file carries an ensemble-member index.
func (id Identity) MultiInstance() bool { return id.Instance != "" }

// ParseName normalizes one filename against a model tag and optional
// save-suffix, producing its Identity.
//
// The key starts at the last occurrence of the model tag in the basename.
// A non-empty suffix must be a trailing substring of the key and is stripped
// together with the '.' delimiter before it.
func ParseName(model, name, suffix string) (Identity, error) {
	base := filepath.Base(name)
	offset := strings.LastIndex(base, model)
	if offset < 0 {
		return Identity{}, fmt.Errorf("%w: tag %q in %q", ErrModelTagNotFound, model, base)
	}
	key := base[offset:]
	if suffix != "" {
		if !strings.HasSuffix(key, suffix) {
			return Identity{}, fmt.Errorf("%w: %q missing suffix %q", ErrSuffixMismatch, name, suffix)
		}
		key = key[:len(key)-len(suffix)-1]
	}

	id := Identity{Raw: name, Key: key, Stripped: key}
	if stem, index, rest, ok := splitInstance(key); ok {
		id.Instance = index
		id.Stripped = stem + rest
	}
	return id, nil
}

// splitInstance splits a normalized key of the form <stem>_NNNN<rest> where
// NNNN is exactly four digits and rest ends in ".nc". The last such token in
// the key wins. ok is false for single-instance keys.
func splitInstance(key string) (stem, index, rest string, ok bool) {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] != '_' {
			continue
		}
		if i == 0 || i+5 > len(key) {
			continue
		}
		if !allDigits(key[i+1 : i+5]) {
			continue
		}
		r := key[i+5:]
		if len(r) < 4 || !strings.HasSuffix(r, ".nc") {
			continue
		}
		return key[:i], key[i : i+5], r, true
	}
	return "", "", "", false
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
