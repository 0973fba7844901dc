// Package archive lists candidate history filenames for one model component.
// The comparison core only consumes the Archive interface; DirArchive is the
// stand-alone implementation that scans a flat run or baseline directory.
package archive

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Archive produces candidate history filenames (basenames, relative to dir).
type Archive interface {
	// GetLatestHistFiles returns the most recent batch of history files for
	// one component: one file per (instance, history slot), newest stamp
	// wins. suffix selects saved batches; empty selects unsuffixed files.
	GetLatestHistFiles(caseName, model, dir, suffix, refCase string) ([]string, error)

	// GetAllHistFiles returns every file belonging to the run for one
	// component, including restarts and initial files.
	GetAllHistFiles(model, dir, refCase string) ([]string, error)
}

// DirArchive scans a directory for history files by name structure.
type DirArchive struct {
	Log *zap.Logger
}

// NewDirArchive returns a directory-scanning Archive.
func NewDirArchive(log *zap.Logger) *DirArchive {
	if log == nil {
		log = zap.NewNop()
	}
	return &DirArchive{Log: log}
}

// histInfo is the parsed structure of one history filename.
type histInfo struct {
	name     string
	instance string // "_NNNN" or ""
	slot     string // type token: h, h0, r, rh0, i, ...
	stamp    string // timestamp token between slot and ".nc"
}

func (a *DirArchive) GetLatestHistFiles(caseName, model, dir, suffix, refCase string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	// Newest stamp per (instance, slot) group.
	latest := make(map[string]histInfo)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if excludedRefCase(name, caseName, refCase) {
			continue
		}
		info, ok := parseHist(name, model, suffix)
		if !ok || !strings.HasPrefix(info.slot, "h") {
			continue
		}
		group := info.instance + "|" + info.slot
		if prev, seen := latest[group]; !seen || info.stamp > prev.stamp {
			latest[group] = info
		}
	}

	out := make([]string, 0, len(latest))
	for _, info := range latest {
		out = append(out, info.name)
	}
	sort.Strings(out)
	a.Log.Debug("latest hist files",
		zap.String("model", model), zap.String("dir", dir), zap.Strings("files", out))
	return out, nil
}

func (a *DirArchive) GetAllHistFiles(model, dir, refCase string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if excludedRefCase(name, "", refCase) {
			continue
		}
		if _, ok := parseHist(name, model, ""); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

// excludedRefCase filters out files that belong to the reference case the run
// was branched from.
func excludedRefCase(name, caseName, refCase string) bool {
	if refCase == "" || refCase == caseName {
		return false
	}
	return strings.HasPrefix(name, refCase+".")
}

// parseHist decides whether name is a history-family file for model and
// splits it. The expected shape is
//
//	[<case>.]<model>[_NNNN].<slot>.<stamp>.nc[.<suffix>]
//
// where slot is a short alphanumeric type token (h0, r, rh1, i, ...). When
// suffix is empty, files carrying an extra trailing suffix are rejected so
// saved batches do not leak into the live listing.
func parseHist(name, model, suffix string) (histInfo, bool) {
	rest := name
	if suffix != "" {
		if !strings.HasSuffix(rest, "."+suffix) {
			return histInfo{}, false
		}
		rest = rest[:len(rest)-len(suffix)-1]
	}
	if !strings.HasSuffix(rest, ".nc") {
		return histInfo{}, false
	}

	idx := strings.LastIndex(rest, model)
	if idx < 0 {
		return histInfo{}, false
	}
	if idx > 0 && rest[idx-1] != '.' {
		return histInfo{}, false
	}

	tail := rest[idx+len(model):]
	info := histInfo{name: name}

	if len(tail) >= 5 && tail[0] == '_' && digits(tail[1:5]) {
		info.instance = tail[:5]
		tail = tail[5:]
	}
	if len(tail) == 0 || tail[0] != '.' {
		return histInfo{}, false
	}
	tail = tail[1:]

	slot, after, ok := strings.Cut(tail, ".")
	if !ok || !slotToken(slot) {
		return histInfo{}, false
	}
	info.slot = slot
	info.stamp = strings.TrimSuffix(after, ".nc")
	return info, true
}

// slotToken accepts the short history/restart type tokens: a leading letter
// followed by at most three letters or digits.
func slotToken(s string) bool {
	if len(s) == 0 || len(s) > 4 {
		return false
	}
	if s[0] < 'a' || s[0] > 'z' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}
