package authz

import (
	"regexp"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Sensitive field name patterns. A JSON key matching any of these marks the
// path as sensitive for differential comparison.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)password`),
	regexp.MustCompile(`(?i)secret`),
	regexp.MustCompile(`(?i)token`),
	regexp.MustCompile(`(?i)api[_-]?key`),
	regexp.MustCompile(`(?i)private`),
	regexp.MustCompile(`(?i)internal`),
	regexp.MustCompile(`(?i)admin`),
	regexp.MustCompile(`(?i)ssn`),
	regexp.MustCompile(`(?i)credit[_-]?card`),
	regexp.MustCompile(`(?i)cvv`),
	regexp.MustCompile(`(?i)routing[_-]?number`),
	regexp.MustCompile(`(?i)account[_-]?number`),
}

func isSensitiveKey(key string) bool {
	for _, re := range sensitivePatterns {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// Facts is the structural digest of one response body used by the
// classifier. Key paths are dotted ("user.profile.email"); array elements
// contribute their keys under "path[]".
type Facts struct {
	Status       int
	Size         int
	BodyHash     uint64
	KeyPaths     map[string]bool
	Sensitive    map[string]bool
	ArrayLengths map[string]int
	IsJSON       bool
}

// ExtractFacts digests a snapshot. Non-JSON bodies still yield size, status
// and hash; structural fields stay empty.
func ExtractFacts(snap Snapshot) Facts {
	f := Facts{
		Status:       snap.Status,
		Size:         snap.Size,
		BodyHash:     snap.BodyHash,
		KeyPaths:     make(map[string]bool),
		Sensitive:    make(map[string]bool),
		ArrayLengths: make(map[string]int),
	}
	if len(snap.Body) == 0 || !gjson.ValidBytes(snap.Body) {
		return f
	}
	root := gjson.ParseBytes(snap.Body)
	if !root.IsObject() && !root.IsArray() {
		return f
	}
	f.IsJSON = true
	walkJSON(root, "", &f)
	return f
}

// walkJSON records every key path in the value tree. Array contents are
// collapsed: the array itself records its length, and element keys are
// merged under a single "path[]" prefix so per-element noise does not leak
// into the diff.
func walkJSON(v gjson.Result, prefix string, f *Facts) {
	switch {
	case v.IsObject():
		v.ForEach(func(key, value gjson.Result) bool {
			path := key.String()
			if prefix != "" {
				path = prefix + "." + key.String()
			}
			f.KeyPaths[path] = true
			if isSensitiveKey(key.String()) {
				f.Sensitive[path] = true
			}
			walkJSON(value, path, f)
			return true
		})
	case v.IsArray():
		elems := v.Array()
		f.ArrayLengths[prefix] = len(elems)
		elemPrefix := prefix + "[]"
		for _, elem := range elems {
			walkJSON(elem, elemPrefix, f)
		}
	}
}

// Comparison holds the differential facts between a privileged and a less
// privileged response to the same endpoint.
type Comparison struct {
	StatusA int
	StatusB int

	SameStatus bool
	SameBody   bool

	// Paths present in A but not B, after ignore filtering.
	ExtraPaths []string
	// Sensitive paths among ExtraPaths.
	ExtraSensitive []string
	// Paths present in B but not A. A lower role carrying keys the
	// privileged role never sees is its own leak signal.
	MissingPaths []string

	SizeDelta int
	SizeRatio float64

	ArrayGrowth map[string]int
}

// Compare diffs two fact digests, A being the more privileged side. The
// structural diff runs in both directions; paths matching any ignore
// pattern are dropped from it.
func Compare(a, b Facts, ignore []string) Comparison {
	c := Comparison{
		StatusA:     a.Status,
		StatusB:     b.Status,
		SameStatus:  a.Status == b.Status,
		SameBody:    a.BodyHash == b.BodyHash && a.Size == b.Size,
		SizeDelta:   a.Size - b.Size,
		ArrayGrowth: make(map[string]int),
	}
	if b.Size > 0 {
		c.SizeRatio = float64(a.Size) / float64(b.Size)
	} else if a.Size > 0 {
		c.SizeRatio = float64(a.Size)
	} else {
		c.SizeRatio = 1.0
	}

	for path := range a.KeyPaths {
		if b.KeyPaths[path] || ignored(path, ignore) {
			continue
		}
		c.ExtraPaths = append(c.ExtraPaths, path)
		if a.Sensitive[path] {
			c.ExtraSensitive = append(c.ExtraSensitive, path)
		}
	}
	for path := range b.KeyPaths {
		if a.KeyPaths[path] || ignored(path, ignore) {
			continue
		}
		c.MissingPaths = append(c.MissingPaths, path)
	}
	sort.Strings(c.ExtraPaths)
	sort.Strings(c.ExtraSensitive)
	sort.Strings(c.MissingPaths)

	for path, lenA := range a.ArrayLengths {
		if ignored(path, ignore) {
			continue
		}
		if lenB, ok := b.ArrayLengths[path]; ok && lenA > lenB {
			c.ArrayGrowth[path] = lenA - lenB
		}
	}

	return c
}

func ignored(path string, patterns []string) bool {
	for _, pat := range patterns {
		if pat == "" {
			continue
		}
		if path == pat || strings.HasPrefix(path, pat+".") || strings.HasPrefix(path, pat+"[]") {
			return true
		}
	}
	return false
}
