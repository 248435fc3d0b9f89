package normalize

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// DictionaryFile is the on-disk shape of the canonicalization dictionary.
type DictionaryFile struct {
	Exact    map[string]string `yaml:"exact"`
	Prefix   map[string]string `yaml:"prefix"`
	Contains map[string]string `yaml:"contains"`
}

type entry struct {
	key  string
	name string
}

// Dictionary maps raw merchant strings to canonical display names.
// It is immutable after construction and safe for concurrent use.
type Dictionary struct {
	exact    map[string]string
	prefix   []entry
	contains []entry
}

// NewDictionary builds a Dictionary. Keys are normalized the same way lookups
// are, so a full-width key matches its half-width spelling.
func NewDictionary(f DictionaryFile) *Dictionary {
	d := &Dictionary{exact: make(map[string]string, len(f.Exact))}
	for k, v := range f.Exact {
		if key := lookupKey(k); key != "" {
			d.exact[key] = v
		}
	}
	d.prefix = sortedEntries(f.Prefix)
	d.contains = sortedEntries(f.Contains)
	return d
}

// sortedEntries orders keys longest first, then lexically, so the most
// specific entry wins and iteration order never depends on map order.
func sortedEntries(m map[string]string) []entry {
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		if key := lookupKey(k); key != "" {
			entries = append(entries, entry{key: key, name: v})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if len(entries[i].key) != len(entries[j].key) {
			return len(entries[i].key) > len(entries[j].key)
		}
		return entries[i].key < entries[j].key
	})
	return entries
}

// Merchant returns the canonical name for raw. Tiers are consulted strictly
// in order: exact, prefix, contains. Without a hit the normalized, trimmed
// input is returned unchanged.
func (d *Dictionary) Merchant(raw string) string {
	cleaned := strings.TrimSpace(norm.NFKC.String(raw))
	if d == nil || cleaned == "" {
		return cleaned
	}
	key := strings.ToUpper(cleaned)

	if name, ok := d.exact[key]; ok {
		return name
	}
	for _, e := range d.prefix {
		if strings.HasPrefix(key, e.key) {
			return e.name
		}
	}
	for _, e := range d.contains {
		if strings.Contains(key, e.key) {
			return e.name
		}
	}
	return cleaned
}

// Len returns the number of entries across all tiers.
func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.exact) + len(d.prefix) + len(d.contains)
}

func lookupKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(norm.NFKC.String(s)))
}

// ReadDictionary decodes a YAML dictionary.
func ReadDictionary(r io.Reader) (*Dictionary, error) {
	var f DictionaryFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding dictionary: %w", err)
	}
	return NewDictionary(f), nil
}

// LoadDictionary reads a YAML dictionary file from disk.
func LoadDictionary(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening dictionary: %w", err)
	}
	defer f.Close()

	d, err := ReadDictionary(f)
	if err != nil {
		return nil, fmt.Errorf("reading dictionary %s: %w", path, err)
	}
	return d, nil
}

// SaveDictionary writes f as YAML.
func SaveDictionary(path string, f DictionaryFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling dictionary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing dictionary: %w", err)
	}
	return nil
}

// DefaultDictionary returns the built-in entries written by "mailtx init".
func DefaultDictionary() DictionaryFile {
	return DictionaryFile{
		Exact: map[string]string{
			"AMAZON.CO.JP":     "Amazon",
			"AMAZON DOWNLOADS": "Amazon Digital",
			"APPLE.COM/BILL":   "Apple",
			"NETFLIX.COM":      "Netflix",
			"SPOTIFY":          "Spotify",
			"楽天市場":             "楽天市場",
			"ヤフーショッピング":        "Yahoo!ショッピング",
		},
		Prefix: map[string]string{
			"AMAZON":    "Amazon",
			"AMZN":      "Amazon",
			"GOOGLE *":  "Google",
			"OPENAI":    "OpenAI",
			"ADOBE":     "Adobe",
			"MICROSOFT": "Microsoft",
			"ｱﾏｿﾞﾝ":     "Amazon",
			"ユーチューブ":    "YouTube",
			"セブン-イレブン":  "セブン-イレブン",
			"ファミリーマート":  "ファミリーマート",
		},
		Contains: map[string]string{
			"NETFLIX": "Netflix",
			"SPOTIFY": "Spotify",
			"YOUTUBE": "YouTube",
			"DISNEY":  "Disney+",
			"CHATGPT": "OpenAI",
			"ICLOUD":  "Apple",
			"ITUNES":  "Apple",
			"UBER":    "Uber",
			"ローソン":    "ローソン",
		},
	}
}
