package merge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/dabstractor/jin/internal/jinerr"
)

// deepMerge applies spec §4.E step 2's RFC-7396-like semantics to two
// already-decoded documents: overlay wins over base at every key,
// objects merge key-wise recursively, arrays and scalars are replaced
// wholesale.
//
// keepNull controls how an explicit null at a key is represented: when
// false the key is deleted from the result outright (used for
// YAML/TOML/INI, since TOML has no null literal to round-trip); when
// true the null is retained as a value so the caller can apply the
// deletion later at the byte level (used for JSON, via
// applyJSONTombstone/sjson, so the "null deletes the key" rule is a
// visible targeted removal rather than an artifact of map iteration).
func deepMerge(base, overlay any, keepNull bool) any {
	overlayMap, overlayIsMap := overlay.(map[string]any)
	baseMap, baseIsMap := base.(map[string]any)
	if overlayIsMap && baseIsMap {
		merged := make(map[string]any, len(baseMap))
		for k, v := range baseMap {
			merged[k] = v
		}
		for k, v := range overlayMap {
			if v == nil {
				if keepNull {
					merged[k] = nil
				} else {
					delete(merged, k)
				}
				continue
			}
			if existing, ok := merged[k]; ok {
				merged[k] = deepMerge(existing, v, keepNull)
			} else {
				merged[k] = v
			}
		}
		return merged
	}
	// Arrays and scalars: higher precedence replaces wholesale.
	return overlay
}

// mergeAll folds a precedence-ordered sequence of decoded documents into
// one, left to right (lowest precedence first).
func mergeAll(docs []any, keepNull bool) any {
	if len(docs) == 0 {
		return map[string]any{}
	}
	acc := docs[0]
	for _, d := range docs[1:] {
		acc = deepMerge(acc, d, keepNull)
	}
	return acc
}

// collectNullPaths walks a decoded document collecting the dotted
// gjson/sjson-style path of every key whose merged value is a literal
// nil, for the JSON tombstone pass.
func collectNullPaths(v any, prefix string) []string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	var out []string
	for k, val := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if val == nil {
			out = append(out, path)
			continue
		}
		out = append(out, collectNullPaths(val, path)...)
	}
	return out
}

// codec converts between a structured format's bytes and a generic
// decoded document (map[string]any / []any / scalars), the common
// representation deepMerge operates over.
type codec interface {
	decode(data []byte) (any, error)
	encode(v any) ([]byte, error)
}

func codecFor(f Format) codec {
	switch f {
	case FormatJSON:
		return jsonCodec{}
	case FormatYAML:
		return yamlCodec{}
	case FormatTOML:
		return tomlCodec{}
	case FormatINI:
		return iniCodec{}
	default:
		return nil
	}
}

type jsonCodec struct{}

func (jsonCodec) decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (jsonCodec) encode(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

type yamlCodec struct{}

func (yamlCodec) decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return normalizeYAML(v), nil
}

// normalizeYAML converts yaml.v3's map[string]interface{} (already the
// default for mapping nodes) recursively so nested maps compare/merge
// uniformly with the JSON/TOML decoders' map[string]any shape.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

func (yamlCodec) encode(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

type tomlCodec struct{}

func (tomlCodec) decode(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}
	var v map[string]any
	if _, err := toml.Decode(string(data), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func (tomlCodec) encode(v any) ([]byte, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("toml output must be a table at the document root")
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type iniCodec struct{}

// decode flattens an INI file into a two-level map: section name ("DEFAULT"
// for the unnamed default section) -> key -> string value. INI has no
// richer type system than strings, so the deep-merge algebra operates
// on that flat shape rather than forcing it through the others' nested
// any.
func (iniCodec) decode(data []byte) (any, error) {
	f, err := ini.LoadSources(ini.LoadOptions{AllowNonUniqueSections: false}, data)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for _, sec := range f.Sections() {
		keys := make(map[string]any, len(sec.Keys()))
		for _, k := range sec.Keys() {
			keys[k.Name()] = k.Value()
		}
		out[sec.Name()] = keys
	}
	return out, nil
}

func (iniCodec) encode(v any) ([]byte, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("ini output must be a table at the document root")
	}

	f := ini.Empty()
	// Deterministic section/key ordering for reproducible merged output.
	sectionNames := make([]string, 0, len(m))
	for name := range m {
		sectionNames = append(sectionNames, name)
	}
	sort.Strings(sectionNames)

	for _, name := range sectionNames {
		keys, ok := m[name].(map[string]any)
		if !ok {
			continue
		}
		sec, err := f.NewSection(name)
		if err != nil {
			return nil, err
		}
		keyNames := make([]string, 0, len(keys))
		for k := range keys {
			keyNames = append(keyNames, k)
		}
		sort.Strings(keyNames)
		for _, k := range keyNames {
			sec.Key(k).SetValue(fmt.Sprintf("%v", keys[k]))
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MergeStructured implements spec §4.E steps 1-4 for one structured
// path: layers is the precedence-ordered (ascending) sequence of that
// path's bytes across contributing layers. It returns the merged bytes,
// any JSON-specific scalar-replacement diagnostics (for debug logging;
// spec does not require these to be surfaced, only that higher
// precedence wins deterministically), and an error of kind Parse if any
// layer's content fails to decode.
func MergeStructured(format Format, path string, layers [][]byte) ([]byte, []string, error) {
	c := codecFor(format)
	if c == nil {
		return nil, nil, jinerr.Validationf("%s is not a structured format", format)
	}

	docs := make([]any, 0, len(layers))
	for _, raw := range layers {
		v, err := c.decode(raw)
		if err != nil {
			return nil, nil, jinerr.Parsef(format.String(), path, err)
		}
		docs = append(docs, v)
	}

	keepNull := format == FormatJSON
	merged := mergeAll(docs, keepNull)

	var diagnostics []string
	if format == FormatJSON && len(layers) >= 2 {
		diagnostics = scalarReplacements(layers[0], layers[len(layers)-1])
	}

	out, err := c.encode(merged)
	if err != nil {
		return nil, nil, jinerr.Wrap(err)
	}

	if keepNull {
		for _, p := range collectNullPaths(merged, "") {
			out, err = applyJSONTombstone(out, p)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	return out, diagnostics, nil
}

// scalarReplacements reports, for JSON documents only, which top-level
// key paths changed scalar value between the lowest- and
// highest-precedence contributing layers — a debug-log aid for "why did
// this value win", using gjson for a cheap format-preserving read
// rather than decoding both sides again.
func scalarReplacements(base, top []byte) []string {
	var changed []string
	baseParsed := gjson.ParseBytes(base)
	if !baseParsed.IsObject() {
		return nil
	}
	baseParsed.ForEach(func(key, value gjson.Result) bool {
		topValue := gjson.GetBytes(top, key.String())
		if topValue.Exists() && topValue.Type != gjson.JSON && topValue.Raw != value.Raw {
			changed = append(changed, key.String())
		}
		return true
	})
	return changed
}

// DiffStructured decodes two versions of a structured file and reports
// the dotted key paths that were added, removed, or changed between
// them, for internal/introspect's diff view (spec §4.I: "uses structured
// merge for parsing when both sides are structured").
func DiffStructured(format Format, path string, oldData, newData []byte) ([]string, error) {
	c := codecFor(format)
	if c == nil {
		return nil, jinerr.Validationf("%s is not a structured format", format)
	}
	oldDoc, err := c.decode(oldData)
	if err != nil {
		return nil, jinerr.Parsef(format.String(), path, err)
	}
	newDoc, err := c.decode(newData)
	if err != nil {
		return nil, jinerr.Parsef(format.String(), path, err)
	}
	var changed []string
	diffPaths(oldDoc, newDoc, "", &changed)
	sort.Strings(changed)
	return changed, nil
}

func diffPaths(oldV, newV any, prefix string, out *[]string) {
	oldMap, oldIsMap := oldV.(map[string]any)
	newMap, newIsMap := newV.(map[string]any)
	if oldIsMap && newIsMap {
		keys := make(map[string]bool)
		for k := range oldMap {
			keys[k] = true
		}
		for k := range newMap {
			keys[k] = true
		}
		for k := range keys {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			ov, oldHas := oldMap[k]
			nv, newHas := newMap[k]
			switch {
			case !oldHas:
				*out = append(*out, path+" (added)")
			case !newHas:
				*out = append(*out, path+" (removed)")
			default:
				diffPaths(ov, nv, path, out)
			}
		}
		return
	}
	if !structuredEqual(oldV, newV) {
		*out = append(*out, prefix+" (changed)")
	}
}

func structuredEqual(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// applyJSONTombstone removes path from a merged JSON document entirely
// via a targeted byte-level delete, used when a higher layer's explicit
// null requires the key to vanish rather than render as `"k":null`
// (spec §4.E step 2 "null from a higher layer deletes the key").
func applyJSONTombstone(data []byte, dotPath string) ([]byte, error) {
	out, err := sjson.DeleteBytes(data, dotPath)
	if err != nil {
		return nil, jinerr.Wrap(err)
	}
	return out, nil
}
