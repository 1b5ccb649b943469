package content

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var jsonKeyPattern = regexp.MustCompile(`"([^"]+)"\s*:`)

// ValidateTemplate checks file content against the input's declared format
// and, when the input carries a template, that every template field appears
// in the content. All problems are reported, not just the first.
func ValidateTemplate(in Input, body string) *Result {
	res := &Result{}

	if strings.TrimSpace(body) == "" {
		res.fail("Content cannot be empty")
		return res.finish()
	}

	switch in.Format {
	case FormatJSON:
		validateJSON(res, body)
	case FormatTOML:
		var v map[string]any
		if err := toml.Unmarshal([]byte(body), &v); err != nil {
			res.fail(fmt.Sprintf("Invalid TOML format: %v", err))
			res.suggest("Please ensure your TOML follows the correct syntax with proper [section] headers")
		}
	case FormatYAML:
		var v any
		if err := yaml.Unmarshal([]byte(body), &v); err != nil {
			res.fail(fmt.Sprintf("Invalid YAML format: %v", err))
			res.suggest("Please ensure your YAML has correct indentation and syntax")
		}
	case FormatXML:
		if err := checkXML(body); err != nil {
			res.fail(fmt.Sprintf("Invalid XML format: %v", err))
			res.suggest("Please ensure every element is closed and attributes are quoted")
		}
	case FormatCSV:
		if err := checkCSV(body); err != nil {
			res.fail(fmt.Sprintf("Invalid CSV format: %v", err))
			res.suggest("Please ensure every row has the same number of columns as the header")
		}
	}

	if in.Template != "" {
		tmpl := DecodeTemplate(in.Template)
		missing := MissingFields(body, ExtractFields(tmpl, in.Format))
		for _, f := range missing {
			res.fail("Missing required field: " + f)
		}
		if len(missing) > 0 {
			res.suggest("Please include the following required fields: " + strings.Join(missing, ", "))
		}
	}

	res.Preview = Preview(body, in.Format)
	if len(res.Errors) == 0 {
		res.ConvertedValue = body
	}
	return res.finish()
}

func validateJSON(res *Result, body string) {
	var parsed any
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		res.fail(fmt.Sprintf("Invalid JSON format: %v", err))
		res.suggest("Please ensure your JSON is properly formatted with correct brackets and quotes")
		res.suggest(`For arrays: [{"key": "value"}, {"key": "value"}]`)
		res.suggest(`For objects: {"key": "value", "nested": {"key": "value"}}`)
		return
	}
	switch v := parsed.(type) {
	case []any:
		for i, item := range v {
			switch item.(type) {
			case map[string]any, []any, string, float64, bool, nil:
			default:
				res.fail(fmt.Sprintf("Invalid JSON array element at index %d", i))
			}
		}
		res.suggest("JSON array validated successfully")
	case map[string]any:
		res.suggest("JSON object validated successfully")
	default:
		res.suggest("JSON value validated successfully")
	}
}

func checkXML(body string) error {
	dec := xml.NewDecoder(strings.NewReader(body))
	elements := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if _, ok := tok.(xml.StartElement); ok {
			elements++
		}
	}
	if elements == 0 {
		return errors.New("no root element")
	}
	return nil
}

func checkCSV(body string) error {
	r := csv.NewReader(strings.NewReader(body))
	_, err := r.ReadAll()
	return err
}

// DecodeTemplate returns the template body. Templates normally arrive base64
// encoded; anything that does not decode to valid UTF-8 is used as-is.
func DecodeTemplate(s string) string {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil || !utf8.Valid(raw) {
		return s
	}
	return string(raw)
}

// ExtractFields lists the field names a template declares: JSON object keys,
// `key = value` lines for TOML and `key: value` lines for YAML. Comments and
// YAML list items are skipped. The result is sorted and de-duplicated.
func ExtractFields(template string, format Format) []string {
	if template == "" {
		return nil
	}
	seen := make(map[string]bool)
	switch format {
	case FormatJSON:
		for _, m := range jsonKeyPattern.FindAllStringSubmatch(template, -1) {
			seen[m[1]] = true
		}
	case FormatTOML:
		for _, line := range strings.Split(template, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "#") || !strings.Contains(trimmed, "=") {
				continue
			}
			if key := strings.TrimSpace(strings.SplitN(trimmed, "=", 2)[0]); key != "" {
				seen[key] = true
			}
		}
	case FormatYAML:
		for _, line := range strings.Split(template, "\n") {
			trimmed := strings.TrimSpace(line)
			if strings.HasPrefix(trimmed, "#") || !strings.Contains(trimmed, ":") {
				continue
			}
			key := strings.TrimSpace(strings.SplitN(trimmed, ":", 2)[0])
			if key != "" && !strings.HasPrefix(key, "-") {
				seen[key] = true
			}
		}
	}
	fields := make([]string, 0, len(seen))
	for k := range seen {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// MissingFields returns the fields that do not occur anywhere in body.
func MissingFields(body string, fields []string) []string {
	var missing []string
	for _, f := range fields {
		if !strings.Contains(body, f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// Preview returns a bounded rendering of content for confirmation prompts.
// Short content is returned unchanged. Long JSON arrays and objects are
// summarised; anything else is cut to its head and tail. Lengths count
// runes, so the cut never splits a character.
func Preview(body string, format Format) string {
	const max = 200
	if utf8.RuneCountInString(body) <= max {
		return body
	}
	runes := []rune(body)
	preview := string(runes[:max/2]) + "\n...\n" + string(runes[len(runes)-max/2:])

	if format != FormatJSON {
		return preview
	}
	var parsed any
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return preview
	}
	switch v := parsed.(type) {
	case []any:
		head := v
		if len(head) > 2 {
			head = head[:2]
		}
		out := fmt.Sprintf("JSON Array with %d items:\n%s", len(v), indentJSON(head))
		if len(v) > 2 {
			out += fmt.Sprintf("\n... and %d more items", len(v)-2)
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		head := make(map[string]any)
		for _, k := range keys[:min(3, len(keys))] {
			head[k] = v[k]
		}
		out := fmt.Sprintf("JSON Object with %d keys:\n%s", len(v), indentJSON(head))
		if len(v) > 3 {
			out += fmt.Sprintf("\n... and %d more keys", len(v)-3)
		}
		return out
	}
	return preview
}

func indentJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimRight(buf.String(), "\n")
}
