// Package content validates user-supplied values for rule inputs before they
// are stored: file/template content against its declared format and optional
// template, and scalar parameters against their declared data type.
package content

import "strings"

// DataType is the declared type of a rule or task input.
type DataType string

const (
	DataTypeFile       DataType = "FILE"
	DataTypeHTTPConfig DataType = "HTTP_CONFIG"
	DataTypeString     DataType = "STRING"
	DataTypeInt        DataType = "INT"
	DataTypeFloat      DataType = "FLOAT"
	DataTypeBoolean    DataType = "BOOLEAN"
	DataTypeDate       DataType = "DATE"
	DataTypeDateTime   DataType = "DATETIME"
)

// ParseDataType normalizes a data type name. Unknown names are returned
// upper-cased and are treated as STRING by the validators.
func ParseDataType(s string) DataType {
	return DataType(strings.ToUpper(strings.TrimSpace(s)))
}

// IsTemplate reports whether values of this type are file content rather
// than scalar parameters.
func (d DataType) IsTemplate() bool {
	return d == DataTypeFile || d == DataTypeHTTPConfig
}

// Format is the serialization format of file content.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatXML  Format = "xml"
	FormatCSV  Format = "csv"
	FormatText Format = "txt"
)

// ParseFormat normalizes a format name ("YML" becomes yaml).
func ParseFormat(s string) Format {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "yml" {
		return FormatYAML
	}
	return f
}

// Result is the outcome of validating one input value.
type Result struct {
	Valid          bool     `json:"valid"`
	ConvertedValue any      `json:"convertedValue,omitempty"`
	Errors         []string `json:"errors"`
	Suggestions    []string `json:"suggestions,omitempty"`
	Preview        string   `json:"preview,omitempty"`
}

func (r *Result) fail(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *Result) suggest(msg string) {
	r.Suggestions = append(r.Suggestions, msg)
}

func (r *Result) finish() *Result {
	r.Valid = len(r.Errors) == 0
	if r.Errors == nil {
		r.Errors = []string{}
	}
	return r
}

// Input describes the declared shape of the input being validated. It is the
// subset of a catalog task input the validators need.
type Input struct {
	Name          string
	DataType      DataType
	Format        Format
	Template      string // base64-encoded or plain template body
	AllowedValues []string
}
