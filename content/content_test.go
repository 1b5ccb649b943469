package content

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidateTemplate_MissingField verifies a JSON body missing a template
// field is rejected with a per-field message
func TestValidateTemplate_MissingField(t *testing.T) {
	in := Input{
		Name:     "ConfigFile",
		DataType: DataTypeFile,
		Format:   FormatJSON,
		Template: base64.StdEncoding.EncodeToString([]byte(`{"a": 1, "b": 2}`)),
	}

	res := ValidateTemplate(in, `{"a":1}`)

	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors, "Missing required field: b")
	assert.NotContains(t, res.Errors, "Missing required field: a")
	assert.Nil(t, res.ConvertedValue)
}

func TestValidateTemplate_PlainTemplate(t *testing.T) {
	in := Input{DataType: DataTypeFile, Format: FormatJSON, Template: `{"region": "x"}`}

	res := ValidateTemplate(in, `{"region": "us-east-1"}`)

	assert.True(t, res.Valid, "errors: %v", res.Errors)
	assert.Equal(t, `{"region": "us-east-1"}`, res.ConvertedValue)
}

func TestValidateTemplate_Formats(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		body   string
		valid  bool
	}{
		{"json object", FormatJSON, `{"k": "v"}`, true},
		{"json array", FormatJSON, `[{"k": 1}, [1, 2], "s", 3, true, null]`, true},
		{"json scalar", FormatJSON, `42`, true},
		{"json broken", FormatJSON, `{"k": `, false},
		{"toml ok", FormatTOML, "[server]\nport = 8080\n", true},
		{"toml broken", FormatTOML, "port = = 8080", false},
		{"yaml ok", FormatYAML, "a: 1\nb:\n  - x\n", true},
		{"yaml broken", FormatYAML, "a: [1, 2", false},
		{"xml ok", FormatXML, "<root><a>1</a></root>", true},
		{"xml unclosed", FormatXML, "<root><a>1</root>", false},
		{"xml text only", FormatXML, "hello", false},
		{"csv ok", FormatCSV, "a,b\n1,2\n", true},
		{"csv ragged", FormatCSV, "a,b\n1,2,3\n", false},
		{"unknown format passes", Format("parquet"), "anything", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateTemplate(Input{DataType: DataTypeFile, Format: tt.format}, tt.body)
			assert.Equal(t, tt.valid, res.Valid, "errors: %v", res.Errors)
		})
	}
}

func TestValidateTemplate_Empty(t *testing.T) {
	res := ValidateTemplate(Input{DataType: DataTypeFile, Format: FormatJSON}, "   \n")

	assert.False(t, res.Valid)
	assert.Equal(t, []string{"Content cannot be empty"}, res.Errors)
}

func TestExtractFields(t *testing.T) {
	tomlTmpl := "# comment = ignored\n[auth]\nuser = \"\"\ntoken = \"\"\n"
	yamlTmpl := "# note: skip\nregion: x\nitems:\n  - name: a\n"

	assert.Equal(t, []string{"a", "b"}, ExtractFields(`{"a": 1, "b": {"a": 2}}`, FormatJSON))
	assert.Equal(t, []string{"token", "user"}, ExtractFields(tomlTmpl, FormatTOML))
	assert.Equal(t, []string{"items", "region"}, ExtractFields(yamlTmpl, FormatYAML))
	assert.Empty(t, ExtractFields("", FormatJSON))
	assert.Empty(t, ExtractFields("a,b", FormatCSV))
}

func TestConvertParameter(t *testing.T) {
	tests := []struct {
		dataType DataType
		raw      string
		want     any
		wantErr  bool
	}{
		{DataTypeInt, "42", int64(42), false},
		{DataTypeInt, " 7 ", int64(7), false},
		{DataTypeInt, "4.2", nil, true},
		{DataTypeFloat, "4.5", 4.5, false},
		{DataTypeFloat, "abc", nil, true},
		{DataTypeBoolean, "YES", true, false},
		{DataTypeBoolean, "on", true, false},
		{DataTypeBoolean, "0", false, false},
		{DataTypeBoolean, "Off", false, false},
		{DataTypeBoolean, "maybe", nil, true},
		{DataTypeDate, "2024-02-29", "2024-02-29", false},
		{DataTypeDate, "2024-13-01", nil, true},
		{DataTypeDate, "01/02/2024", nil, true},
		{DataTypeDateTime, "2024-01-15T10:30:00Z", "2024-01-15T10:30:00Z", false},
		{DataTypeDateTime, "2024-01-15T10:30:00+05:30", "2024-01-15T10:30:00+05:30", false},
		{DataTypeDateTime, "2024-01-15T10:30:00", "2024-01-15T10:30:00", false},
		{DataTypeDateTime, "yesterday", nil, true},
		{DataTypeString, "hello", "hello", false},
		{DataType("WHATEVER"), "x", "x", false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s", tt.dataType, tt.raw), func(t *testing.T) {
			got, err := ConvertParameter(tt.dataType, tt.raw)
			if tt.wantErr {
				var ive *InvalidValueError
				require.ErrorAs(t, err, &ive)
				assert.Equal(t, tt.dataType, ive.DataType)
				assert.Equal(t, tt.raw, ive.Raw)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateParameter_AllowedValues(t *testing.T) {
	in := Input{DataType: DataTypeString, AllowedValues: []string{"low", "high"}}

	assert.True(t, ValidateParameter(in, "HIGH").Valid)

	res := ValidateParameter(in, "medium")
	assert.False(t, res.Valid)
	assert.Len(t, res.Errors, 1)
}

func TestValidate_Dispatch(t *testing.T) {
	assert.False(t, Validate(Input{DataType: DataTypeHTTPConfig, Format: FormatJSON}, "{").Valid)
	assert.True(t, Validate(Input{DataType: DataTypeInt}, "12").Valid)
	assert.Equal(t, int64(12), Validate(Input{DataType: DataTypeInt}, "12").ConvertedValue)
}

func TestPreview(t *testing.T) {
	short := `{"a":1}`
	assert.Equal(t, short, Preview(short, FormatJSON))

	items := make([]string, 40)
	for i := range items {
		items[i] = fmt.Sprintf(`{"id": %d}`, i)
	}
	arr := "[" + strings.Join(items, ",") + "]"
	p := Preview(arr, FormatJSON)
	assert.True(t, strings.HasPrefix(p, "JSON Array with 40 items:"))
	assert.Contains(t, p, "... and 38 more items")

	fields := make([]string, 30)
	for i := range fields {
		fields[i] = fmt.Sprintf(`"key%02d": "value"`, i)
	}
	obj := "{" + strings.Join(fields, ",") + "}"
	p = Preview(obj, FormatJSON)
	assert.True(t, strings.HasPrefix(p, "JSON Object with 30 keys:"))
	assert.Contains(t, p, "... and 27 more keys")

	long := strings.Repeat("x", 150) + strings.Repeat("y", 150)
	p = Preview(long, FormatText)
	assert.Equal(t, strings.Repeat("x", 100)+"\n...\n"+strings.Repeat("y", 100), p)
}

func TestPreview_MultiByte(t *testing.T) {
	// 150 runes but 300 bytes: short enough to come back unchanged
	accents := strings.Repeat("é", 150)
	assert.Equal(t, accents, Preview(accents, FormatText))

	long := "a" + strings.Repeat("é", 300)
	p := Preview(long, FormatText)
	assert.True(t, utf8.ValidString(p))
	assert.Equal(t, "a"+strings.Repeat("é", 99)+"\n...\n"+strings.Repeat("é", 100), p)

	p = Preview(`"`+strings.Repeat("日本", 120)+`"`, FormatJSON)
	assert.True(t, utf8.ValidString(p))
}

func TestParseFormatAndDataType(t *testing.T) {
	assert.Equal(t, FormatYAML, ParseFormat("YML"))
	assert.Equal(t, FormatJSON, ParseFormat(" Json "))
	assert.Equal(t, DataTypeHTTPConfig, ParseDataType("http_config"))
	assert.True(t, DataTypeFile.IsTemplate())
	assert.False(t, DataTypeDate.IsTemplate())
}
