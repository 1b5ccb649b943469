package content

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InvalidValueError reports a raw value that cannot be read as its declared
// data type.
type InvalidValueError struct {
	DataType DataType
	Raw      string
	Hint     string
}

func (e *InvalidValueError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("invalid %s value %q: %s", e.DataType, e.Raw, e.Hint)
	}
	return fmt.Sprintf("invalid %s value %q", e.DataType, e.Raw)
}

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ConvertParameter converts raw into the Go value for dataType. Unknown data
// types are kept as strings.
func ConvertParameter(dataType DataType, raw string) (any, error) {
	value := strings.TrimSpace(raw)
	switch dataType {
	case DataTypeInt:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, &InvalidValueError{DataType: dataType, Raw: raw, Hint: "Use a whole number"}
		}
		return n, nil
	case DataTypeFloat:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, &InvalidValueError{DataType: dataType, Raw: raw, Hint: "Use a decimal number"}
		}
		return f, nil
	case DataTypeBoolean:
		switch strings.ToLower(value) {
		case "true", "yes", "1", "on":
			return true, nil
		case "false", "no", "0", "off":
			return false, nil
		}
		return nil, &InvalidValueError{DataType: dataType, Raw: raw, Hint: "Use: true/false, yes/no, 1/0, on/off"}
	case DataTypeDate:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return nil, &InvalidValueError{DataType: dataType, Raw: raw, Hint: "Use: YYYY-MM-DD"}
		}
		return value, nil
	case DataTypeDateTime:
		for _, layout := range dateTimeLayouts {
			if _, err := time.Parse(layout, value); err == nil {
				return value, nil
			}
		}
		return nil, &InvalidValueError{DataType: dataType, Raw: raw, Hint: "Use ISO 8601 format"}
	default:
		return raw, nil
	}
}

// ValidateParameter validates a scalar input value, honouring the input's
// allowed values when it declares any.
func ValidateParameter(in Input, raw string) *Result {
	res := &Result{}
	v, err := ConvertParameter(in.DataType, raw)
	if err != nil {
		res.fail(err.Error())
		return res.finish()
	}
	if len(in.AllowedValues) > 0 && !allowed(in.AllowedValues, raw) {
		res.fail(fmt.Sprintf("value %q is not one of the allowed values", raw))
		res.suggest("Allowed values: " + strings.Join(in.AllowedValues, ", "))
		return res.finish()
	}
	res.ConvertedValue = v
	return res.finish()
}

func allowed(values []string, raw string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(raw)) {
			return true
		}
	}
	return false
}

// Validate dispatches to ValidateTemplate or ValidateParameter based on the
// input's data type.
func Validate(in Input, raw string) *Result {
	if in.DataType.IsTemplate() {
		return ValidateTemplate(in, raw)
	}
	return ValidateParameter(in, raw)
}
