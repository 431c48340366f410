package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/agentskill/skillgov/pkg/fuzzy"
	"github.com/mitchellh/mapstructure"
)

// ValidationSeverity indicates whether an issue is an error or warning
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// FieldError represents a validation error for a specific field
type FieldError struct {
	Field       string             // Full path to the field (e.g., "agent_types.household_owner.default_skill")
	Message     string             // Error message
	Suggestions []string           // Suggested corrections (for typos)
	Severity    ValidationSeverity // Error or warning
	Context     string             // Additional context about the error
}

// StrictValidationResult contains validation errors from strict unmarshaling
type StrictValidationResult struct {
	UnknownFields []FieldError // Unknown/typo fields
	TypeErrors    []FieldError // Type mismatch errors
	Warnings      []FieldError // Non-fatal warnings
}

// Valid returns true if there are no validation errors (warnings are allowed)
func (r *StrictValidationResult) Valid() bool {
	return len(r.UnknownFields) == 0 && len(r.TypeErrors) == 0
}

// HasIssues returns true if there are any errors or warnings
func (r *StrictValidationResult) HasIssues() bool {
	return len(r.UnknownFields) > 0 || len(r.TypeErrors) > 0 || len(r.Warnings) > 0
}

// FormatErrors returns a human-readable error message
func (r *StrictValidationResult) FormatErrors() string {
	if !r.HasIssues() {
		return ""
	}

	var sb strings.Builder

	hasErrors := !r.Valid()
	if hasErrors {
		sb.WriteString("ERROR: Configuration validation errors:\n\n")
	}

	if len(r.UnknownFields) > 0 {
		sb.WriteString("UNKNOWN: Unknown/Typo Fields (not recognized):\n")
		for _, field := range r.UnknownFields {
			sb.WriteString(fmt.Sprintf("   • %s: %s\n", field.Field, field.Message))
			if len(field.Suggestions) > 0 {
				sb.WriteString(fmt.Sprintf("     TIP: Did you mean: %s?\n", strings.Join(field.Suggestions, ", ")))
			}
			if field.Context != "" {
				sb.WriteString(fmt.Sprintf("     INFO: %s\n", field.Context))
			}
		}
		sb.WriteString("\n")
		sb.WriteString("   Common causes:\n")
		sb.WriteString("   - Typos in field names\n")
		sb.WriteString("   - Incorrect nesting level\n")
		sb.WriteString("   - Using removed/deprecated fields\n")
		sb.WriteString("   - Copy-paste errors from examples\n\n")
	}

	if len(r.TypeErrors) > 0 {
		sb.WriteString("TYPE_ERROR: Type Errors:\n")
		for _, err := range r.TypeErrors {
			sb.WriteString(fmt.Sprintf("   • %s: %s\n", err.Field, err.Message))
			if err.Context != "" {
				sb.WriteString(fmt.Sprintf("     INFO: %s\n", err.Context))
			}
		}
		sb.WriteString("\n")
	}

	if len(r.Warnings) > 0 {
		sb.WriteString("WARN: Warnings (non-fatal):\n")
		for _, warn := range r.Warnings {
			sb.WriteString(fmt.Sprintf("   • %s: %s\n", warn.Field, warn.Message))
			if warn.Context != "" {
				sb.WriteString(fmt.Sprintf("     INFO: %s\n", warn.Context))
			}
		}
		sb.WriteString("\n")
	}

	if hasErrors {
		sb.WriteString("TIP: Hints:\n")
		sb.WriteString("   • Check the field name against the Configuration schema (see SPEC_FULL.md §6)\n")
		sb.WriteString("   • Verify correct nesting (e.g., 'agent_types.household_owner.default_skill')\n")
	}

	return sb.String()
}

// ValidateConfigStructure validates config structure from a map[string]interface{}
// This catches typos, unknown fields, and incorrect nesting BEFORE
// the config is processed, providing early feedback to users
func ValidateConfigStructure(rawMap map[string]interface{}) (*StrictValidationResult, error) {
	result := &StrictValidationResult{
		UnknownFields: []FieldError{},
		TypeErrors:    []FieldError{},
		Warnings:      []FieldError{},
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		ErrorUnused:      true,
		TagName:          "yaml",
		WeaklyTypedInput: false,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(rawMap); err != nil {
		collectValidationErrors(err, result)
	}

	return result, nil
}

// collectValidationErrors processes mapstructure errors and categorizes them
func collectValidationErrors(err error, result *StrictValidationResult) {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "has invalid keys:"):
		result.UnknownFields = append(result.UnknownFields, extractUnknownFields(errStr)...)
	case strings.Contains(errStr, "'") && (strings.Contains(errStr, "expected") || strings.Contains(errStr, "cannot unmarshal") || strings.Contains(errStr, "cannot decode")):
		result.TypeErrors = append(result.TypeErrors, parseTypeError(errStr))
	case strings.Contains(errStr, "unused") || strings.Contains(errStr, "unknown"):
		result.UnknownFields = append(result.UnknownFields, FieldError{
			Field:    "unknown",
			Message:  errStr,
			Severity: SeverityError,
		})
	default:
		result.TypeErrors = append(result.TypeErrors, FieldError{
			Field:    "unknown",
			Message:  errStr,
			Severity: SeverityError,
		})
	}
}

// extractUnknownFields parses a mapstructure "has invalid keys" error message
// and proposes corrections via nearest-name matching against the Config schema.
//
// mapstructure error shape: "1 error(s) decoding:\n\n* 'agent_types[household_owner]' has invalid keys: defualt_skill"
func extractUnknownFields(errMsg string) []FieldError {
	var fieldErrors []FieldError

	idx := strings.Index(errMsg, "has invalid keys:")
	if idx == -1 {
		return []FieldError{{Field: "unknown", Message: errMsg, Severity: SeverityError}}
	}

	beforeKeys := errMsg[:idx]
	parentPath := extractParentPath(beforeKeys)
	keysStr := strings.TrimSpace(errMsg[idx+len("has invalid keys:"):])
	validFields := getValidFieldNames(reflect.TypeOf(Config{}))

	for _, key := range strings.Split(keysStr, ",") {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}

		fullPath := key
		if parentPath != "" {
			fullPath = parentPath + "." + key
		}

		suggestions := fuzzy.Suggest(fullPath, validFields, 2)
		if len(suggestions) == 0 {
			suggestions = fuzzy.Suggest(key, validFields, 2)
		}

		fieldErrors = append(fieldErrors, FieldError{
			Field:       fullPath,
			Message:     "field is not recognized in configuration structure",
			Suggestions: suggestions,
			Severity:    SeverityError,
			Context:     "This field does not exist in the configuration schema",
		})
	}

	if len(fieldErrors) == 0 {
		fieldErrors = []FieldError{{Field: "unknown", Message: errMsg, Severity: SeverityError}}
	}

	return fieldErrors
}

// extractParentPath pulls the quoted struct path preceding "has invalid
// keys:" and strips map-index notation like "[household_owner]".
func extractParentPath(beforeKeys string) string {
	lastQuote := strings.LastIndex(beforeKeys, "'")
	if lastQuote <= 0 {
		return ""
	}

	openingQuote := -1
	for i := lastQuote - 1; i >= 0; i-- {
		if beforeKeys[i] == '\'' {
			openingQuote = i
			break
		}
	}
	if openingQuote == -1 {
		return ""
	}

	path := beforeKeys[openingQuote+1 : lastQuote]
	if bracketIdx := strings.Index(path, "["); bracketIdx != -1 {
		path = path[:bracketIdx]
	}

	if parts := strings.Split(path, "."); len(parts) > 0 {
		last := parts[len(parts)-1]
		if bracketIdx := strings.Index(last, "["); bracketIdx != -1 {
			last = last[:bracketIdx]
		}
		return last
	}
	return path
}

// parseTypeError extracts information from type conversion errors
func parseTypeError(errStr string) FieldError {
	fieldName := "unknown"

	if start := strings.Index(errStr, "'"); start != -1 {
		if end := strings.Index(errStr[start+1:], "'"); end != -1 {
			fieldName = errStr[start+1 : start+1+end]
		}
	}

	return FieldError{
		Field:    fieldName,
		Message:  errStr,
		Severity: SeverityError,
		Context:  "Check that the value type matches the expected type (string, number, boolean, etc.)",
	}
}

// getValidFieldNames recursively extracts all valid field names from a struct type
func getValidFieldNames(t reflect.Type) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	if t.Kind() == reflect.Map {
		return getValidFieldNames(t.Elem())
	}

	if t.Kind() != reflect.Struct {
		return nil
	}

	var fields []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		yamlTag := field.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		fieldName := strings.TrimSpace(strings.Split(yamlTag, ",")[0])
		if fieldName == "" {
			continue
		}

		fields = append(fields, fieldName)

		fieldType := field.Type
		if fieldType.Kind() == reflect.Ptr {
			fieldType = fieldType.Elem()
		}

		switch fieldType.Kind() {
		case reflect.Map:
			mapValueType := fieldType.Elem()
			if mapValueType.Kind() == reflect.Ptr {
				mapValueType = mapValueType.Elem()
			}
			for _, nf := range getValidFieldNames(mapValueType) {
				fields = append(fields, fieldName+".<key>."+nf)
				fields = append(fields, fieldName+"."+nf)
			}
		case reflect.Struct:
			for _, nf := range getValidFieldNames(fieldType) {
				fields = append(fields, fieldName+"."+nf)
			}
		case reflect.Slice:
			elemType := fieldType.Elem()
			if elemType.Kind() == reflect.Ptr {
				elemType = elemType.Elem()
			}
			if elemType.Kind() == reflect.Struct {
				for _, nf := range getValidFieldNames(elemType) {
					fields = append(fields, fieldName+"."+nf)
				}
			}
		}
	}

	return fields
}
