package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/marcshift/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// FieldSpec errors (E101-E119)
	ErrFieldNameEmpty        = "E101" // name is required
	ErrInvalidTag            = "E102" // tag must be three letters or digits
	ErrControlWithSubfields  = "E103" // control fields take no subfields or indicators
	ErrInvalidSubfieldCode   = "E104" // subfield code must be one letter or digit
	ErrDuplicateName         = "E105" // duplicate subfield code, name, or field name
	ErrInvalidIndicator      = "E106" // indicator position or code invalid
	ErrInvalidPattern        = "E107" // pattern does not compile
	ErrDataFieldNoSubfields  = "E108" // data field declares no subfields
	ErrReservedName          = "E109" // name collides with a reserved key
	ErrDuplicateIndicatorKey = "E110" // indicator declared twice
)

var (
	tagPattern          = regexp.MustCompile(`^[0-9A-Za-z]{3}$`)
	subfieldCodePattern = regexp.MustCompile(`^[0-9a-z]$`)
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
// Supports FieldSpec and rule sets ([]FieldSpec).
func Validate(v any) []ValidationError {
	switch ir := v.(type) {
	case *ir.FieldSpec:
		return validateFieldSpec(ir)
	case ir.FieldSpec:
		return validateFieldSpec(&ir)
	case []ir.FieldSpec:
		return validateRuleSet(ir)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// validateRuleSet validates every spec and checks names across specs.
// Two specs with the same name would claim the same reverse rule.
func validateRuleSet(specs []ir.FieldSpec) []ValidationError {
	var errs []ValidationError
	names := make(map[string]int)
	for i := range specs {
		for _, e := range validateFieldSpec(&specs[i]) {
			e.Field = fmt.Sprintf("field[%d].%s", i, e.Field)
			errs = append(errs, e)
		}
		if first, dup := names[specs[i].Name]; dup && specs[i].Name != "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("field[%d].name", i),
				Message: fmt.Sprintf("duplicate field name %q (first declared at field[%d])", specs[i].Name, first),
				Code:    ErrDuplicateName,
			})
			continue
		}
		names[specs[i].Name] = i
	}
	return errs
}

// validateFieldSpec validates a single FieldSpec.
func validateFieldSpec(spec *ir.FieldSpec) []ValidationError {
	var errs []ValidationError

	// E101: name is required
	if strings.TrimSpace(spec.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "name is required and must be non-empty",
			Code:    ErrFieldNameEmpty,
		})
	}

	// E109: reserved keys cannot be field names
	if isReserved(spec.Name) {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: fmt.Sprintf("%q is a reserved key", spec.Name),
			Code:    ErrReservedName,
		})
	}

	// E102: tag format
	if !tagPattern.MatchString(spec.Tag) {
		errs = append(errs, ValidationError{
			Field:   "tag",
			Message: fmt.Sprintf("tag must be three letters or digits, got %q", spec.Tag),
			Code:    ErrInvalidTag,
		})
	}

	// E107: explicit pattern must compile
	if spec.Pattern != "" {
		if _, err := regexp.Compile(spec.Pattern); err != nil {
			errs = append(errs, ValidationError{
				Field:   "pattern",
				Message: fmt.Sprintf("invalid pattern %q: %v", spec.Pattern, err),
				Code:    ErrInvalidPattern,
			})
		}
	}

	if spec.Control {
		// E103: control fields carry a bare body
		if len(spec.Subfields) > 0 || len(spec.Indicators) > 0 {
			errs = append(errs, ValidationError{
				Field:   "control",
				Message: "control fields take no subfields or indicators",
				Code:    ErrControlWithSubfields,
			})
		}
		return errs
	}

	// E108: data fields need something to map
	if len(spec.Subfields) == 0 {
		errs = append(errs, ValidationError{
			Field:   "subfields",
			Message: "data field must declare at least one subfield",
			Code:    ErrDataFieldNoSubfields,
		})
	}

	errs = append(errs, validateSubfields(spec.Subfields)...)
	errs = append(errs, validateIndicators(spec)...)
	return errs
}

func validateSubfields(subfields []ir.SubfieldSpec) []ValidationError {
	var errs []ValidationError
	codes := make(map[string]bool)
	names := make(map[string]bool)

	for i, sf := range subfields {
		// E104: subfield code format
		if !subfieldCodePattern.MatchString(sf.Code) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("subfields[%d].code", i),
				Message: fmt.Sprintf("subfield code must be one lowercase letter or digit, got %q", sf.Code),
				Code:    ErrInvalidSubfieldCode,
			})
		}

		// E105: duplicate code or name
		if codes[sf.Code] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("subfields[%d].code", i),
				Message: fmt.Sprintf("duplicate subfield code: %q", sf.Code),
				Code:    ErrDuplicateName,
			})
		}
		codes[sf.Code] = true

		if strings.TrimSpace(sf.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("subfields[%d].name", i),
				Message: "subfield name is required",
				Code:    ErrFieldNameEmpty,
			})
			continue
		}
		if names[sf.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("subfields[%d].name", i),
				Message: fmt.Sprintf("duplicate subfield name: %q", sf.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[sf.Name] = true

		if isReserved(sf.Name) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("subfields[%d].name", i),
				Message: fmt.Sprintf("%q is a reserved key", sf.Name),
				Code:    ErrReservedName,
			})
		}
	}
	return errs
}

func validateIndicators(spec *ir.FieldSpec) []ValidationError {
	var errs []ValidationError
	seen := make(map[int]bool)
	subfieldNames := make(map[string]bool, len(spec.Subfields))
	for _, sf := range spec.Subfields {
		subfieldNames[sf.Name] = true
	}

	for i, ind := range spec.Indicators {
		// E106: indicator position
		if ind.Position != 1 && ind.Position != 2 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("indicators[%d].position", i),
				Message: fmt.Sprintf("indicator position must be 1 or 2, got %d", ind.Position),
				Code:    ErrInvalidIndicator,
			})
		}

		// E110: one declaration per position
		if seen[ind.Position] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("indicators[%d].position", i),
				Message: fmt.Sprintf("indicator %d declared twice", ind.Position),
				Code:    ErrDuplicateIndicatorKey,
			})
		}
		seen[ind.Position] = true

		if strings.TrimSpace(ind.Name) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("indicators[%d].name", i),
				Message: "indicator name is required",
				Code:    ErrFieldNameEmpty,
			})
		}

		// E105: indicator and subfield share the output mapping
		if subfieldNames[ind.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("indicators[%d].name", i),
				Message: fmt.Sprintf("indicator name %q collides with a subfield name", ind.Name),
				Code:    ErrDuplicateName,
			})
		}

		labels := make(map[string]bool)
		for j, v := range ind.Values {
			// E106: indicator codes are single characters
			if len(v.Code) != 1 {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("indicators[%d].values[%d].code", i, j),
					Message: fmt.Sprintf("indicator code must be one character, got %q", v.Code),
					Code:    ErrInvalidIndicator,
				})
			}
			// E105: labels map back to codes, so they must be unique
			if labels[v.Label] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("indicators[%d].values[%d].label", i, j),
					Message: fmt.Sprintf("duplicate indicator label: %q", v.Label),
					Code:    ErrDuplicateName,
				})
			}
			labels[v.Label] = true
		}
	}
	return errs
}

func isReserved(name string) bool {
	switch name {
	case ir.OrderKey, ir.Ind1Key, ir.Ind2Key:
		return true
	}
	return false
}
