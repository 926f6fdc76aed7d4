// Package category maps activity categories to the field set of their detail
// record. Categories are data: the lifecycle and ledger never branch on them.
package category

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/activity-credit-api/internal/apperr"
)

// FieldType enumerates the value kinds a detail field can hold.
type FieldType string

const (
	FieldText   FieldType = "text"
	FieldNumber FieldType = "number"
	FieldDate   FieldType = "date"
	FieldEnum   FieldType = "enum"
)

// DateLayout is the accepted format for date fields.
const DateLayout = "2006-01-02"

// Field describes one key of a category detail record.
type Field struct {
	Key      string    `json:"key"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
	MaxLen   int       `json:"max_length,omitempty"`
	Options  []string  `json:"options,omitempty"`
}

// Schema is the ordered field list of a category.
type Schema struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Fields []Field `json:"fields"`
}

// Registry is a concurrency-safe category → schema table.
type Registry struct {
	mu      sync.RWMutex
	schemas map[string]Schema
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: make(map[string]Schema)}
}

// Register adds or replaces a schema.
func (r *Registry) Register(schema Schema) error {
	key := normalizeKey(schema.Key)
	if key == "" {
		return fmt.Errorf("category key must not be empty")
	}
	seen := make(map[string]struct{}, len(schema.Fields))
	for _, field := range schema.Fields {
		if field.Key == "" {
			return fmt.Errorf("category %s: field key must not be empty", key)
		}
		if _, dup := seen[field.Key]; dup {
			return fmt.Errorf("category %s: duplicate field %s", key, field.Key)
		}
		seen[field.Key] = struct{}{}
		if field.Type == FieldEnum && len(field.Options) == 0 {
			return fmt.Errorf("category %s: enum field %s has no options", key, field.Key)
		}
	}
	schema.Key = key

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.schemas[key]; !exists {
		r.order = append(r.order, key)
	}
	r.schemas[key] = schema
	return nil
}

// Lookup returns the schema for a category.
func (r *Registry) Lookup(category string) (Schema, error) {
	key := normalizeKey(category)
	r.mu.RLock()
	defer r.mu.RUnlock()
	schema, ok := r.schemas[key]
	if !ok {
		return Schema{}, apperr.UnsupportedCategory(category)
	}
	return schema, nil
}

// Has reports whether a category is registered.
func (r *Registry) Has(category string) bool {
	_, err := r.Lookup(category)
	return err == nil
}

// List returns every schema in registration order.
func (r *Registry) List() []Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Schema, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.schemas[key])
	}
	return out
}

// FieldsFor returns the ordered field list for a category.
func (r *Registry) FieldsFor(category string) ([]Field, error) {
	schema, err := r.Lookup(category)
	if err != nil {
		return nil, err
	}
	fields := make([]Field, len(schema.Fields))
	copy(fields, schema.Fields)
	return fields, nil
}

// EmptyDetail returns a record with every key present and a default value.
func (r *Registry) EmptyDetail(category string) (map[string]interface{}, error) {
	schema, err := r.Lookup(category)
	if err != nil {
		return nil, err
	}
	detail := make(map[string]interface{}, len(schema.Fields))
	for _, field := range schema.Fields {
		detail[field.Key] = zeroValue(field)
	}
	return detail, nil
}

// Normalize merges the supplied detail over the category's empty record,
// coerces numbers and drops unknown keys. Required fields are not enforced,
// which lets a draft hold an incomplete record.
func (r *Registry) Normalize(category string, detail map[string]interface{}) (map[string]interface{}, error) {
	schema, err := r.Lookup(category)
	if err != nil {
		return nil, err
	}
	return normalize(schema, detail, false)
}

// Validate normalizes the detail and enforces required fields and bounds.
func (r *Registry) Validate(category string, detail map[string]interface{}) (map[string]interface{}, error) {
	schema, err := r.Lookup(category)
	if err != nil {
		return nil, err
	}
	return normalize(schema, detail, true)
}

func normalize(schema Schema, detail map[string]interface{}, strict bool) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(schema.Fields))
	for _, field := range schema.Fields {
		raw, present := detail[field.Key]
		value, empty, err := coerce(field, raw, present)
		if err != nil {
			return nil, err
		}
		if strict {
			if field.Required && empty {
				return nil, apperr.Validation(field.Key, "is required")
			}
			if err := checkBounds(field, value, empty); err != nil {
				return nil, err
			}
		}
		out[field.Key] = value
	}
	return out, nil
}

func coerce(field Field, raw interface{}, present bool) (interface{}, bool, error) {
	if !present || raw == nil {
		return zeroValue(field), true, nil
	}

	switch field.Type {
	case FieldNumber:
		number, ok := parseNumber(raw)
		if !ok || math.IsNaN(number) || math.IsInf(number, 0) || number < 0 {
			return float64(0), false, nil
		}
		return number, false, nil
	case FieldEnum:
		text := strings.TrimSpace(fmt.Sprint(raw))
		if option, ok := matchOption(field.Options, text); ok {
			text = option
		}
		return text, text == "", nil
	case FieldDate:
		text := strings.TrimSpace(fmt.Sprint(raw))
		if text == "" {
			return "", true, nil
		}
		if _, err := time.Parse(DateLayout, text); err != nil {
			return nil, false, apperr.Validation(field.Key, "must be a date formatted as YYYY-MM-DD")
		}
		return text, false, nil
	default:
		text := strings.TrimSpace(fmt.Sprint(raw))
		return text, text == "", nil
	}
}

func checkBounds(field Field, value interface{}, empty bool) error {
	switch field.Type {
	case FieldNumber:
		number, _ := value.(float64)
		if field.Min != nil && number < *field.Min {
			return apperr.Validation(field.Key, fmt.Sprintf("must be at least %s", formatNumber(*field.Min)))
		}
		if field.Max != nil && number > *field.Max {
			return apperr.Validation(field.Key, fmt.Sprintf("must be at most %s", formatNumber(*field.Max)))
		}
	case FieldEnum:
		if empty {
			return nil
		}
		text, _ := value.(string)
		if _, ok := matchOption(field.Options, text); !ok {
			options := append([]string(nil), field.Options...)
			sort.Strings(options)
			return apperr.Validation(field.Key, "must be one of "+strings.Join(options, ", "))
		}
	case FieldText:
		if text, _ := value.(string); field.MaxLen > 0 && len([]rune(text)) > field.MaxLen {
			return apperr.Validation(field.Key, fmt.Sprintf("must be at most %d characters", field.MaxLen))
		}
	}
	return nil
}

func parseNumber(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "%")), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func zeroValue(field Field) interface{} {
	if field.Type == FieldNumber {
		return float64(0)
	}
	return ""
}

// matchOption finds value among options ignoring case and returns the
// option as registered.
func matchOption(options []string, value string) (string, bool) {
	for _, option := range options {
		if strings.EqualFold(option, value) {
			return option, true
		}
	}
	return "", false
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
