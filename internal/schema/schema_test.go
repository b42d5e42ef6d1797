package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/shramba/internal/model"
)

const yarnSchema = `{"fields": [
	{"name": "brand", "type": "string", "required": true, "rules": "max=20"},
	{"name": "weight", "type": "enum", "options": ["lace", "dk", "worsted"]},
	{"name": "metersPer100g", "type": "number", "rules": "gt=0"},
	{"name": "plies", "type": "integer", "rules": "min=1,max=12"},
	{"name": "superwash", "type": "boolean"},
	{"name": "purchasedAt", "type": "string", "rules": "datetime=2006-01-02"}
]}`

func fieldNames(errs []model.FieldError) []string {
	names := make([]string, len(errs))
	for i, e := range errs {
		names[i] = e.Field
	}
	return names
}

func TestValidateAcceptsGoodPayload(t *testing.T) {
	s := MustParse(yarnSchema)
	errs := NewValidator().Validate(s, json.RawMessage(`{
		"brand": "Drops", "weight": "dk", "metersPer100g": 230,
		"plies": 4, "superwash": true, "purchasedAt": "2026-03-01"
	}`))
	assert.Empty(t, errs)
}

func TestValidateReportsEveryFailingField(t *testing.T) {
	s := MustParse(yarnSchema)
	errs := NewValidator().Validate(s, json.RawMessage(`{
		"weight": "chunky", "metersPer100g": -1, "plies": 2.5,
		"superwash": "yes", "purchasedAt": "March", "colour": "red"
	}`))

	assert.Equal(t,
		[]string{"brand", "weight", "metersPer100g", "plies", "superwash", "purchasedAt", "colour"},
		fieldNames(errs))
	assert.Equal(t, "is required", errs[0].Message)
	assert.Equal(t, "must be one of lace, dk, worsted", errs[1].Message)
	assert.Equal(t, "must be greater than 0", errs[2].Message)
	assert.Equal(t, "is not defined for this category", errs[6].Message)
}

func TestValidateStringLengthRule(t *testing.T) {
	s := MustParse(yarnSchema)
	errs := NewValidator().Validate(s, json.RawMessage(`{"brand": "An extremely long brand name"}`))
	require.Len(t, errs, 1)
	assert.Equal(t, "must be at most 20 characters long", errs[0].Message)
}

func TestValidateEmptyPayload(t *testing.T) {
	s := MustParse(`{"fields": [{"name": "note", "type": "string"}]}`)
	v := NewValidator()
	assert.Empty(t, v.Validate(s, nil))
	assert.Empty(t, v.Validate(s, json.RawMessage(`null`)))

	errs := v.Validate(s, json.RawMessage(`[1, 2]`))
	require.Len(t, errs, 1)
	assert.Equal(t, "categoryData", errs[0].Field)
}

func TestValidateAllowUnknown(t *testing.T) {
	s := MustParse(`{"fields": [], "allowUnknown": true}`)
	assert.Empty(t, NewValidator().Validate(s, json.RawMessage(`{"anything": 1}`)))
}

func TestParseRejectsBadDefinitions(t *testing.T) {
	_, err := Parse([]byte(`{"fields": [
		{"name": "", "type": "string"},
		{"name": "a", "type": "colour"},
		{"name": "a", "type": "enum"},
		{"name": "b", "type": "string", "rules": "nosuchrule"}
	]}`))
	require.Error(t, err)

	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t,
		[]string{"fields[0].name", "fields[1].type", "fields[2].name", "fields[2].options", "fields[3].rules"},
		fieldNames(verr.Fields))
}

func TestParseEmpty(t *testing.T) {
	s, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, s.Fields)
}

type variantInput struct {
	Name      string `json:"name" validate:"notblank,max=10"`
	ColorCode string `json:"colorCode" validate:"omitempty,colorcode"`
}

func TestStructUsesJSONNames(t *testing.T) {
	errs := Struct(variantInput{Name: "   ", ColorCode: "not a code!"})
	assert.Equal(t, []string{"name", "colorCode"}, fieldNames(errs))

	assert.Empty(t, Struct(variantInput{Name: "Blue", ColorCode: "#1e90ff"}))
	assert.Empty(t, Struct(variantInput{Name: "Blue", ColorCode: "DR-104"}))
}
