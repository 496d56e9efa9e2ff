package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/rewind/pkg/schema"
)

func TestNewVersionChange_RequiresDescription(t *testing.T) {
	_, err := NewVersionChange("x", "")
	assert.ErrorIs(t, err, ErrStructure)
}

func TestNewVersionChange_SurfacesConstructorErrors(t *testing.T) {
	tests := []struct {
		name        string
		instruction Instruction
	}{
		{"path converter without methods", ConvertRequestToNextVersionForPath("/users", nil, func(*RequestInfo) error { return nil })},
		{"unknown method", Endpoint("/users", "FETCH").DidntExist()},
		{"empty field had", Schema("a").Field("x").Had(FieldChanges{})},
		{"empty endpoint had", Endpoint("/users", "GET").Had(EndpointChanges{})},
		{"schema converter without schemas", ConvertResponseToPreviousVersionFor(func(*ResponseInfo) error { return nil })},
		{"validator without func", Schema("a").Validator(&schema.Validator{Name: "v"}).Existed()},
		{"no members", Enum("e").HadMembers()},
		{"nil", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVersionChange("broken", "broken change", tt.instruction)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrStructure)
			assert.Contains(t, err.Error(), `"broken"`)
		})
	}
}

func TestNewVersionChange_Indices(t *testing.T) {
	bySchema := ConvertRequestToNextVersionFor(func(*RequestInfo) error { return nil }, "a", "b")
	byPath := ConvertResponseToPreviousVersionForPath("/users", []string{"get", "POST"}, func(*ResponseInfo) error { return nil })

	vc, err := NewVersionChange("c", "indices",
		Schema("a").Field("x").DidntExist(),
		Enum("e").DidntHaveMembers("m"),
		Endpoint("/users", "get").DidntExist(),
		bySchema,
		byPath,
	)
	require.NoError(t, err)

	assert.Len(t, vc.SchemaInstructions(), 1)
	assert.Len(t, vc.EnumInstructions(), 1)
	require.Len(t, vc.EndpointInstructions(), 1)
	assert.Equal(t, []string{"GET"}, vc.EndpointInstructions()[0].(*EndpointDidntExist).Methods)
	assert.Equal(t, []*AlterRequestBySchema{bySchema}, vc.RequestConvertersForSchema("a"))
	assert.Equal(t, []*AlterRequestBySchema{bySchema}, vc.RequestConvertersForSchema("b"))
	assert.Equal(t, []*AlterResponseByPath{byPath}, vc.ResponseConvertersForPath("/users"))
	assert.True(t, byPath.HasMethod("POST"))
	assert.False(t, byPath.Applies(404))
	assert.True(t, byPath.WithHTTPErrors().Applies(404))
}

func TestHidden(t *testing.T) {
	in := Hidden(Schema("a").Field("x").DidntExist())
	assert.True(t, in.HiddenFromChangelog())
	assert.False(t, Schema("a").Field("x").DidntExist().HiddenFromChangelog())
}

func TestDate(t *testing.T) {
	d, err := ParseDate("2001-02-03")
	require.NoError(t, err)
	assert.Equal(t, "2001-02-03", d.String())
	assert.True(t, d.After(MustParseDate("2001-02-02")))
	assert.True(t, d.Before(MustParseDate("2001-03-01")))
	assert.Equal(t, 0, d.Compare(NewDate(2001, 2, 3)))

	_, err = ParseDate("03/02/2001")
	assert.Error(t, err)

	var parsed Date
	require.NoError(t, parsed.UnmarshalText([]byte("2010-10-10")))
	text, _ := parsed.MarshalText()
	assert.Equal(t, "2010-10-10", string(text))
}
