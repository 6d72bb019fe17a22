package records

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/barrancos/models"
)

func validForm() Form {
	return Form{
		Name:          "Cueva Azul",
		Location:      "Sierra X",
		Difficulty:    "Medium",
		RappelCount:   "2",
		RappelLengths: "10, 15.5",
		HasOverhang:   "No",
	}
}

func TestValidateValid(t *testing.T) {
	d, err := Validate(validForm())
	require.NoError(t, err)

	assert.Equal(t, "Cueva Azul", d.Name)
	assert.Equal(t, "Sierra X", d.Location)
	assert.Equal(t, models.DifficultyMedium, d.Difficulty)
	assert.Equal(t, 2, d.RappelCount)
	assert.Equal(t, []float64{10.0, 15.5}, d.RappelLengths)
	assert.False(t, d.HasOverhang)
	assert.Nil(t, d.Comments)
}

func TestValidateNormalizes(t *testing.T) {
	f := validForm()
	f.Name = "  Cueva Azul  "
	f.HasOverhang = "Yes"
	f.RappelLengths = " 10 ,, 15.5 , "
	f.Comments = "  bonito  "
	f.ImageName = "FOTO.JPEG"

	d, err := Validate(f)
	require.NoError(t, err)
	assert.Equal(t, "Cueva Azul", d.Name)
	assert.True(t, d.HasOverhang)
	assert.Equal(t, []float64{10, 15.5}, d.RappelLengths)
	require.NotNil(t, d.Comments)
	assert.Equal(t, "bonito", *d.Comments)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Form)
		kind   error
		field  string
	}{
		{"missing name", func(f *Form) { f.Name = "  " }, ErrMissingField, "name"},
		{"missing location", func(f *Form) { f.Location = "" }, ErrMissingField, "location"},
		{"missing difficulty", func(f *Form) { f.Difficulty = "" }, ErrMissingField, "difficulty"},
		{"missing count", func(f *Form) { f.RappelCount = "" }, ErrMissingField, "rappel_count"},
		{"missing lengths", func(f *Form) { f.RappelLengths = "" }, ErrMissingField, "rappel_lengths"},
		{"missing overhang", func(f *Form) { f.HasOverhang = "" }, ErrMissingField, "has_overhang"},
		{"name too long", func(f *Form) { f.Name = strings.Repeat("n", 101) }, ErrInvalidRange, "name"},
		{"location too long", func(f *Form) { f.Location = strings.Repeat("l", 201) }, ErrInvalidRange, "location"},
		{"bad difficulty", func(f *Form) { f.Difficulty = "Extreme" }, ErrInvalidEnum, "difficulty"},
		{"difficulty is case sensitive", func(f *Form) { f.Difficulty = "medium" }, ErrInvalidEnum, "difficulty"},
		{"bad overhang", func(f *Form) { f.HasOverhang = "Maybe" }, ErrInvalidEnum, "has_overhang"},
		{"count not a number", func(f *Form) { f.RappelCount = "two" }, ErrInvalidRange, "rappel_count"},
		{"count zero", func(f *Form) { f.RappelCount = "0" }, ErrInvalidRange, "rappel_count"},
		{"count negative", func(f *Form) { f.RappelCount = "-3" }, ErrInvalidRange, "rappel_count"},
		{"bad length token", func(f *Form) { f.RappelLengths = "10, abc" }, ErrInvalidNumberList, "rappel_lengths"},
		{"nan length", func(f *Form) { f.RappelLengths = "10, NaN" }, ErrInvalidNumberList, "rappel_lengths"},
		{"only blank tokens", func(f *Form) { f.RappelLengths = " , , " }, ErrCountMismatch, "rappel_lengths"},
		{"too few lengths", func(f *Form) { f.RappelLengths = "10" }, ErrCountMismatch, "rappel_lengths"},
		{"too many lengths", func(f *Form) { f.RappelLengths = "10, 15, 20" }, ErrCountMismatch, "rappel_lengths"},
		{"gif image", func(f *Form) { f.ImageName = "anim.gif" }, ErrInvalidFileType, "image"},
		{"image without extension", func(f *Form) { f.ImageName = "photo" }, ErrInvalidFileType, "image"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validForm()
			tt.mutate(&f)

			_, err := Validate(f)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.kind)
			assert.True(t, IsValidation(err))

			var fe *FieldError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.field, fe.Field)
			assert.NotEmpty(t, fe.Msg)
		})
	}
}

func TestValidateNameLimitCountsRunes(t *testing.T) {
	f := validForm()
	f.Name = strings.Repeat("ñ", 100)
	_, err := Validate(f)
	require.NoError(t, err)
}

func TestParseAndFormatLengthsRoundTrip(t *testing.T) {
	lengths, err := ParseLengths("1.5, 2, 3.25")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.0, 3.25}, lengths)

	text := FormatLengths(lengths)
	assert.Equal(t, "1.5, 2, 3.25", text)

	again, err := ParseLengths(text)
	require.NoError(t, err)
	assert.Equal(t, lengths, again)
}

func TestFormFromCanyon(t *testing.T) {
	comments := "ojo con las pozas"
	c := &models.Canyon{
		Name:          "Mascún",
		Location:      "Rodellar",
		Difficulty:    models.DifficultyHigh,
		RappelCount:   3,
		RappelLengths: []float64{12, 8.5, 30},
		HasOverhang:   true,
		Comments:      &comments,
	}

	f := FormFromCanyon(c)
	assert.Equal(t, "3", f.RappelCount)
	assert.Equal(t, "12, 8.5, 30", f.RappelLengths)
	assert.Equal(t, OverhangYes, f.HasOverhang)
	assert.Equal(t, "High", f.Difficulty)

	d, err := Validate(f)
	require.NoError(t, err)
	assert.Equal(t, c.RappelLengths, d.RappelLengths)
}
