// Package records validates canyon form input and applies create, update and
// delete operations against the store and the upload directory.
package records

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/padraicbc/barrancos/models"
)

const (
	maxNameLen     = 100
	maxLocationLen = 200
)

// Overhang choices as submitted by the form.
const (
	OverhangYes = "Yes"
	OverhangNo  = "No"
)

var allowedImageExt = map[string]bool{"jpg": true, "jpeg": true, "png": true}

// Form is the raw input of the create and edit forms.
type Form struct {
	Name          string `form:"name"`
	Location      string `form:"location"`
	Difficulty    string `form:"difficulty"`
	RappelCount   string `form:"rappel_count"`
	RappelLengths string `form:"rappel_lengths"`
	HasOverhang   string `form:"has_overhang"`
	Comments      string `form:"comments"`

	// Client-side name of the uploaded image, empty when no file was sent.
	ImageName string `form:"-"`
}

// FormFromCanyon returns the form prefilled with c's values.
func FormFromCanyon(c *models.Canyon) Form {
	f := Form{
		Name:          c.Name,
		Location:      c.Location,
		Difficulty:    string(c.Difficulty),
		RappelCount:   strconv.Itoa(c.RappelCount),
		RappelLengths: FormatLengths(c.RappelLengths),
		HasOverhang:   OverhangNo,
	}
	if c.HasOverhang {
		f.HasOverhang = OverhangYes
	}
	if c.Comments != nil {
		f.Comments = *c.Comments
	}
	return f
}

// Draft is a validated form, ready to be written onto a record.
type Draft struct {
	Name          string
	Location      string
	Difficulty    models.Difficulty
	RappelCount   int
	RappelLengths []float64
	HasOverhang   bool
	Comments      *string
}

// Apply copies every draft field onto c. ID and Image are left alone.
func (d Draft) Apply(c *models.Canyon) {
	c.Name = d.Name
	c.Location = d.Location
	c.Difficulty = d.Difficulty
	c.RappelCount = d.RappelCount
	c.RappelLengths = append([]float64(nil), d.RappelLengths...)
	c.HasOverhang = d.HasOverhang
	c.Comments = d.Comments
}

// Validate checks f and returns the normalized draft. The error, if any,
// is a *FieldError wrapping one of the validation sentinels.
func Validate(f Form) (Draft, error) {
	name := strings.TrimSpace(f.Name)
	location := strings.TrimSpace(f.Location)
	difficulty := strings.TrimSpace(f.Difficulty)
	countText := strings.TrimSpace(f.RappelCount)
	lengthsText := strings.TrimSpace(f.RappelLengths)
	overhang := strings.TrimSpace(f.HasOverhang)

	required := []struct{ field, value string }{
		{"name", name},
		{"location", location},
		{"difficulty", difficulty},
		{"rappel_count", countText},
		{"rappel_lengths", lengthsText},
		{"has_overhang", overhang},
	}
	for _, r := range required {
		if r.value == "" {
			return Draft{}, fieldErr(r.field, ErrMissingField, "Este campo es obligatorio.")
		}
	}

	if utf8.RuneCountInString(name) > maxNameLen {
		return Draft{}, fieldErr("name", ErrInvalidRange, "El nombre no puede superar %d caracteres.", maxNameLen)
	}
	if utf8.RuneCountInString(location) > maxLocationLen {
		return Draft{}, fieldErr("location", ErrInvalidRange, "La ubicación no puede superar %d caracteres.", maxLocationLen)
	}

	d, ok := parseDifficulty(difficulty)
	if !ok {
		return Draft{}, fieldErr("difficulty", ErrInvalidEnum, "Dificultad no válida: %q.", difficulty)
	}

	var hasOverhang bool
	switch overhang {
	case OverhangYes:
		hasOverhang = true
	case OverhangNo:
	default:
		return Draft{}, fieldErr("has_overhang", ErrInvalidEnum, "Valor de volado no válido: %q.", overhang)
	}

	count, err := strconv.Atoi(countText)
	if err != nil || count < 1 {
		return Draft{}, fieldErr("rappel_count", ErrInvalidRange, "Debe ser al menos 1")
	}

	lengths, err := ParseLengths(lengthsText)
	if err != nil {
		return Draft{}, err
	}
	if len(lengths) != count {
		return Draft{}, fieldErr("rappel_lengths", ErrCountMismatch,
			"La cantidad de metros no coincide con el número de rápeles.")
	}

	if f.ImageName != "" && !allowedImageExt[extension(f.ImageName)] {
		return Draft{}, fieldErr("image", ErrInvalidFileType, "Solo se permiten imágenes!")
	}

	var comments *string
	if c := strings.TrimSpace(f.Comments); c != "" {
		comments = &c
	}

	return Draft{
		Name:          name,
		Location:      location,
		Difficulty:    d,
		RappelCount:   count,
		RappelLengths: lengths,
		HasOverhang:   hasOverhang,
		Comments:      comments,
	}, nil
}

// ParseLengths parses comma separated rappel lengths. Blank tokens are
// skipped; any token that is not a finite number rejects the whole list.
func ParseLengths(text string) ([]float64, error) {
	var out []float64
	for _, tok := range strings.Split(text, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fieldErr("rappel_lengths", ErrInvalidNumberList,
				"Error al convertir los metros de rápel. Use números separados por comas.")
		}
		out = append(out, v)
	}
	return out, nil
}

// FormatLengths renders lengths as the comma separated text ParseLengths accepts.
func FormatLengths(lengths []float64) string {
	parts := make([]string, len(lengths))
	for i, v := range lengths {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ", ")
}

func parseDifficulty(s string) (models.Difficulty, bool) {
	for _, d := range models.Difficulties {
		if s == string(d) {
			return d, true
		}
	}
	return "", false
}

func extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}
