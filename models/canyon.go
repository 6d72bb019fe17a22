package models

import "github.com/uptrace/bun"

// Difficulty is the technical grade of a canyon.
type Difficulty string

const (
	DifficultyLow    Difficulty = "Low"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHigh   Difficulty = "High"
)

// Difficulties lists the accepted grades in display order.
var Difficulties = []Difficulty{DifficultyLow, DifficultyMedium, DifficultyHigh}

// Canyon is a single barranco record.
type Canyon struct {
	bun.BaseModel `bun:"table:barrancos,alias:b"`

	ID            int64      `bun:"id,pk,autoincrement" json:"id"`
	Name          string     `bun:"name,type:varchar(100),notnull,unique" json:"name"`
	Location      string     `bun:"location,type:varchar(200),notnull" json:"location"`
	Difficulty    Difficulty `bun:"difficulty,type:varchar(50),notnull" json:"difficulty"`
	RappelCount   int        `bun:"rappel_count,notnull" json:"rappelCount"`
	RappelLengths []float64  `bun:"rappel_lengths,type:json,notnull" json:"rappelLengths"`
	HasOverhang   bool       `bun:"has_overhang,notnull" json:"hasOverhang"`
	Image         *string    `bun:"image,type:varchar(200)" json:"image,omitempty"`
	Comments      *string    `bun:"comments,type:text" json:"comments,omitempty"`
}
