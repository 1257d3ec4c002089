// Package catalog holds the reference data offered to clients.
package catalog

import "github.com/pavelanni/profai/internal/llm/prompts"

// Grades lists the school years a student can pick.
var Grades = []string{
	"1º EF", "2º EF", "3º EF", "4º EF", "5º EF",
	"6º EF", "7º EF", "8º EF", "9º EF",
}

// Subjects lists the subjects a conversation can be about.
var Subjects = []string{
	"Matemática", "Português", "Ciências", "História", "Geografia",
	"Inglês", "Física", "Química", "Biologia", "Redação", "Artes",
	"Educação Física", "Filosofia", "Sociologia", "Tema Livre",
}

// Style describes a teaching style. Name and description are message IDs.
type Style struct {
	Key           prompts.Style
	NameID        string
	DescriptionID string
}

// Styles lists the teaching styles in display order.
var Styles = []Style{
	{Key: prompts.StylePatient, NameID: "StylePatientName", DescriptionID: "StylePatientDescription"},
	{Key: prompts.StyleDirect, NameID: "StyleDirectName", DescriptionID: "StyleDirectDescription"},
	{Key: prompts.StylePoetic, NameID: "StylePoeticName", DescriptionID: "StylePoeticDescription"},
	{Key: prompts.StyleMotivating, NameID: "StyleMotivatingName", DescriptionID: "StyleMotivatingDescription"},
}
