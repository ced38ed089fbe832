package textfold

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain ascii", input: "Team Coffee", want: "team coffee"},
		{name: "portuguese accents", input: "Reunião de Equipe", want: "reuniao de equipe"},
		{name: "cedilla", input: "Terça-feira", want: "terca-feira"},
		{name: "collapses whitespace", input: "  amanhã   às\t15h ", want: "amanha as 15h"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fold(tt.input))
		})
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Reunião semanal", "reuniao"))
	assert.True(t, Contains("dentist appointment", "DENTIST"))
	assert.False(t, Contains("standup", "retro"))
}
