package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/biosample-metadata-analytics/pkg/errors"
)

func TestStandardTerms(t *testing.T) {
	a, err := ByName("")
	require.NoError(t, err)
	assert.Equal(t, Standard, a.Name())

	tests := []struct {
		in   string
		want []string
	}{
		{"Disease", []string{"disease"}},
		{"Homo sapiens", []string{"homo", "sapiens"}},
		{"PATO_0000384", []string{"pato_0000384"}},
		{"PATO:0000384", []string{"pato", "0000384"}},
		{"3.5", []string{"3.5"}},
		{"3.5 mg", []string{"3.5", "mg"}},
		{"1,000 cells", []string{"1,000", "cells"}},
		{"don't", []string{"don't"}},
		{"U.S.A.", []string{"u.s.a"}},
		{"liver, lung", []string{"liver", "lung"}},
		{"end.", []string{"end"}},
		{"a.5", []string{"a", "5"}},
		{"__", nil},
		{"X of the Y", []string{"x", "of", "the", "y"}},
		{"male, male", []string{"male"}},
		{"  --  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, a.Terms(tt.in))
		})
	}
}

func TestEnglishDropsStopWordsAndStems(t *testing.T) {
	a, err := ByName(English)
	require.NoError(t, err)

	toks := a.Tokenize("the diseases of mice")
	require.Len(t, toks, 2)
	assert.Equal(t, Token{Term: "diseas", Position: 0}, toks[0])
	assert.Equal(t, "mice", toks[1].Term)
	assert.Equal(t, 1, toks[1].Position)
}

func TestEnglishStripsPossessive(t *testing.T) {
	a, err := ByName(English)
	require.NoError(t, err)
	assert.Equal(t, []string{"crohn", "disease"}, a.Terms("Crohn's disease"))
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"running":    "runn",
		"relational": "relate",
		"cats":       "cat",
		"glass":      "glass",
		"is":         "is",
	}
	for in, want := range tests {
		assert.Equal(t, want, stem(in), in)
	}
}

func TestUnknownAnalyzer(t *testing.T) {
	_, err := ByName("klingon")
	assert.ErrorIs(t, err, apperrors.ErrUnknownBackend)
}
