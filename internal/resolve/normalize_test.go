package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName_Empty(t *testing.T) {
	assert.Equal(t, "", NormalizeName(""))
	assert.Equal(t, "", NormalizeName("   "))
}

func TestNormalizeName_Lowercase(t *testing.T) {
	assert.Equal(t, "bella vista venue", NormalizeName("Bella Vista Venue"))
}

func TestNormalizeName_Diacritics(t *testing.T) {
	assert.Equal(t, "caffe sicilia", NormalizeName("Caffè Sicilia"))
	assert.Equal(t, "tenuta cefalu", NormalizeName("Tenuta Cefalù"))
}

func TestNormalizeName_Punctuation(t *testing.T) {
	assert.Equal(t, "foto d arte", NormalizeName("Foto D'Arte"))
	assert.Equal(t, "rossi figli", NormalizeName("Rossi & Figli,"))
}

func TestNormalizeName_StopTokens(t *testing.T) {
	assert.Equal(t, "fioreria rossi", NormalizeName("Fioreria Rossi SRL"))
	assert.Equal(t, "fioreria rossi", NormalizeName("fioreria di rossi"))
	assert.Equal(t, "antica pasticceria corso", NormalizeName("Antica Pasticceria del Corso"))
	assert.Equal(t, "foto nozze", NormalizeName("Studio Foto Nozze"))
	assert.Equal(t, "grand hotel", NormalizeName("The Grand Hotel"))
}

func TestNormalizeName_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "villa bianca", NormalizeName("  Villa  -  Bianca  "))
}

func TestNormalizeName_Idempotent(t *testing.T) {
	inputs := []string{
		"Bella Vista Venue S.r.l.",
		"Caffè Sicilia",
		"Studio Foto D'Arte, di Rossi",
		"",
	}
	for _, in := range inputs {
		once := NormalizeName(in)
		assert.Equal(t, once, NormalizeName(once), "input %q", in)
	}
}

func TestNormalizeCity_KeepsAllTokens(t *testing.T) {
	// The name stoplist must not apply to cities.
	assert.Equal(t, "piana degli albanesi", NormalizeCity("Piana degli Albanesi"))
	assert.Equal(t, "cefalu", NormalizeCity("Cefalù"))
	assert.Equal(t, "", NormalizeCity("  "))
}
