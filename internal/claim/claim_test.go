package claim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_NormalizesWhitespace(t *testing.T) {
	c := New("  Water   boils\tat 100°C  ", Hints{})
	assert.Equal(t, "Water boils at 100°C", c.Normalized)
	assert.NotEmpty(t, c.ID)
}

func TestInferDomain(t *testing.T) {
	tests := []struct {
		text string
		want Domain
	}{
		{"Vaccines cause autism.", DomainHealth},
		{"The Riemann hypothesis has been proved.", DomainScience},
		{"BREAKING: Event X happened today.", DomainNews},
		{"This algorithm uses a hash table.", DomainTech},
		{"Capital of Poland is Warsaw.", DomainGeneral},
	}
	for _, tt := range tests {
		c := New(tt.text, Hints{})
		assert.Equal(t, tt.want, c.Domain, "text=%q", tt.text)
	}
}

func TestDomainOverride(t *testing.T) {
	c := New("Capital of Poland is Warsaw.", Hints{DomainOverride: DomainTech})
	assert.Equal(t, DomainTech, c.Domain)
}

func TestInferComplexity(t *testing.T) {
	simple := New("Capital of Poland is Warsaw.", Hints{})
	assert.Equal(t, ComplexitySimple, simple.Complexity)

	complex := New("The hypothesis that this theorem has a formal proof remains a matter of causal and statistically rigorous peer-reviewed debate among specialists across several competing schools of mathematical thought.", Hints{})
	assert.Equal(t, ComplexityComplex, complex.Complexity)
}
