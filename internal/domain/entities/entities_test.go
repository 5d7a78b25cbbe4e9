package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleChecklist() Checklist {
	return Checklist{
		{Aspect: "Integration", Questions: []string{"Which systems?", "Which protocol?"}},
		{Aspect: "Security", Questions: []string{"Is data encrypted?"}},
	}
}

func TestChecklist_CloneIsDeep(t *testing.T) {
	orig := sampleChecklist()
	clone := orig.Clone()

	clone[0].Questions[0] = "changed"
	clone[1].Aspect = "changed"

	assert.Equal(t, "Which systems?", orig[0].Questions[0])
	assert.Equal(t, "Security", orig[1].Aspect)
	assert.Nil(t, Checklist(nil).Clone())
}

func TestChecklist_QuestionCount(t *testing.T) {
	assert.Equal(t, 3, sampleChecklist().QuestionCount())
	assert.Equal(t, 0, Checklist{}.QuestionCount())
}

func TestChecklist_Equal(t *testing.T) {
	a := sampleChecklist()
	b := sampleChecklist()
	assert.True(t, a.Equal(b))

	b[1].Questions = append(b[1].Questions, "extra")
	assert.False(t, a.Equal(b))

	c := sampleChecklist()
	c[0], c[1] = c[1], c[0]
	assert.False(t, a.Equal(c), "order matters")
}

func TestChecklist_HasAspect(t *testing.T) {
	c := sampleChecklist()
	assert.True(t, c.HasAspect("security"))
	assert.True(t, c.HasAspect("  Integration "))
	assert.False(t, c.HasAspect("Usability"))
}

func TestProgress_Fraction(t *testing.T) {
	assert.InDelta(t, 0.5, Progress{Done: 2, Total: 4}.Fraction(), 1e-9)
	assert.InDelta(t, 1.0, Progress{}.Fraction(), 1e-9)
}

func TestAspectRecord_Clone(t *testing.T) {
	r := AspectRecord{Aspect: "A", Questions: []string{"q"}}
	c := r.Clone()
	c.Questions[0] = "other"
	if r.Questions[0] != "q" {
		t.Errorf("clone shares backing array")
	}
}
