package corpus

import (
	"errors"
	"testing"

	"github.com/driftlab/driftline/internal/models"
)

func TestValidate_CleanCorpus(t *testing.T) {
	c := New(
		[]*models.Model{testModel("m1", "n1")},
		[]*models.Narrative{testNarrative("n1")},
		[]*models.Collision{testCollision("c1")},
	)
	if err := Validate(c); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidate_AxisOutOfRange(t *testing.T) {
	m := testModel("m1")
	m.Opportunity.MA = 11.5
	c := New([]*models.Model{m}, nil, nil)

	err := Validate(c)
	var shapeErr *DataShapeError
	if !errors.As(err, &shapeErr) {
		t.Fatalf("expected DataShapeError, got %v", err)
	}
	if shapeErr.EntityID != "m1" || shapeErr.Field != "opportunity.MA" {
		t.Errorf("error = %+v", shapeErr)
	}
}

func TestValidate_MissingID(t *testing.T) {
	m := testModel("")
	c := New([]*models.Model{m}, nil, nil)
	var shapeErr *DataShapeError
	if err := Validate(c); !errors.As(err, &shapeErr) {
		t.Fatalf("expected DataShapeError, got %v", err)
	}
}

func TestValidate_BadProvenance(t *testing.T) {
	m := testModel("m1")
	m.Provenance = "guessed"
	c := New([]*models.Model{m}, nil, nil)
	var shapeErr *DataShapeError
	if err := Validate(c); !errors.As(err, &shapeErr) {
		t.Fatalf("expected DataShapeError, got %v", err)
	}
	if shapeErr.Field != "provenance" {
		t.Errorf("field = %s, want provenance", shapeErr.Field)
	}
}

func TestValidate_NarrativeAxisOutOfRange(t *testing.T) {
	n := testNarrative("n1")
	n.Scores.ES = 0.2
	c := New(nil, []*models.Narrative{n}, nil)
	var shapeErr *DataShapeError
	if err := Validate(c); !errors.As(err, &shapeErr) {
		t.Fatalf("expected DataShapeError, got %v", err)
	}
}

func TestCheckReferences_DanglingLinks(t *testing.T) {
	m := testModel("m1", "missing-narrative")
	n := testNarrative("n1", "missing-collision")
	c := New([]*models.Model{m}, []*models.Narrative{n}, nil)

	warnings := CheckReferences(c)
	if len(warnings) != 2 {
		t.Errorf("got %d warnings, want 2: %v", len(warnings), warnings)
	}
}
