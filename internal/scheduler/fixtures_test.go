package scheduler

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/clinrota/clinrota-api/internal/models"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func resident(id string, pgy int) models.Person {
	return models.Person{ID: id, Name: id, Role: models.RoleResident, PGYLevel: pgy}
}

func faculty(id string) models.Person {
	return models.Person{ID: id, Name: id, Role: models.RoleFaculty}
}

func hoursCap(h float64) *float64 { return &h }

func wardTemplate(ratio, minPGY int) models.RotationTemplate {
	return models.RotationTemplate{
		ID:               "ward",
		Activity:         "ward rounds",
		SupervisionRatio: ratio,
		MinPGYLevel:      minPGY,
	}
}

// testRoster builds the standard fixture: three residents per PGY level plus
// the requested faculty headcount.
func testRoster(residentsPerLevel, facultyCount int) []models.Person {
	var people []models.Person
	id := 0
	for level := 1; level <= 3; level++ {
		for i := 0; i < residentsPerLevel; i++ {
			id++
			people = append(people, resident("r"+strconv.Itoa(id), level))
		}
	}
	for i := 1; i <= facultyCount; i++ {
		people = append(people, faculty("f"+strconv.Itoa(i)))
	}
	return people
}

func snapshotFor(blocks []models.Block, people []models.Person, templates []models.RotationTemplate, absences []models.Absence, assignments []models.Assignment) *Snapshot {
	peopleByID := make(map[string]models.Person, len(people))
	for _, p := range people {
		peopleByID[p.ID] = p
	}
	templatesByID := make(map[string]models.RotationTemplate, len(templates))
	for _, t := range templates {
		templatesByID[t.ID] = t
	}
	return &Snapshot{
		Blocks:      blocks,
		People:      peopleByID,
		Templates:   templatesByID,
		Absences:    models.NewAbsenceIndex(absences),
		Assignments: assignments,
	}
}

func assignmentOn(block models.Block, personID, templateID string, role models.BlockRole) models.Assignment {
	return models.Assignment{
		ID:         block.ID + ":" + personID,
		BlockID:    block.ID,
		PersonID:   personID,
		TemplateID: templateID,
		Role:       role,
		Version:    1,
	}
}

func problemFor(t *testing.T, start, end string, people []models.Person, templates []models.RotationTemplate, absences []models.Absence) *Problem {
	t.Helper()
	blocks := models.BlocksForRange(day(t, start), day(t, end))
	idx := models.NewAbsenceIndex(absences)
	peopleByID := make(map[string]models.Person, len(people))
	for _, p := range people {
		peopleByID[p.ID] = p
	}
	templatesByID := make(map[string]models.RotationTemplate, len(templates))
	for _, tmpl := range templates {
		templatesByID[tmpl.ID] = tmpl
	}
	return &Problem{
		Blocks:     blocks,
		Candidates: GenerateCandidates(people, templates, idx, blocks),
		People:     peopleByID,
		Templates:  templatesByID,
		Absences:   idx,
	}
}
