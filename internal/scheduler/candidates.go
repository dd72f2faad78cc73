package scheduler

import (
	"sort"

	"github.com/clinrota/clinrota-api/internal/models"
)

// Candidate pairs an eligible person with the rotation template governing the
// block they would serve under.
type Candidate struct {
	Person   models.Person
	Template models.RotationTemplate
}

// BlockCandidates holds the ordered eligible people for one block, split by
// the role they would fill.
type BlockCandidates struct {
	Block       models.Block
	Template    models.RotationTemplate
	Residents   []Candidate
	Supervisors []Candidate
}

// CandidateSet maps every block in the generation range to its eligible
// candidates. Blocks are ordered by scarcity (fewest resident candidates
// first) to bias greedy search toward harder-to-fill blocks.
type CandidateSet struct {
	Blocks  []BlockCandidates
	byBlock map[string]*BlockCandidates
}

// ForBlock returns the candidate list for a block id.
func (cs *CandidateSet) ForBlock(id string) (*BlockCandidates, bool) {
	bc, ok := cs.byBlock[id]
	return bc, ok
}

// GenerateCandidates enumerates eligible (person, template) pairs per block,
// pre-filtering by absence, credential validity and PGY level.
//
// Each block is scheduled under exactly one template: the one with the most
// eligible residents on that date, ties broken by input order. Within a
// block, resident candidates are ordered by person scarcity (fewest remaining
// eligible blocks first), then by input order, so downstream strategies place
// hard-to-place people before flexible ones.
func GenerateCandidates(people []models.Person, templates []models.RotationTemplate, absences models.AbsenceIndex, blocks []models.Block) *CandidateSet {
	inputOrder := make(map[string]int, len(people))
	for i, p := range people {
		inputOrder[p.ID] = i
	}

	// First pass: eligible blocks per person, for scarcity scoring.
	eligibleBlocks := make(map[string]int, len(people))
	for _, b := range blocks {
		for _, p := range people {
			if absences.Absent(p.ID, b.Date) {
				continue
			}
			for _, t := range templates {
				if t.EligiblePerson(p, b.Date) {
					eligibleBlocks[p.ID]++
					break
				}
			}
		}
	}

	set := &CandidateSet{byBlock: make(map[string]*BlockCandidates, len(blocks))}
	for _, b := range blocks {
		bc := BlockCandidates{Block: b}

		// Pick the governing template: most eligible residents wins.
		bestCount := -1
		for _, t := range templates {
			count := 0
			for _, p := range people {
				if p.IsResident() && !absences.Absent(p.ID, b.Date) && t.EligiblePerson(p, b.Date) {
					count++
				}
			}
			if count > bestCount {
				bestCount = count
				bc.Template = t
			}
		}
		if bestCount < 0 {
			continue
		}

		for _, p := range people {
			if absences.Absent(p.ID, b.Date) {
				continue
			}
			if !bc.Template.EligiblePerson(p, b.Date) {
				continue
			}
			c := Candidate{Person: p, Template: bc.Template}
			if p.IsResident() {
				bc.Residents = append(bc.Residents, c)
			} else {
				bc.Supervisors = append(bc.Supervisors, c)
			}
		}

		sort.SliceStable(bc.Residents, func(i, j int) bool {
			a, z := bc.Residents[i].Person, bc.Residents[j].Person
			if eligibleBlocks[a.ID] != eligibleBlocks[z.ID] {
				return eligibleBlocks[a.ID] < eligibleBlocks[z.ID]
			}
			return inputOrder[a.ID] < inputOrder[z.ID]
		})

		set.Blocks = append(set.Blocks, bc)
	}

	// Scarcity ordering across blocks: fewest resident candidates first,
	// chronological within ties for determinism.
	sort.SliceStable(set.Blocks, func(i, j int) bool {
		return len(set.Blocks[i].Residents) < len(set.Blocks[j].Residents)
	})
	for i := range set.Blocks {
		set.byBlock[set.Blocks[i].Block.ID] = &set.Blocks[i]
	}
	return set
}

// FilterPeople narrows a roster to the requested PGY levels. Faculty always
// pass; an empty filter keeps everyone.
func FilterPeople(people []models.Person, pgyLevels []int) []models.Person {
	if len(pgyLevels) == 0 {
		return people
	}
	want := make(map[int]bool, len(pgyLevels))
	for _, lvl := range pgyLevels {
		want[lvl] = true
	}
	out := make([]models.Person, 0, len(people))
	for _, p := range people {
		if !p.IsResident() || want[p.PGYLevel] {
			out = append(out, p)
		}
	}
	return out
}

// FilterTemplates narrows templates to the requested ids; an empty filter
// keeps everything.
func FilterTemplates(templates []models.RotationTemplate, ids []string) []models.RotationTemplate {
	if len(ids) == 0 {
		return templates
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := make([]models.RotationTemplate, 0, len(templates))
	for _, t := range templates {
		if want[t.ID] {
			out = append(out, t)
		}
	}
	return out
}
