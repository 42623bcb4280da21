// Package corpus holds the in-memory entity graph for one run and the
// snapshot stores that persist it. A Corpus has exactly one owner per
// run: it is loaded whole, passed by reference through the pipeline,
// and either written back whole or discarded under dry-run.
package corpus

import (
	"github.com/driftlab/driftline/internal/models"
)

// Corpus is the full scored entity graph for one cycle.
type Corpus struct {
	Models     []*models.Model     `json:"models"`
	Narratives []*models.Narrative `json:"narratives"`
	Collisions []*models.Collision `json:"collisions"`

	modelsByID    map[string]*models.Model
	narrativesByID map[string]*models.Narrative
	collisionsByID map[string]*models.Collision
	modelsByNarr   map[string][]*models.Model
}

// New builds a corpus and its lookup indexes. Force tags on models and
// collisions are normalized through ParseForce here, the single
// ingestion boundary.
func New(ms []*models.Model, ns []*models.Narrative, cs []*models.Collision) *Corpus {
	c := &Corpus{Models: ms, Narratives: ns, Collisions: cs}
	for _, m := range ms {
		for i, f := range m.Forces {
			m.Forces[i] = models.ParseForce(string(f))
		}
	}
	for _, col := range cs {
		col.Forces[0] = models.ParseForce(string(col.Forces[0]))
		col.Forces[1] = models.ParseForce(string(col.Forces[1]))
	}
	c.Reindex()
	return c
}

// Reindex rebuilds the lookup maps. Call after structural changes;
// score mutations do not require it.
func (c *Corpus) Reindex() {
	c.modelsByID = make(map[string]*models.Model, len(c.Models))
	c.narrativesByID = make(map[string]*models.Narrative, len(c.Narratives))
	c.collisionsByID = make(map[string]*models.Collision, len(c.Collisions))
	c.modelsByNarr = make(map[string][]*models.Model)

	for _, m := range c.Models {
		c.modelsByID[m.ID] = m
		for _, link := range m.Narratives {
			c.modelsByNarr[link.NarrativeID] = append(c.modelsByNarr[link.NarrativeID], m)
		}
	}
	for _, n := range c.Narratives {
		c.narrativesByID[n.ID] = n
	}
	for _, col := range c.Collisions {
		c.collisionsByID[col.ID] = col
	}
}

// Model returns the model with the given id, or nil.
func (c *Corpus) Model(id string) *models.Model { return c.modelsByID[id] }

// Narrative returns the narrative with the given id, or nil.
func (c *Corpus) Narrative(id string) *models.Narrative { return c.narrativesByID[id] }

// Collision returns the collision with the given id, or nil.
func (c *Corpus) Collision(id string) *models.Collision { return c.collisionsByID[id] }

// ModelsForNarrative returns every model linked to the narrative.
func (c *Corpus) ModelsForNarrative(id string) []*models.Model {
	return c.modelsByNarr[id]
}

// ModelsForCollision returns every model reachable transitively from
// the collision through narratives that reference it. Each model
// appears once even when several narratives link it.
func (c *Corpus) ModelsForCollision(id string) []*models.Model {
	seen := make(map[string]bool)
	var out []*models.Model
	for _, n := range c.Narratives {
		if !containsString(n.Collisions, id) {
			continue
		}
		for _, m := range c.modelsByNarr[n.ID] {
			if !seen[m.ID] {
				seen[m.ID] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// Clone deep-copies the corpus. Dry-run propagation mutates a clone so
// the caller's corpus stays untouched.
func (c *Corpus) Clone() *Corpus {
	ms := make([]*models.Model, len(c.Models))
	for i, m := range c.Models {
		cp := *m
		cp.Narratives = append([]models.NarrativeLink(nil), m.Narratives...)
		cp.Forces = append([]models.Force(nil), m.Forces...)
		ms[i] = &cp
	}
	ns := make([]*models.Narrative, len(c.Narratives))
	for i, n := range c.Narratives {
		cp := *n
		cp.Collisions = append([]string(nil), n.Collisions...)
		cp.Sectors = append([]string(nil), n.Sectors...)
		ns[i] = &cp
	}
	cs := make([]*models.Collision, len(c.Collisions))
	for i, col := range c.Collisions {
		cp := *col
		cp.Sectors = append([]string(nil), col.Sectors...)
		cs[i] = &cp
	}
	clone := &Corpus{Models: ms, Narratives: ns, Collisions: cs}
	clone.Reindex()
	return clone
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
