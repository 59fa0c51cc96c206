// Package graph maintains an in-process knowledge graph linking research
// articles to the techniques, platforms, and model families they discuss.
//
// The graph backs retrieval enhancement: given the entities mentioned in a
// result set, related entities and connecting paths supply extra context.
package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// EntityType classifies graph nodes.
type EntityType string

const (
	EntityPaper        EntityType = "paper"
	EntityTechnique    EntityType = "technique"
	EntityPlatform     EntityType = "platform"
	EntityModelType    EntityType = "model_type"
	EntityOptimization EntityType = "optimization"
	EntityMetric       EntityType = "metric"
	EntityCompany      EntityType = "company"
	EntityAuthor       EntityType = "author"
)

// Relationship types.
const (
	// RelationUses links a paper to a technique it applies.
	RelationUses = "uses"

	// RelationRelatesTo is the generic association between entities.
	RelationRelatesTo = "relates_to"
)

// Entity is a graph node.
type Entity struct {
	// ID uniquely identifies the entity, e.g. "technique:quantization".
	ID string `json:"id"`

	// Type classifies the entity.
	Type EntityType `json:"type"`

	// Name is the human-readable label.
	Name string `json:"name"`

	// ArticleID links paper entities back to the store. Zero for
	// concept entities.
	ArticleID int64 `json:"article_id,omitempty"`

	// Properties holds optional extra attributes.
	Properties map[string]interface{} `json:"properties,omitempty"`

	// CreatedAt records when the entity was first added.
	CreatedAt time.Time `json:"created_at"`
}

// Relation is a weighted, typed edge between two entities.
type Relation struct {
	// From and To are entity IDs. Traversal treats edges as
	// bidirectional; From/To preserve the original direction.
	From string `json:"from"`
	To   string `json:"to"`

	// Type is the relationship type.
	Type string `json:"type"`

	// Weight is the edge strength in [0,1].
	Weight float64 `json:"weight"`
}

// Graph is a thread-safe in-memory knowledge graph.
type Graph struct {
	mu sync.RWMutex

	entities  map[string]*Entity
	relations []Relation

	// adjacency maps an entity ID to the indexes of its incident
	// relations, crossing both directions.
	adjacency map[string][]int
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		entities:  make(map[string]*Entity),
		adjacency: make(map[string][]int),
	}
}

// AddEntity inserts or updates an entity. Re-adding an existing ID keeps
// the original creation time and merges properties.
func (g *Graph) AddEntity(e *Entity) {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok := g.entities[e.ID]
	if !ok {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now()
		}
		g.entities[e.ID] = e
		return
	}

	existing.Name = e.Name
	if e.ArticleID != 0 {
		existing.ArticleID = e.ArticleID
	}
	for k, v := range e.Properties {
		if existing.Properties == nil {
			existing.Properties = make(map[string]interface{})
		}
		existing.Properties[k] = v
	}
}

// AddRelation adds an edge between two existing entities. Adding an edge
// that already exists with the same endpoints and type updates its weight
// to the maximum of old and new.
func (g *Graph) AddRelation(from, to, relType string, weight float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.entities[from]; !ok {
		return fmt.Errorf("AddRelation: unknown entity %q", from)
	}
	if _, ok := g.entities[to]; !ok {
		return fmt.Errorf("AddRelation: unknown entity %q", to)
	}

	for i := range g.relations {
		r := &g.relations[i]
		if r.Type != relType {
			continue
		}
		if (r.From == from && r.To == to) || (r.From == to && r.To == from) {
			if weight > r.Weight {
				r.Weight = weight
			}
			return nil
		}
	}

	g.relations = append(g.relations, Relation{From: from, To: to, Type: relType, Weight: weight})
	idx := len(g.relations) - 1
	g.adjacency[from] = append(g.adjacency[from], idx)
	g.adjacency[to] = append(g.adjacency[to], idx)
	return nil
}

// Entity returns the entity with the given ID, or nil.
func (g *Graph) Entity(id string) *Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.entities[id]
}

// EntitiesByType returns all entities of the given type, sorted by name.
func (g *Graph) EntitiesByType(t EntityType) []*Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*Entity
	for _, e := range g.entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Neighbor is an adjacent entity together with the connecting edge.
type Neighbor struct {
	Entity   *Entity
	Relation Relation
}

// Neighbors returns the entities directly connected to id, strongest
// edges first. Relationship types given as arguments restrict the result
// to matching edges; none means all edges.
func (g *Graph) Neighbors(id string, relTypes ...string) []Neighbor {
	g.mu.RLock()
	defer g.mu.RUnlock()

	neighbors := g.neighborsLocked(id)
	if len(relTypes) == 0 {
		return neighbors
	}

	var out []Neighbor
	for _, n := range neighbors {
		for _, t := range relTypes {
			if n.Relation.Type == t {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

func (g *Graph) neighborsLocked(id string) []Neighbor {
	var out []Neighbor
	for _, ri := range g.adjacency[id] {
		rel := g.relations[ri]
		other := rel.To
		if other == id {
			other = rel.From
		}
		if e, ok := g.entities[other]; ok {
			out = append(out, Neighbor{Entity: e, Relation: rel})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Relation.Weight != out[j].Relation.Weight {
			return out[i].Relation.Weight > out[j].Relation.Weight
		}
		return out[i].Entity.ID < out[j].Entity.ID
	})
	return out
}

// FindPaths returns all simple paths between two entities up to maxDepth
// edges, found by depth-first search. Each path is the sequence of entity
// IDs from start to end inclusive.
func (g *Graph) FindPaths(from, to string, maxDepth int) [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.entities[from]; !ok {
		return nil
	}
	if _, ok := g.entities[to]; !ok {
		return nil
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}

	var paths [][]string
	visited := map[string]bool{from: true}
	path := []string{from}

	var dfs func(current string, depth int)
	dfs = func(current string, depth int) {
		if current == to {
			found := make([]string, len(path))
			copy(found, path)
			paths = append(paths, found)
			return
		}
		if depth >= maxDepth {
			return
		}
		for _, n := range g.neighborsLocked(current) {
			next := n.Entity.ID
			if visited[next] {
				continue
			}
			visited[next] = true
			path = append(path, next)
			dfs(next, depth+1)
			path = path[:len(path)-1]
			visited[next] = false
		}
	}
	dfs(from, 0)

	sort.Slice(paths, func(i, j int) bool {
		if len(paths[i]) != len(paths[j]) {
			return len(paths[i]) < len(paths[j])
		}
		return fmt.Sprint(paths[i]) < fmt.Sprint(paths[j])
	})
	return paths
}

// Subgraph returns the entity IDs reachable from center within depth
// edges, found by breadth-first search. The center comes first and IDs
// appear in discovery order, so nearer entities precede farther ones.
func (g *Graph) Subgraph(center string, depth int) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.entities[center]; !ok {
		return nil
	}
	if depth <= 0 {
		depth = 1
	}

	seen := map[string]bool{center: true}
	out := []string{center}
	frontier := []string{center}

	for d := 0; d < depth; d++ {
		var next []string
		for _, id := range frontier {
			for _, n := range g.neighborsLocked(id) {
				if seen[n.Entity.ID] {
					continue
				}
				seen[n.Entity.ID] = true
				out = append(out, n.Entity.ID)
				next = append(next, n.Entity.ID)
			}
		}
		frontier = next
	}

	return out
}

// Stats summarizes graph size.
type Stats struct {
	Entities  int                `json:"entities"`
	Relations int                `json:"relations"`
	ByType    map[EntityType]int `json:"by_type"`
}

// Stats returns entity and relation counts.
func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	byType := make(map[EntityType]int)
	for _, e := range g.entities {
		byType[e.Type]++
	}
	return Stats{
		Entities:  len(g.entities),
		Relations: len(g.relations),
		ByType:    byType,
	}
}

// snapshot is the JSON persistence format.
type snapshot struct {
	Entities  []*Entity  `json:"entities"`
	Relations []Relation `json:"relations"`
	SavedAt   time.Time  `json:"saved_at"`
}

// Save writes the graph to path as JSON, creating parent directories as
// needed. The write goes through a temp file and rename so a crash cannot
// leave a truncated snapshot.
func (g *Graph) Save(path string) error {
	g.mu.RLock()
	snap := snapshot{
		Entities:  make([]*Entity, 0, len(g.entities)),
		Relations: append([]Relation(nil), g.relations...),
		SavedAt:   time.Now(),
	}
	for _, e := range g.entities {
		snap.Entities = append(snap.Entities, e)
	}
	g.mu.RUnlock()

	sort.Slice(snap.Entities, func(i, j int) bool { return snap.Entities[i].ID < snap.Entities[j].ID })

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("graph save: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("graph save: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("graph save: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("graph save: %w", err)
	}
	return nil
}

// Load reads a JSON snapshot, replacing the graph's current contents.
// A missing file leaves the graph empty without error.
func (g *Graph) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("graph load: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("graph load: %w", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.entities = make(map[string]*Entity, len(snap.Entities))
	g.relations = g.relations[:0]
	g.adjacency = make(map[string][]int)

	for _, e := range snap.Entities {
		g.entities[e.ID] = e
	}
	for _, r := range snap.Relations {
		if _, ok := g.entities[r.From]; !ok {
			continue
		}
		if _, ok := g.entities[r.To]; !ok {
			continue
		}
		g.relations = append(g.relations, r)
		idx := len(g.relations) - 1
		g.adjacency[r.From] = append(g.adjacency[r.From], idx)
		g.adjacency[r.To] = append(g.adjacency[r.To], idx)
	}
	return nil
}
