package graph

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haivist/emma/pkg/logger"
)

// UserNode is the identifier of the distinguished root entity. It is created
// at graph initialization and never deleted.
const UserNode = "USER"

// Entity types known to the graph. The type space is open: extraction
// categories may introduce new types without schema changes.
const (
	TypeUser    = "user"
	TypePerson  = "person"
	TypeEvent   = "event"
	TypeEmotion = "emotion"
	TypeTopic   = "topic"
	TypeMemory  = "memory"
	TypeUnknown = "unknown"
)

// Relation labels used by the memory layer.
const (
	RelHasMemory = "has_memory"
	RelMentions  = "mentions"
	RelKnows     = "knows"
	RelFeels     = "feels"
)

// Entity is a node in the knowledge graph.
type Entity struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Edge is a directed, typed, attributed relationship between two entities.
// Edges are keyed by the (source, target, relation) triple, so multiple
// relation types between the same pair of entities coexist.
type Edge struct {
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Relation   string                 `json:"relation_type"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Graph is an in-memory directed knowledge graph with a distinguished user
// root. All mutation goes through the upsert methods; entities are merged by
// identifier, never duplicated.
type Graph struct {
	mu      sync.RWMutex
	nodes   map[string]*Entity
	out     map[string]map[string]map[string]*Edge // source -> target -> relation -> edge
	archive *Archive
}

func New() *Graph {
	g := &Graph{
		nodes: make(map[string]*Entity),
		out:   make(map[string]map[string]map[string]*Edge),
	}
	g.nodes[UserNode] = &Entity{
		ID:        UserNode,
		Type:      TypeUser,
		CreatedAt: time.Now(),
	}
	return g
}

// SetArchive attaches an optional sqlite archive that receives a copy of
// every mutation. Archive failures are logged, never propagated.
func (g *Graph) SetArchive(a *Archive) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.archive = a
}

// UpsertEntity creates an entity or merges attributes into an existing one.
// Only the provided attribute keys are overwritten; CreatedAt is stamped on
// first creation only. A non-empty entityType overwrites the stored type.
func (g *Graph) UpsertEntity(id, entityType string, attributes map[string]interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.upsertEntity(id, entityType, attributes)
}

func (g *Graph) upsertEntity(id, entityType string, attributes map[string]interface{}) {
	node, ok := g.nodes[id]
	if !ok {
		node = &Entity{
			ID:         id,
			Type:       entityType,
			Attributes: make(map[string]interface{}),
			CreatedAt:  time.Now(),
		}
		if node.Type == "" {
			node.Type = TypeUnknown
		}
		g.nodes[id] = node
	} else if entityType != "" {
		node.Type = entityType
	}

	if node.Attributes == nil {
		node.Attributes = make(map[string]interface{})
	}
	for k, v := range attributes {
		node.Attributes[k] = v
	}

	if g.archive != nil {
		if err := g.archive.RecordEntity(id, node.Type, node.Attributes); err != nil {
			logger.DebugCF("graph", "Archive entity write failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// UpsertRelationship links two entities, auto-creating missing endpoints as
// unknown-typed entities so the graph never holds a dangling edge. Re-adding
// an existing (source, target, relation) triple merges edge attributes.
func (g *Graph) UpsertRelationship(from, to, relation string, attributes map[string]interface{}) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.upsertRelationship(from, to, relation, attributes)
}

func (g *Graph) upsertRelationship(from, to, relation string, attributes map[string]interface{}) {
	if _, ok := g.nodes[from]; !ok {
		g.upsertEntity(from, TypeUnknown, nil)
	}
	if _, ok := g.nodes[to]; !ok {
		g.upsertEntity(to, TypeUnknown, nil)
	}

	targets, ok := g.out[from]
	if !ok {
		targets = make(map[string]map[string]*Edge)
		g.out[from] = targets
	}
	relations, ok := targets[to]
	if !ok {
		relations = make(map[string]*Edge)
		targets[to] = relations
	}

	edge, ok := relations[relation]
	if !ok {
		edge = &Edge{
			Source:     from,
			Target:     to,
			Relation:   relation,
			Attributes: make(map[string]interface{}),
			CreatedAt:  time.Now(),
		}
		relations[relation] = edge
	}
	for k, v := range attributes {
		edge.Attributes[k] = v
	}

	if g.archive != nil {
		if err := g.archive.RecordRelation(from, to, relation, edge.Attributes); err != nil {
			logger.DebugCF("graph", "Archive relation write failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

// EntityInput and RelationInput describe extracted structure to be merged
// into the graph alongside a new memory node.
type EntityInput struct {
	ID         string
	Type       string
	Attributes map[string]interface{}
}

type RelationInput struct {
	From       string
	To         string
	Type       string
	Attributes map[string]interface{}
}

// MemoryInput is the full extraction result for one message.
type MemoryInput struct {
	Keyword   string
	Entities  []EntityInput
	Relations []RelationInput
}

// AddMemoryFromMessage records the message as a memory node linked to the
// user root, merges the extracted entities and relations, and links each
// entity to the memory with a mentions edge. Returns the memory identifier.
//
// Memory identifiers are uuid-based so concurrent sub-second creation never
// collides.
func (g *Graph) AddMemoryFromMessage(message string, in MemoryInput) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	keyword := in.Keyword
	if keyword == "" {
		keyword = "general"
	}

	memoryID := "memory_" + uuid.NewString()
	g.upsertEntity(memoryID, TypeMemory, map[string]interface{}{
		"content":   message,
		"keyword":   keyword,
		"timestamp": time.Now().Format(time.RFC3339Nano),
	})
	g.upsertRelationship(UserNode, memoryID, RelHasMemory, nil)

	for _, e := range in.Entities {
		entityType := e.Type
		if entityType == "" {
			entityType = TypeUnknown
		}
		g.upsertEntity(e.ID, entityType, e.Attributes)
		g.upsertRelationship(memoryID, e.ID, RelMentions, nil)

		switch entityType {
		case TypePerson, "family", "friend":
			g.upsertRelationship(UserNode, e.ID, RelKnows, nil)
		}
	}

	for _, r := range in.Relations {
		g.upsertRelationship(r.From, r.To, r.Type, r.Attributes)
	}

	logger.DebugCF("graph", "Memory recorded", map[string]interface{}{
		"memory_id": memoryID,
		"keyword":   keyword,
		"entities":  len(in.Entities),
	})

	return memoryID
}

// EntitiesByType returns copies of all entities of the given type.
func (g *Graph) EntitiesByType(entityType string) []Entity {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Entity
	for _, node := range g.nodes {
		if node.Type == entityType {
			out = append(out, cloneEntity(node))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UserRelation describes one direct neighbor of the user root.
type UserRelation struct {
	Entity     string    `json:"entity"`
	EntityType string    `json:"entity_type"`
	Relation   string    `json:"relation_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// UserRelationships returns all outgoing edges of the user root.
func (g *Graph) UserRelationships() []UserRelation {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []UserRelation
	for target, relations := range g.out[UserNode] {
		node := g.nodes[target]
		for rel, edge := range relations {
			entityType := TypeUnknown
			if node != nil {
				entityType = node.Type
			}
			out = append(out, UserRelation{
				Entity:     target,
				EntityType: entityType,
				Relation:   rel,
				CreatedAt:  edge.CreatedAt,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return out[i].Relation < out[j].Relation
	})
	return out
}

// Stats summarizes the graph for the host surface.
type Stats struct {
	TotalNodes     int            `json:"total_nodes"`
	TotalEdges     int            `json:"total_edges"`
	TotalMemories  int            `json:"total_memories"`
	EntitiesByType map[string]int `json:"entities_by_type"`
}

func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	stats := Stats{EntitiesByType: make(map[string]int)}
	stats.TotalNodes = len(g.nodes)
	for _, node := range g.nodes {
		stats.EntitiesByType[node.Type]++
		if node.Type == TypeMemory {
			stats.TotalMemories++
		}
	}
	for _, targets := range g.out {
		for _, relations := range targets {
			stats.TotalEdges += len(relations)
		}
	}
	return stats
}

// MemoryRef is a memory node surfaced by retrieval or traversal.
type MemoryRef struct {
	ID        string `json:"id"`
	Content   string `json:"content"`
	Keyword   string `json:"keyword"`
	Timestamp string `json:"timestamp"`
	Distance  int    `json:"distance,omitempty"`
}

// RecentMemories returns up to n memory nodes, most recent first.
func (g *Graph) RecentMemories(n int) []MemoryRef {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []MemoryRef
	for _, node := range g.nodes {
		if node.Type != TypeMemory {
			continue
		}
		out = append(out, memoryRef(node, 0))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Clear resets the graph back to the initial user-root-only state.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.nodes = map[string]*Entity{
		UserNode: {
			ID:        UserNode,
			Type:      TypeUser,
			CreatedAt: time.Now(),
		},
	}
	g.out = make(map[string]map[string]map[string]*Edge)
}

// HasEntity reports whether an entity exists.
func (g *Graph) HasEntity(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// GetEntity returns a copy of the entity, if present.
func (g *Graph) GetEntity(id string) (Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[id]
	if !ok {
		return Entity{}, false
	}
	return cloneEntity(node), true
}

func cloneEntity(node *Entity) Entity {
	cp := *node
	if node.Attributes != nil {
		cp.Attributes = make(map[string]interface{}, len(node.Attributes))
		for k, v := range node.Attributes {
			cp.Attributes[k] = v
		}
	}
	return cp
}

func memoryRef(node *Entity, distance int) MemoryRef {
	ref := MemoryRef{ID: node.ID, Distance: distance}
	if s, ok := node.Attributes["content"].(string); ok {
		ref.Content = s
	}
	if s, ok := node.Attributes["keyword"].(string); ok {
		ref.Keyword = s
	}
	if s, ok := node.Attributes["timestamp"].(string); ok {
		ref.Timestamp = s
	}
	return ref
}
