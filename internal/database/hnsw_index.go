package database

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	PersonCount int64     `json:"person_count"`
	MaxPersonID int64     `json:"max_person_id"`
	BuildTime   time.Time `json:"build_time"`
	Version     int       `json:"version"`
}

const hnswMetadataVersion = 1

// HNSWIndex wraps the HNSW graph for target pose search.
type HNSWIndex struct {
	graph    *hnsw.Graph[int64]
	idToItem map[int64]*TargetPerson
	mu       sync.RWMutex
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToItem: make(map[int64]*TargetPerson),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents with people.
func (h *HNSWIndex) Build(people []TargetPerson) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.idToItem = make(map[int64]*TargetPerson, len(people))
	if len(people) == 0 {
		h.graph = nil
		return
	}

	g := newGraph()
	for i := range people {
		p := &people[i]
		if len(p.Vector) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(p.ID, p.Vector))
		h.idToItem[p.ID] = p
	}
	h.graph = g
}

// Add inserts a single person.
func (h *HNSWIndex) Add(p *TargetPerson) {
	if len(p.Vector) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.graph == nil {
		h.graph = newGraph()
	}
	h.graph.Add(hnsw.MakeNode(p.ID, p.Vector))
	h.idToItem[p.ID] = p
}

// Delete removes a person. HNSW graphs keep the node, so the person is only
// dropped from the lookup map and filtered out of search results.
func (h *HNSWIndex) Delete(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.idToItem, id)
}

// Search finds up to k nearest people to query and returns them with their
// cosine distances, nearest first.
func (h *HNSWIndex) Search(query []float32, k int) ([]TargetPerson, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	neighbors := h.graph.Search(query, k*HNSWSearchMultiplier)

	people := make([]TargetPerson, 0, k)
	distances := make([]float64, 0, k)
	for _, n := range neighbors {
		p, ok := h.idToItem[n.Key]
		if !ok {
			continue
		}
		people = append(people, *p)
		distances = append(distances, CosineDistance(query, n.Value))
		if len(people) == k {
			break
		}
	}
	return people, distances, nil
}

// Get returns the person for a given ID.
func (h *HNSWIndex) Get(id int64) *TargetPerson {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToItem[id]
}

// Count returns the number of indexed people.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToItem)
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil
}

// Save persists the graph to path, metadata to path+".meta" and the people to
// path+".people" for fast loading at startup.
func (h *HNSWIndex) Save(path string, metadata HNSWIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		_ = os.Remove(path + ".people")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	err = h.graph.Export(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}

	metadata.Version = hnswMetadataVersion
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	people := make([]TargetPerson, 0, len(h.idToItem))
	for _, p := range h.idToItem {
		people = append(people, *p)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(people); err != nil {
		return fmt.Errorf("failed to encode people: %w", err)
	}
	if err := os.WriteFile(path+".people", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write people file: %w", err)
	}
	return nil
}

// Load reads an index written by Save.
func (h *HNSWIndex) Load(path string) error {
	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load HNSW index: %w", err)
	}

	data, err := os.ReadFile(path + ".people") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read people file: %w", err)
	}
	var people []TargetPerson
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&people); err != nil {
		return fmt.Errorf("failed to decode people: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = saved.Graph
	h.idToItem = make(map[int64]*TargetPerson, len(people))
	for i := range people {
		h.idToItem[people[i].ID] = &people[i]
	}
	return nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}
