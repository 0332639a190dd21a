package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// AxisWeight is one (label, weight) entry of a theme axis. Weights on an
// axis sum to 1.0 after normalization.
type AxisWeight struct {
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// ThemeVector describes a memory along five fixed categorical axes.
// Each axis holds at most four weighted labels.
type ThemeVector struct {
	EmotionalCore       []AxisWeight `json:"emotionalCore"`
	NarrativeState      []AxisWeight `json:"narrativeState"`
	RelationalFocus     []AxisWeight `json:"relationalFocus"`
	TemporalOrientation []AxisWeight `json:"temporalOrientation"`
	SpatialIntimacy     []AxisWeight `json:"spatialIntimacy"`
}

// AxisNames lists the five theme axes in their fixed order.
var AxisNames = [5]string{
	"emotionalCore",
	"narrativeState",
	"relationalFocus",
	"temporalOrientation",
	"spatialIntimacy",
}

// Axis returns the entries for a named axis, nil for unknown names.
func (t ThemeVector) Axis(name string) []AxisWeight {
	switch name {
	case "emotionalCore":
		return t.EmotionalCore
	case "narrativeState":
		return t.NarrativeState
	case "relationalFocus":
		return t.RelationalFocus
	case "temporalOrientation":
		return t.TemporalOrientation
	case "spatialIntimacy":
		return t.SpatialIntimacy
	}
	return nil
}

// SetAxis replaces the entries for a named axis.
func (t *ThemeVector) SetAxis(name string, entries []AxisWeight) {
	switch name {
	case "emotionalCore":
		t.EmotionalCore = entries
	case "narrativeState":
		t.NarrativeState = entries
	case "relationalFocus":
		t.RelationalFocus = entries
	case "temporalOrientation":
		t.TemporalOrientation = entries
	case "spatialIntimacy":
		t.SpatialIntimacy = entries
	}
}

// Memory is one classified memory fragment.
type Memory struct {
	ID           string      `json:"id"`
	Text         string      `json:"text"`
	Mood         string      `json:"mood"`
	Color        string      `json:"color"`
	Tags         []string    `json:"tags"`
	Theme        ThemeVector `json:"theme"`
	Embedding    []float64   `json:"-"`
	ClassifiedBy string      `json:"classified_by"` // offline, similarity, ai-new, ai-existing, ai-override
	BestMatch    string      `json:"best_match,omitempty"`
	BestScore    float64     `json:"best_score,omitempty"`
	IsNewFamily  bool        `json:"is_new_family"`
	CreatedAt    int64       `json:"created_at"`
	UpdatedAt    int64       `json:"updated_at"`
}

// encodeEmbedding converts a []float64 to a binary BLOB (8 bytes per float64).
func encodeEmbedding(vec []float64) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, len(vec)*8)
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
	}
	return buf
}

// decodeEmbedding converts a binary BLOB back to []float64.
func decodeEmbedding(buf []byte) []float64 {
	if len(buf) == 0 {
		return nil
	}
	n := len(buf) / 8
	vec := make([]float64, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return vec
}

// InsertMemory stores a new memory. Timestamps are set here.
func (db *DB) InsertMemory(m *Memory) error {
	now := time.Now().UnixMilli()
	m.CreatedAt = now
	m.UpdatedAt = now

	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	theme, err := json.Marshal(m.Theme)
	if err != nil {
		return fmt.Errorf("marshal theme: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO memories (id, text, mood, color, tags, theme, embedding,
		                      classified_by, best_match, best_score, is_new_family,
		                      created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Text, m.Mood, m.Color, string(tags), string(theme), encodeEmbedding(m.Embedding),
		m.ClassifiedBy, m.BestMatch, m.BestScore, boolToInt(m.IsNewFamily),
		m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}
	return nil
}

// UpdateClassification overwrites the classification fields of a memory.
// Used by the reclassification sweep when an offline-classified memory is
// revisited with the analysis capability available.
func (db *DB) UpdateClassification(m *Memory) error {
	m.UpdatedAt = time.Now().UnixMilli()

	tags, err := json.Marshal(m.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	theme, err := json.Marshal(m.Theme)
	if err != nil {
		return fmt.Errorf("marshal theme: %w", err)
	}

	res, err := db.Exec(`
		UPDATE memories
		SET mood = ?, color = ?, tags = ?, theme = ?, embedding = ?,
		    classified_by = ?, best_match = ?, best_score = ?, is_new_family = ?,
		    updated_at = ?
		WHERE id = ?
	`, m.Mood, m.Color, string(tags), string(theme), encodeEmbedding(m.Embedding),
		m.ClassifiedBy, m.BestMatch, m.BestScore, boolToInt(m.IsNewFamily),
		m.UpdatedAt, m.ID)
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("memory %s: %w", m.ID, ErrNotFound)
	}
	return nil
}

const memoryColumns = `id, text, mood, color, tags, theme, embedding,
	classified_by, best_match, best_score, is_new_family, created_at, updated_at`

func scanMemory(row interface{ Scan(...any) error }) (Memory, error) {
	var m Memory
	var tags, theme string
	var blob []byte
	var isNew int
	err := row.Scan(&m.ID, &m.Text, &m.Mood, &m.Color, &tags, &theme, &blob,
		&m.ClassifiedBy, &m.BestMatch, &m.BestScore, &isNew, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil {
		return m, fmt.Errorf("unmarshal tags for %s: %w", m.ID, err)
	}
	if err := json.Unmarshal([]byte(theme), &m.Theme); err != nil {
		return m, fmt.Errorf("unmarshal theme for %s: %w", m.ID, err)
	}
	m.Embedding = decodeEmbedding(blob)
	m.IsNewFamily = isNew != 0
	return m, nil
}

// GetMemory returns one memory by id, or ErrNotFound.
func (db *DB) GetMemory(id string) (*Memory, error) {
	row := db.QueryRow(`SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	m, err := scanMemory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", err)
	}
	return &m, nil
}

// RecentMemories returns up to limit memories, most recent first.
func (db *DB) RecentMemories(limit int) ([]Memory, error) {
	rows, err := db.Query(`
		SELECT `+memoryColumns+` FROM memories
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent memories: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

// MemoriesByMood returns all memories with the given mood, most recent first.
func (db *DB) MemoriesByMood(mood string) ([]Memory, error) {
	rows, err := db.Query(`
		SELECT `+memoryColumns+` FROM memories
		WHERE mood = ? COLLATE NOCASE
		ORDER BY created_at DESC, id DESC
	`, mood)
	if err != nil {
		return nil, fmt.Errorf("memories by mood: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

// OfflineMemories returns up to limit memories still carrying the degraded
// offline classification, oldest first so the backlog drains in order.
func (db *DB) OfflineMemories(limit int) ([]Memory, error) {
	rows, err := db.Query(`
		SELECT `+memoryColumns+` FROM memories
		WHERE classified_by = 'offline'
		ORDER BY created_at ASC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("offline memories: %w", err)
	}
	defer rows.Close()
	return collectMemories(rows)
}

// DistinctMoods returns the distinct family labels currently in the archive,
// ordered by first appearance.
func (db *DB) DistinctMoods() ([]string, error) {
	rows, err := db.Query(`
		SELECT mood FROM memories
		GROUP BY mood
		ORDER BY MIN(created_at) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("distinct moods: %w", err)
	}
	defer rows.Close()

	var moods []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan mood: %w", err)
		}
		moods = append(moods, m)
	}
	return moods, rows.Err()
}

// CountMemories returns the total number of stored memories.
func (db *DB) CountMemories() (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM memories").Scan(&n)
	return n, err
}

func collectMemories(rows *sql.Rows) ([]Memory, error) {
	var memories []Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
