package store

import (
	"fmt"
	"time"
)

// Link types. Family links join memories sharing a mood; idea links join
// memories with thematic affinity across families. Curated and directional
// links are reserved for hand-placed edges.
const (
	LinkFamily      = "family"
	LinkIdea        = "idea"
	LinkCurated     = "curated"
	LinkDirectional = "directional"
)

// Link is a scored, typed edge between two memories. FromID/ToID order is
// whichever memory had the lower scan index when the pair was scored.
type Link struct {
	ID        string  `json:"id"`
	FromID    string  `json:"from_id"`
	ToID      string  `json:"to_id"`
	Type      string  `json:"type"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
	CreatedAt int64   `json:"created_at"`
}

// ReplaceLinks swaps the entire link set transactionally. The pairwise
// scorer recomputes links wholesale on every run; nothing is maintained
// incrementally.
func (db *DB) ReplaceLinks(links []Link) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin replace links: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM links"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear links: %w", err)
	}

	now := time.Now().UnixMilli()
	for _, l := range links {
		if _, err := tx.Exec(`
			INSERT INTO links (id, from_id, to_id, link_type, score, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, l.ID, l.FromID, l.ToID, l.Type, l.Score, l.Reason, now); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert link %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace links: %w", err)
	}
	return nil
}

// ListLinks returns all stored links, highest score first.
func (db *DB) ListLinks() ([]Link, error) {
	rows, err := db.Query(`
		SELECT id, from_id, to_id, link_type, score, reason, created_at
		FROM links
		ORDER BY score DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.ID, &l.FromID, &l.ToID, &l.Type, &l.Score, &l.Reason, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
