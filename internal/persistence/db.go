// Package persistence provides SQLite-based world state storage.
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/hollowmere/internal/agents"
	"github.com/talgya/hollowmere/internal/engine"
	"github.com/talgya/hollowmere/internal/tuning"
	"github.com/talgya/hollowmere/internal/world"
)

// ErrUnknownEntity is returned when a tick updates an entity the store has
// never seen. The whole tick is rolled back.
var ErrUnknownEntity = errors.New("unknown entity")

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer keeps CommitTick's transaction the only thing touching the file.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		archetype TEXT,
		x REAL NOT NULL,
		y REAL NOT NULL,
		target_x REAL NOT NULL,
		target_y REAL NOT NULL,
		action TEXT NOT NULL,
		stress REAL NOT NULL,
		despair REAL NOT NULL,
		aggression REAL NOT NULL,
		mental_breakpoint REAL NOT NULL,
		alive INTEGER NOT NULL,
		born_at REAL NOT NULL,
		personality_json TEXT NOT NULL,
		drives_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trauma_memories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		timestamp REAL NOT NULL,
		severity REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS fields (
		layer TEXT PRIMARY KEY,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		cells_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS locations (
		name TEXT PRIMARY KEY,
		type INTEGER NOT NULL,
		x REAL NOT NULL,
		y REAL NOT NULL,
		radius REAL NOT NULL,
		categories_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		time REAL NOT NULL,
		kind TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		victim_id TEXT NOT NULL DEFAULT '',
		source_id TEXT NOT NULL DEFAULT '',
		severity REAL NOT NULL,
		succeeded INTEGER NOT NULL,
		trauma TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_time ON events(time);
	CREATE INDEX IF NOT EXISTS idx_trauma_entity ON trauma_memories(entity_id);
	CREATE INDEX IF NOT EXISTS idx_entities_alive ON entities(alive);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type entityRow struct {
	ID               string         `db:"id"`
	Name             string         `db:"name"`
	Archetype        sql.NullString `db:"archetype"`
	X                float64        `db:"x"`
	Y                float64        `db:"y"`
	TargetX          float64        `db:"target_x"`
	TargetY          float64        `db:"target_y"`
	Action           string         `db:"action"`
	Stress           float64        `db:"stress"`
	Despair          float64        `db:"despair"`
	Aggression       float64        `db:"aggression"`
	MentalBreakpoint float64        `db:"mental_breakpoint"`
	Alive            int            `db:"alive"`
	BornAt           float64        `db:"born_at"`
	PersonalityJSON  string         `db:"personality_json"`
	DrivesJSON       string         `db:"drives_json"`
}

type traumaRow struct {
	EntityID  string  `db:"entity_id"`
	Kind      string  `db:"kind"`
	Timestamp float64 `db:"timestamp"`
	Severity  float64 `db:"severity"`
}

type eventRow struct {
	Time      float64 `db:"time"`
	Kind      string  `db:"kind"`
	EntityID  string  `db:"entity_id"`
	VictimID  string  `db:"victim_id"`
	SourceID  string  `db:"source_id"`
	Severity  float64 `db:"severity"`
	Succeeded int     `db:"succeeded"`
	Trauma    string  `db:"trauma"`
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SaveEntities writes all entities and their trauma memories (full replace).
func (db *DB) SaveEntities(ctx context.Context, list []*agents.Entity) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM entities"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM trauma_memories"); err != nil {
		return err
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO entities
		(id, name, archetype, x, y, target_x, target_y, action, stress,
		 despair, aggression, mental_breakpoint, alive, born_at,
		 personality_json, drives_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range list {
		persJSON, err := json.Marshal(e.Personality)
		if err != nil {
			return fmt.Errorf("encode personality %s: %w", e.ID, err)
		}
		drivesJSON, err := json.Marshal(e.ResolvedDrives())
		if err != nil {
			return fmt.Errorf("encode drives %s: %w", e.ID, err)
		}
		_, err = stmt.ExecContext(ctx,
			e.ID, e.Name, e.Archetype, e.X, e.Y, e.TargetX, e.TargetY,
			e.Action.String(), e.Stress,
			e.Psyche.Despair, e.Psyche.Aggression, e.Psyche.MentalBreakpoint,
			boolInt(e.Alive), e.BornAt, string(persJSON), string(drivesJSON),
		)
		if err != nil {
			return fmt.Errorf("insert entity %s: %w", e.ID, err)
		}
		if err := insertTrauma(ctx, tx, e.ID, e.Psyche.TraumaMemories); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func insertTrauma(ctx context.Context, tx *sqlx.Tx, id string, mems []agents.TraumaMemory) error {
	for _, m := range mems {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO trauma_memories (entity_id, kind, timestamp, severity) VALUES (?, ?, ?, ?)",
			id, string(m.Kind), m.Timestamp, m.Severity,
		)
		if err != nil {
			return fmt.Errorf("insert trauma for %s: %w", id, err)
		}
	}
	return nil
}

// LoadEntities reads every entity, in insertion order, with its memories.
func (db *DB) LoadEntities(ctx context.Context) ([]*agents.Entity, error) {
	var rows []entityRow
	if err := db.conn.SelectContext(ctx, &rows, "SELECT * FROM entities ORDER BY rowid"); err != nil {
		return nil, fmt.Errorf("select entities: %w", err)
	}
	var trauma []traumaRow
	if err := db.conn.SelectContext(ctx, &trauma,
		"SELECT entity_id, kind, timestamp, severity FROM trauma_memories ORDER BY id"); err != nil {
		return nil, fmt.Errorf("select trauma: %w", err)
	}
	memories := make(map[string][]agents.TraumaMemory)
	for _, t := range trauma {
		memories[t.EntityID] = append(memories[t.EntityID], agents.TraumaMemory{
			Kind:      agents.TraumaKind(t.Kind),
			Timestamp: t.Timestamp,
			Severity:  t.Severity,
		})
	}

	out := make([]*agents.Entity, 0, len(rows))
	for _, r := range rows {
		action, err := agents.ParseAction(r.Action)
		if err != nil {
			return nil, fmt.Errorf("entity %s: %w", r.ID, err)
		}
		e := &agents.Entity{
			ID:        r.ID,
			Name:      r.Name,
			Archetype: r.Archetype.String,
			X:         r.X,
			Y:         r.Y,
			TargetX:   r.TargetX,
			TargetY:   r.TargetY,
			Action:    action,
			Stress:    r.Stress,
			BornAt:    r.BornAt,
			Alive:     r.Alive != 0,
			Psyche: agents.Psyche{
				Despair:          r.Despair,
				Aggression:       r.Aggression,
				MentalBreakpoint: r.MentalBreakpoint,
				TraumaMemories:   memories[r.ID],
			},
		}
		if err := json.Unmarshal([]byte(r.PersonalityJSON), &e.Personality); err != nil {
			return nil, fmt.Errorf("decode personality %s: %w", r.ID, err)
		}
		var d agents.Drives
		if err := json.Unmarshal([]byte(r.DrivesJSON), &d); err != nil {
			return nil, fmt.Errorf("decode drives %s: %w", r.ID, err)
		}
		e.Drives = &d
		out = append(out, e)
	}
	return out, nil
}

// SaveLocations writes the landmark table (full replace).
func (db *DB) SaveLocations(ctx context.Context, locs []world.Location) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM locations"); err != nil {
		return err
	}
	for _, l := range locs {
		cats, err := json.Marshal(l.Categories)
		if err != nil {
			return fmt.Errorf("encode categories %q: %w", l.Name, err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO locations (name, type, x, y, radius, categories_json) VALUES (?, ?, ?, ?, ?, ?)",
			l.Name, int(l.Type), l.X, l.Y, l.Radius, string(cats),
		)
		if err != nil {
			return fmt.Errorf("insert location %q: %w", l.Name, err)
		}
	}
	return tx.Commit()
}

// LoadLocations reads the landmark table in insertion order.
func (db *DB) LoadLocations(ctx context.Context) ([]world.Location, error) {
	var rows []struct {
		Name       string  `db:"name"`
		Type       int     `db:"type"`
		X          float64 `db:"x"`
		Y          float64 `db:"y"`
		Radius     float64 `db:"radius"`
		Categories string  `db:"categories_json"`
	}
	if err := db.conn.SelectContext(ctx, &rows,
		"SELECT name, type, x, y, radius, categories_json FROM locations ORDER BY rowid"); err != nil {
		return nil, err
	}
	locs := make([]world.Location, 0, len(rows))
	for _, r := range rows {
		l := world.Location{Name: r.Name, Type: world.LocationType(r.Type), X: r.X, Y: r.Y, Radius: r.Radius}
		if err := json.Unmarshal([]byte(r.Categories), &l.Categories); err != nil {
			return nil, fmt.Errorf("decode categories %q: %w", r.Name, err)
		}
		locs = append(locs, l)
	}
	return locs, nil
}

// SaveFields writes every field layer (full replace).
func (db *DB) SaveFields(ctx context.Context, f *world.Fields) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := saveFields(ctx, tx, f); err != nil {
		return err
	}
	return tx.Commit()
}

func saveFields(ctx context.Context, tx *sqlx.Tx, f *world.Fields) error {
	w, h := f.Dims()
	for l := world.Layer(0); l < world.NumLayers; l++ {
		cells, err := json.Marshal(f.Cells(l))
		if err != nil {
			return fmt.Errorf("encode %s: %w", l, err)
		}
		_, err = tx.ExecContext(ctx,
			"INSERT OR REPLACE INTO fields (layer, width, height, cells_json) VALUES (?, ?, ?, ?)",
			l.String(), w, h, string(cells),
		)
		if err != nil {
			return fmt.Errorf("save %s: %w", l, err)
		}
	}
	return nil
}

// LoadFields rebuilds the field grid from the stored layers. cfg supplies
// the rates; its dimensions must match what was stored.
func (db *DB) LoadFields(ctx context.Context, cfg tuning.FieldConfig) (*world.Fields, error) {
	f, err := world.NewFields(cfg)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Layer  string `db:"layer"`
		Width  int    `db:"width"`
		Height int    `db:"height"`
		Cells  string `db:"cells_json"`
	}
	if err := db.conn.SelectContext(ctx, &rows, "SELECT layer, width, height, cells_json FROM fields"); err != nil {
		return nil, err
	}
	for _, r := range rows {
		l, err := world.ParseLayer(r.Layer)
		if err != nil {
			return nil, err
		}
		if r.Width != cfg.Width || r.Height != cfg.Height {
			return nil, fmt.Errorf("stored %s grid is %dx%d, config wants %dx%d", l, r.Width, r.Height, cfg.Width, cfg.Height)
		}
		var cells []float64
		if err := json.Unmarshal([]byte(r.Cells), &cells); err != nil {
			return nil, fmt.Errorf("decode %s: %w", l, err)
		}
		if err := f.Load(l, cells); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// CommitTick writes one tick's batch atomically: entity updates with their
// breakdown scars, trauma, the post-tick fields, events and the committed
// tick time. On any error nothing is written.
//
// Positions, drives and stress are moved by the caller after the commit and
// only reach the store on the next full save.
func (db *DB) CommitTick(ctx context.Context, res *engine.TickResult) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, u := range res.Updates {
		q := `UPDATE entities SET despair = ?, aggression = ?, mental_breakpoint = ?`
		args := []any{u.Despair, u.Aggression, u.MentalBreakpoint}
		if u.Acted {
			q += `, action = ?, target_x = ?, target_y = ?`
			args = append(args, u.Action.String(), u.Target.X, u.Target.Y)
		}
		if u.Died {
			q += `, alive = 0`
		}
		q += ` WHERE id = ?`
		args = append(args, u.ID)

		r, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("update entity %s: %w", u.ID, err)
		}
		if n, err := r.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", ErrUnknownEntity, u.ID)
		}
		if u.Scar != nil {
			if err := applyScar(ctx, tx, u.ID, *u.Scar); err != nil {
				return err
			}
		}
		if err := insertTrauma(ctx, tx, u.ID, u.NewTrauma); err != nil {
			return err
		}
	}

	if res.Fields != nil {
		if err := saveFields(ctx, tx, res.Fields); err != nil {
			return err
		}
	}
	if err := insertEvents(ctx, tx, res.Events); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES ('last_commit_time', ?)",
		strconv.FormatFloat(res.Time, 'g', -1, 64),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// applyScar folds a breakdown scar into the stored personality.
func applyScar(ctx context.Context, tx *sqlx.Tx, id string, scar agents.Scar) error {
	var raw string
	if err := tx.GetContext(ctx, &raw, "SELECT personality_json FROM entities WHERE id = ?", id); err != nil {
		return fmt.Errorf("read personality %s: %w", id, err)
	}
	var p agents.Personality
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return fmt.Errorf("decode personality %s: %w", id, err)
	}
	scar.Apply(&p)
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode personality %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE entities SET personality_json = ? WHERE id = ?", string(b), id); err != nil {
		return fmt.Errorf("scar %s: %w", id, err)
	}
	return nil
}

func insertEvents(ctx context.Context, tx *sqlx.Tx, events []engine.Event) error {
	for _, e := range events {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO events (time, kind, entity_id, victim_id, source_id, severity, succeeded, trauma)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			e.Timestamp, string(e.Kind), e.EntityID, e.VictimID, e.SourceID,
			e.Severity, boolInt(e.Succeeded), string(e.Trauma),
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	return nil
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(ctx context.Context, limit int) ([]engine.Event, error) {
	var rows []eventRow
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT time, kind, entity_id, victim_id, source_id, severity, succeeded, trauma
		FROM events ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	events := make([]engine.Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, engine.Event{
			Kind:      engine.EventKind(r.Kind),
			EntityID:  r.EntityID,
			VictimID:  r.VictimID,
			SourceID:  r.SourceID,
			Severity:  r.Severity,
			Timestamp: r.Time,
			Succeeded: r.Succeeded != 0,
			Trauma:    agents.TraumaKind(r.Trauma),
		})
	}
	return events, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// WorldTime returns the time to resume from: the tick after the last
// committed one, or the time of the last full save if that is later. It is 0
// for a fresh database.
func (db *DB) WorldTime() (float64, error) {
	saved, err := db.metaFloat("world_time")
	if err != nil {
		return 0, err
	}
	committed, err := db.metaFloat("last_commit_time")
	if err != nil {
		return 0, err
	}
	if committed >= 0 && committed+engine.TickMinutes > saved {
		return committed + engine.TickMinutes, nil
	}
	return math.Max(saved, 0), nil
}

// metaFloat reads a numeric meta key, or -1 when it is missing.
func (db *DB) metaFloat(key string) (float64, error) {
	v, err := db.GetMeta(key)
	if errors.Is(err, sql.ErrNoRows) {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("meta %s: %w", key, err)
	}
	return f, nil
}

// HasWorldState reports whether the database contains a saved world.
func (db *DB) HasWorldState() bool {
	var count int
	if err := db.conn.Get(&count, "SELECT COUNT(*) FROM entities"); err != nil {
		return false
	}
	return count > 0
}

// SaveWorldState performs a full save of all world state.
func (db *DB) SaveWorldState(ctx context.Context, sim *engine.Simulation) error {
	slog.Info("saving world state",
		"entities", humanize.Comma(int64(len(sim.Entities))),
		"locations", len(sim.Locations),
	)

	if err := db.SaveEntities(ctx, sim.Entities); err != nil {
		return fmt.Errorf("save entities: %w", err)
	}
	if err := db.SaveLocations(ctx, sim.Locations); err != nil {
		return fmt.Errorf("save locations: %w", err)
	}
	if err := db.SaveFields(ctx, sim.Fields); err != nil {
		return fmt.Errorf("save fields: %w", err)
	}
	if err := db.SaveMeta("world_time", strconv.FormatFloat(sim.Time, 'g', -1, 64)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("seed", strconv.FormatInt(sim.Seed, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("world state saved")
	return nil
}
