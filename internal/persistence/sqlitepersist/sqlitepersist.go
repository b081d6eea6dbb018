// Package sqlitepersist is a SQLite-backed persistence.Engine: the
// reference durable store for the shared item-state manager, exercising
// the domain stack's database driver instead of the in-memory
// memstore.Store used for fast tests.
//
// Grounded on the teacher's internal/storage/ephemeral store — a
// SQLite-backed side-store kept separate from the primary Dolt ledger,
// the same "second store next to the primary one" shape this spec's
// persistence engine has relative to the manager's shared cache — and
// on internal/storage/connstring.go's DSN-building (busy_timeout,
// foreign_keys pragmas) and internal/storage/dolt/store.go's retry
// pattern around transient lock errors.
package sqlitepersist

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/itemstate/core/internal/changelog"
	"github.com/itemstate/core/internal/itemid"
	"github.com/itemstate/core/internal/itemstate"
	"github.com/itemstate/core/internal/persistence"
	"github.com/itemstate/core/internal/refs"
	"github.com/itemstate/core/internal/values"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	uuid TEXT PRIMARY KEY,
	has_parent INTEGER NOT NULL,
	parent_uuid TEXT NOT NULL,
	node_type_name TEXT NOT NULL,
	mixin_type_names TEXT NOT NULL,
	property_names TEXT NOT NULL,
	definition_id TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS children (
	parent_uuid TEXT NOT NULL,
	name_ns TEXT NOT NULL,
	name_local TEXT NOT NULL,
	child_uuid TEXT NOT NULL,
	idx INTEGER NOT NULL,
	PRIMARY KEY (parent_uuid, name_ns, name_local, idx)
);
CREATE TABLE IF NOT EXISTS properties (
	parent_uuid TEXT NOT NULL,
	name_ns TEXT NOT NULL,
	name_local TEXT NOT NULL,
	type INTEGER NOT NULL,
	multi_valued INTEGER NOT NULL,
	values_json TEXT NOT NULL,
	definition_id TEXT NOT NULL,
	PRIMARY KEY (parent_uuid, name_ns, name_local)
);
CREATE TABLE IF NOT EXISTS node_refs (
	target_uuid TEXT NOT NULL,
	referrer_is_node INTEGER NOT NULL,
	referrer_node_uuid TEXT NOT NULL,
	referrer_prop_parent TEXT NOT NULL,
	referrer_prop_ns TEXT NOT NULL,
	referrer_prop_local TEXT NOT NULL,
	PRIMARY KEY (target_uuid, referrer_is_node, referrer_node_uuid, referrer_prop_parent, referrer_prop_ns, referrer_prop_local)
);
`

// SQLiteConnString builds a connection string carrying the pragmas a
// single-writer embedded store needs: a busy timeout so a brief
// Store-vs-Store collision waits instead of failing immediately, and
// foreign_keys for defensive referential cleanup at the SQL layer.
// Adapted from the teacher's internal/storage/connstring.go.
func SQLiteConnString(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
}

// Store is a SQLite-backed persistence.Engine. All state-mutating calls
// hold a process-local mutex in addition to SQLite's own locking,
// because the driver's single connection does not itself serialize
// multi-statement transactions against concurrent Go callers.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

var _ persistence.Engine = (*Store)(nil)

// Open creates or opens a SQLite database at path, applying schema if
// this is a fresh file.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlitepersist: create dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", SQLiteConnString(path))
	if err != nil {
		return nil, fmt.Errorf("sqlitepersist: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlitepersist: ping: %w", err)
	}
	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("sqlitepersist: init schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LoadNode(ctx context.Context, id itemid.ID) (*itemstate.NodeData, string, error) {
	u, ok := id.NodeUUID()
	if !ok {
		return nil, "", fmt.Errorf("%w: %s is not a node id", persistence.ErrNoSuchItem, id)
	}
	var hasParent int
	var parentUUID, typeName, mixinJSON, propsJSON, defID string
	row := s.db.QueryRowContext(ctx, `SELECT has_parent, parent_uuid, node_type_name, mixin_type_names, property_names, definition_id FROM nodes WHERE uuid = ?`, u.String())
	if err := row.Scan(&hasParent, &parentUUID, &typeName, &mixinJSON, &propsJSON, &defID); err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", persistence.ErrNoSuchItem, id, err)
	}

	data := &itemstate.NodeData{
		UUID:         u,
		HasParent:    hasParent != 0,
		NodeTypeName: typeName,
	}
	if data.HasParent {
		data.ParentUUID, _ = uuid.Parse(parentUUID)
	}
	_ = json.Unmarshal([]byte(mixinJSON), &data.MixinTypeNames)
	_ = json.Unmarshal([]byte(propsJSON), &data.PropertyNames)

	children, err := s.loadChildren(ctx, u)
	if err != nil {
		return nil, "", err
	}
	data.Children = children
	return data, defID, nil
}

func (s *Store) loadChildren(ctx context.Context, parent uuid.UUID) ([]itemstate.ChildEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name_ns, name_local, child_uuid, idx FROM children WHERE parent_uuid = ? ORDER BY rowid`, parent.String())
	if err != nil {
		return nil, fmt.Errorf("sqlitepersist: load children: %w", err)
	}
	defer rows.Close()

	var out []itemstate.ChildEntry
	for rows.Next() {
		var ns, local, childUUID string
		var idx int
		if err := rows.Scan(&ns, &local, &childUUID, &idx); err != nil {
			return nil, fmt.Errorf("sqlitepersist: scan child: %w", err)
		}
		cu, _ := uuid.Parse(childUUID)
		out = append(out, itemstate.ChildEntry{Name: itemid.NewQName(ns, local), UUID: cu, Index: idx})
	}
	return out, rows.Err()
}

func (s *Store) LoadProperty(ctx context.Context, id itemid.ID) (*itemstate.PropertyData, string, error) {
	parent, ok := id.PropertyParent()
	if !ok {
		return nil, "", fmt.Errorf("%w: %s is not a property id", persistence.ErrNoSuchItem, id)
	}
	name, _ := id.PropertyName()

	var typ int
	var multi int
	var valuesJSON, defID string
	row := s.db.QueryRowContext(ctx, `SELECT type, multi_valued, values_json, definition_id FROM properties WHERE parent_uuid = ? AND name_ns = ? AND name_local = ?`, parent.String(), name.Namespace, name.Local)
	if err := row.Scan(&typ, &multi, &valuesJSON, &defID); err != nil {
		return nil, "", fmt.Errorf("%w: %s: %v", persistence.ErrNoSuchItem, id, err)
	}

	vals, err := decodeValues(values.Type(typ), valuesJSON)
	if err != nil {
		return nil, "", fmt.Errorf("sqlitepersist: decode %s: %w", id, err)
	}

	return &itemstate.PropertyData{
		Name:        name,
		ParentUUID:  parent,
		Type:        values.Type(typ),
		MultiValued: multi != 0,
		Values:      vals,
	}, defID, nil
}

func (s *Store) LoadNodeReferences(ctx context.Context, id refs.NodeReferencesID) (*refs.NodeReferences, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT referrer_is_node, referrer_node_uuid, referrer_prop_parent, referrer_prop_ns, referrer_prop_local FROM node_refs WHERE target_uuid = ?`, id.Target.String())
	if err != nil {
		return nil, fmt.Errorf("sqlitepersist: load refs: %w", err)
	}
	defer rows.Close()

	bundle := refs.NewNodeReferences(id.Target)
	found := false
	for rows.Next() {
		found = true
		var isNode int
		var nodeUUID, propParent, propNS, propLocal string
		if err := rows.Scan(&isNode, &nodeUUID, &propParent, &propNS, &propLocal); err != nil {
			return nil, fmt.Errorf("sqlitepersist: scan ref: %w", err)
		}
		if isNode != 0 {
			u, _ := uuid.Parse(nodeUUID)
			bundle.Add(itemid.NodeID(u))
		} else {
			pu, _ := uuid.Parse(propParent)
			bundle.Add(itemid.PropertyID(pu, itemid.NewQName(propNS, propLocal)))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: refs for %s", persistence.ErrNoSuchItem, id.Target)
	}
	return bundle, nil
}

func (s *Store) Exists(id itemid.ID) bool {
	var n int
	var err error
	if u, ok := id.NodeUUID(); ok {
		err = s.db.QueryRow(`SELECT 1 FROM nodes WHERE uuid = ?`, u.String()).Scan(&n)
	} else {
		parent, _ := id.PropertyParent()
		name, _ := id.PropertyName()
		err = s.db.QueryRow(`SELECT 1 FROM properties WHERE parent_uuid = ? AND name_ns = ? AND name_local = ?`, parent.String(), name.Namespace, name.Local).Scan(&n)
	}
	return err == nil
}

func (s *Store) CreateNew(id itemid.ID) *itemstate.NodeData {
	u, _ := id.NodeUUID()
	return &itemstate.NodeData{UUID: u}
}

func (s *Store) CreateNewProperty(id itemid.ID) *itemstate.PropertyData {
	parent, _ := id.PropertyParent()
	name, _ := id.PropertyName()
	return &itemstate.PropertyData{Name: name, ParentUUID: parent}
}

// busyBackoff bounds retries of SQLITE_BUSY during Store, mirroring the
// teacher's dolt store_embedded.go pattern of a short exponential
// backoff around a driver-level lock contention error rather than
// failing the whole commit on the first collision.
func busyBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 5 * time.Second
	return bo
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy")
}

// Store persists the shared-side change log as one SQL transaction: all
// writes commit together or the transaction rolls back, matching
// persistence's all-or-nothing contract (spec.md §6). A transient
// SQLITE_BUSY from the driver is retried with backoff rather than
// surfaced immediately.
func (s *Store) Store(ctx context.Context, log *changelog.ChangeLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return backoff.Retry(func() error {
		err := s.storeOnce(ctx, log)
		if err != nil && isBusyError(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, backoff.WithContext(busyBackoff(), ctx))
}

func (s *Store) storeOnce(ctx context.Context, log *changelog.ChangeLog) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlitepersist: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, st := range log.AddedItems() {
		if err := writeItem(ctx, tx, st); err != nil {
			return err
		}
	}
	for _, st := range log.ModifiedItems() {
		if err := writeItem(ctx, tx, st); err != nil {
			return err
		}
	}
	for _, st := range log.DeletedItems() {
		if err := deleteItem(ctx, tx, st.ID()); err != nil {
			return err
		}
	}
	for _, r := range log.ModifiedRefBundles() {
		if err := writeRefBundle(ctx, tx, r); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlitepersist: commit: %w", err)
	}
	return nil
}

func writeItem(ctx context.Context, tx *sql.Tx, st *itemstate.State) error {
	if node, ok := st.Node(); ok {
		return writeNode(ctx, tx, node, st.DefinitionID())
	}
	prop, _ := st.Property()
	return writeProperty(ctx, tx, prop, st.DefinitionID())
}

func writeNode(ctx context.Context, tx *sql.Tx, n *itemstate.NodeData, defID string) error {
	mixinJSON, _ := json.Marshal(n.MixinTypeNames)
	propsJSON, _ := json.Marshal(n.PropertyNames)
	parentUUID := ""
	if n.HasParent {
		parentUUID = n.ParentUUID.String()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO nodes (uuid, has_parent, parent_uuid, node_type_name, mixin_type_names, property_names, definition_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			has_parent=excluded.has_parent, parent_uuid=excluded.parent_uuid,
			node_type_name=excluded.node_type_name, mixin_type_names=excluded.mixin_type_names,
			property_names=excluded.property_names, definition_id=excluded.definition_id
	`, n.UUID.String(), boolInt(n.HasParent), parentUUID, n.NodeTypeName, string(mixinJSON), string(propsJSON), defID)
	if err != nil {
		return fmt.Errorf("sqlitepersist: write node %s: %w", n.UUID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM children WHERE parent_uuid = ?`, n.UUID.String()); err != nil {
		return fmt.Errorf("sqlitepersist: clear children: %w", err)
	}
	for _, c := range n.Children {
		_, err := tx.ExecContext(ctx, `INSERT INTO children (parent_uuid, name_ns, name_local, child_uuid, idx) VALUES (?, ?, ?, ?, ?)`,
			n.UUID.String(), c.Name.Namespace, c.Name.Local, c.UUID.String(), c.Index)
		if err != nil {
			return fmt.Errorf("sqlitepersist: write child: %w", err)
		}
	}
	return nil
}

func writeProperty(ctx context.Context, tx *sql.Tx, p *itemstate.PropertyData, defID string) error {
	valuesJSON, err := encodeValues(p.Values)
	if err != nil {
		return fmt.Errorf("sqlitepersist: encode values: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO properties (parent_uuid, name_ns, name_local, type, multi_valued, values_json, definition_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(parent_uuid, name_ns, name_local) DO UPDATE SET
			type=excluded.type, multi_valued=excluded.multi_valued,
			values_json=excluded.values_json, definition_id=excluded.definition_id
	`, p.ParentUUID.String(), p.Name.Namespace, p.Name.Local, int(p.Type), boolInt(p.MultiValued), valuesJSON, defID)
	if err != nil {
		return fmt.Errorf("sqlitepersist: write property %s: %w", p.Name, err)
	}
	return nil
}

func deleteItem(ctx context.Context, tx *sql.Tx, id itemid.ID) error {
	if u, ok := id.NodeUUID(); ok {
		if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE uuid = ?`, u.String()); err != nil {
			return fmt.Errorf("sqlitepersist: delete node: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM children WHERE parent_uuid = ?`, u.String()); err != nil {
			return fmt.Errorf("sqlitepersist: delete children: %w", err)
		}
		return nil
	}
	parent, _ := id.PropertyParent()
	name, _ := id.PropertyName()
	if _, err := tx.ExecContext(ctx, `DELETE FROM properties WHERE parent_uuid = ? AND name_ns = ? AND name_local = ?`, parent.String(), name.Namespace, name.Local); err != nil {
		return fmt.Errorf("sqlitepersist: delete property: %w", err)
	}
	return nil
}

func writeRefBundle(ctx context.Context, tx *sql.Tx, r *refs.NodeReferences) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM node_refs WHERE target_uuid = ?`, r.Target.String()); err != nil {
		return fmt.Errorf("sqlitepersist: clear refs: %w", err)
	}
	for _, referrer := range r.Referrers {
		if u, ok := referrer.NodeUUID(); ok {
			_, err := tx.ExecContext(ctx, `INSERT INTO node_refs (target_uuid, referrer_is_node, referrer_node_uuid, referrer_prop_parent, referrer_prop_ns, referrer_prop_local) VALUES (?, 1, ?, '', '', '')`,
				r.Target.String(), u.String())
			if err != nil {
				return fmt.Errorf("sqlitepersist: write ref: %w", err)
			}
			continue
		}
		parent, _ := referrer.PropertyParent()
		name, _ := referrer.PropertyName()
		_, err := tx.ExecContext(ctx, `INSERT INTO node_refs (target_uuid, referrer_is_node, referrer_node_uuid, referrer_prop_parent, referrer_prop_ns, referrer_prop_local) VALUES (?, 0, '', ?, ?, ?)`,
			r.Target.String(), parent.String(), name.Namespace, name.Local)
		if err != nil {
			return fmt.Errorf("sqlitepersist: write ref: %w", err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// wireValue/decodeValues serialize values.Value through its exported
// accessors rather than reflecting into its private fields, the same
// "validate then store as a JSON string" shape the teacher's
// internal/storage/metadata.go uses for its own opaque JSON column.
type wireValue struct {
	Str    string    `json:"s,omitempty"`
	Bool   bool      `json:"b,omitempty"`
	Long   int64     `json:"l,omitempty"`
	Double float64   `json:"d,omitempty"`
	Date   time.Time `json:"t,omitempty"`
	NameNS string    `json:"nns,omitempty"`
	Name   string    `json:"n,omitempty"`
	Ref    string    `json:"r,omitempty"`
	Binary []byte    `json:"x,omitempty"`
}

func encodeValues(vals []values.Value) (string, error) {
	wire := make([]wireValue, 0, len(vals))
	for _, v := range vals {
		var w wireValue
		switch v.Type() {
		case values.TypeString:
			w.Str, _ = v.AsString()
		case values.TypeBoolean:
			w.Bool, _ = v.AsBoolean()
		case values.TypeLong:
			w.Long, _ = v.AsLong()
		case values.TypeDouble:
			w.Double, _ = v.AsDouble()
		case values.TypeDate:
			w.Date, _ = v.AsDate()
		case values.TypeName:
			n, _ := v.AsName()
			w.NameNS, w.Name = n.Namespace, n.Local
		case values.TypeReference:
			ref, _ := v.AsReference()
			w.Ref = ref.String()
		case values.TypeBinary:
			w.Binary, _ = v.AsBinary()
		}
		wire = append(wire, w)
	}
	b, err := json.Marshal(wire)
	return string(b), err
}

func decodeValues(typ values.Type, raw string) ([]values.Value, error) {
	var wire []wireValue
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, err
	}
	out := make([]values.Value, 0, len(wire))
	for _, w := range wire {
		switch typ {
		case values.TypeString:
			out = append(out, values.NewString(w.Str))
		case values.TypeBoolean:
			out = append(out, values.NewBoolean(w.Bool))
		case values.TypeLong:
			out = append(out, values.NewLong(w.Long))
		case values.TypeDouble:
			out = append(out, values.NewDouble(w.Double))
		case values.TypeDate:
			out = append(out, values.NewDate(w.Date))
		case values.TypeName:
			out = append(out, values.NewName(itemid.NewQName(w.NameNS, w.Name)))
		case values.TypeReference:
			ref, _ := uuid.Parse(w.Ref)
			out = append(out, values.NewReference(ref))
		case values.TypeBinary:
			out = append(out, values.NewBinary(w.Binary))
		}
	}
	return out, nil
}
