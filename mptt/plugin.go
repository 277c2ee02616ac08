package mptt

import (
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// engineMarker is set on statements issued by Tree itself. Creates of tree
// models that do not carry it are refused, and updates that do not carry it
// never touch the tree columns.
const engineMarker = "mptt:engine"

var modelType = reflect.TypeOf((*Model)(nil)).Elem()

// Plugin guards gorm against writing tree positions behind Tree's back:
//
//   - a plain db.Create cannot compute valid interval values, so it is rejected
//     with ErrDirectCreate
//   - db.Save and struct Updates skip the tree columns, so a stale copy of a
//     node can still be saved for its payload
//   - Update or Updates naming a tree column is rejected with ErrDirectUpdate
//
// NewTree registers it; registering it earlier is harmless.
type Plugin struct{}

func (Plugin) Name() string {
	return "mptt"
}

func (Plugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:before_create").Register("mptt:guard_create", guardCreate); err != nil {
		return err
	}
	return db.Callback().Update().Before("gorm:before_update").Register("mptt:guard_update", guardUpdate)
}

// guarded reports whether the statement writes a tree model on behalf of
// someone other than Tree.
func guarded(db *gorm.DB) bool {
	if db.Error != nil || db.Statement.Schema == nil {
		return false
	}
	if !reflect.PointerTo(db.Statement.Schema.ModelType).Implements(modelType) {
		return false
	}
	if v, ok := db.Get(engineMarker); ok {
		if allowed, _ := v.(bool); allowed {
			return false
		}
	}
	return true
}

func guardCreate(db *gorm.DB) {
	if guarded(db) {
		_ = db.AddError(ErrDirectCreate)
	}
}

func guardUpdate(db *gorm.DB) {
	if !guarded(db) {
		return
	}
	cols := treeColumns(db.Statement.Schema)

	if m, ok := db.Statement.Dest.(map[string]any); ok {
		for k := range m {
			if f := db.Statement.Schema.LookUpField(k); f != nil && cols[f.DBName] {
				_ = db.AddError(ErrDirectUpdate)
				return
			}
		}
	}

	for name := range cols {
		db.Statement.Omits = append(db.Statement.Omits, name)
	}
}

func treeColumns(s *schema.Schema) map[string]bool {
	cols := map[string]bool{}
	for _, name := range []string{"Left", "Right", "Level", "Scope"} {
		if f := s.LookUpField(name); f != nil && f.DBName != "" {
			cols[f.DBName] = true
		}
	}
	return cols
}
