// Package storedoc is the gorm-backed durable store for the seven
// structural tables (§3, §6): the host process's boot-time seed for
// the RuleCollection/CensorshipInfo DocData snapshot. It never touches
// the row-shaped document tables themselves — those stay columnar and
// live entirely in memory, per §3's "document data store" boundary.
//
// Modeled on the teacher's `pkg/api/gorm` usage of GORM as an ORM over
// plain Go structs (see examples.go's `User`/`gormDB.Create` idiom),
// repurposed from a live query backend into a one-shot load/save pair
// for a handful of fixed, well-known tables.
package storedoc

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kasuganosora/gacengine/pkg/docmodel"
)

// Structural table ids, kept verbatim from §3/§6 so the blanking
// table and test scenarios stay traceable against this store's rows.
const (
	TableTables        = "_grist_Tables"
	TableColumns       = "_grist_Tables_column"
	TableViews         = "_grist_Views"
	TableViewSections  = "_grist_Views_section"
	TableSectionFields = "_grist_Views_section_field"
	TableACLResources  = "_grist_ACLResources"
	TableACLRules      = "_grist_ACLRules"
)

// gristTable mirrors one row of _grist_Tables.
type gristTable struct {
	RowID   int64  `gorm:"column:row_id;primaryKey"`
	TableID string `gorm:"column:table_id"`
}

func (gristTable) TableName() string { return "grist_tables" }

// gristColumn mirrors one row of _grist_Tables_column.
type gristColumn struct {
	RowID         int64  `gorm:"column:row_id;primaryKey"`
	ParentID      int64  `gorm:"column:parent_id"`
	ColID         string `gorm:"column:col_id"`
	Label         string `gorm:"column:label"`
	WidgetOptions string `gorm:"column:widget_options"`
	Formula       string `gorm:"column:formula"`
	Type          string `gorm:"column:type"`
}

func (gristColumn) TableName() string { return "grist_tables_column" }

// gristView mirrors one row of _grist_Views.
type gristView struct {
	RowID int64  `gorm:"column:row_id;primaryKey"`
	Name  string `gorm:"column:name"`
}

func (gristView) TableName() string { return "grist_views" }

// gristViewSection mirrors one row of _grist_Views_section.
type gristViewSection struct {
	RowID    int64  `gorm:"column:row_id;primaryKey"`
	TableRef int64  `gorm:"column:table_ref"`
	ParentID int64  `gorm:"column:parent_id"`
	Title    string `gorm:"column:title"`
}

func (gristViewSection) TableName() string { return "grist_views_section" }

// gristSectionField mirrors one row of _grist_Views_section_field.
type gristSectionField struct {
	RowID         int64  `gorm:"column:row_id;primaryKey"`
	ParentID      int64  `gorm:"column:parent_id"`
	ColRef        int64  `gorm:"column:col_ref"`
	WidgetOptions string `gorm:"column:widget_options"`
	Filter        string `gorm:"column:filter"`
}

func (gristSectionField) TableName() string { return "grist_views_section_field" }

// gristACLResource mirrors one row of _grist_ACLResources.
type gristACLResource struct {
	RowID   int64  `gorm:"column:row_id;primaryKey"`
	TableID string `gorm:"column:table_id"`
	ColIDs  string `gorm:"column:col_ids"`
}

func (gristACLResource) TableName() string { return "grist_acl_resources" }

// gristACLRule mirrors one row of _grist_ACLRules.
type gristACLRule struct {
	RowID          int64  `gorm:"column:row_id;primaryKey"`
	Resource       int64  `gorm:"column:resource"`
	AclFormula     string `gorm:"column:acl_formula"`
	Permissions    string `gorm:"column:permissions"`
	Memo           string `gorm:"column:memo"`
	UserAttributes string `gorm:"column:user_attributes"`
}

func (gristACLRule) TableName() string { return "grist_acl_rules" }

// Store is a gorm-backed structural metadata store: the durable half
// of the document's seven fixed tables, loaded once at boot into a
// docmodel.DocData and (optionally) written back when a host commits
// a schema or ACL change.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if absent) a sqlite database at path through
// the pure-Go modernc.org/sqlite driver (glebarez/sqlite's gorm
// dialector), and migrates the seven structural-table models. path
// may be ":memory:" for an ephemeral store (tests, the demo harness).
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("storedoc: open %s: %w", path, err)
	}
	if err := db.AutoMigrate(
		&gristTable{}, &gristColumn{}, &gristView{}, &gristViewSection{},
		&gristSectionField{}, &gristACLResource{}, &gristACLRule{},
	); err != nil {
		return nil, fmt.Errorf("storedoc: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying sqlite connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Load reads every structural table into a fresh docmodel.DocData,
// the shape handed to RuleCollection/CensorshipInfo as the initial
// snapshot (§2's data flow, "host process loads at boot").
func (s *Store) Load() (*docmodel.DocData, error) {
	doc := docmodel.NewDocData(nil)

	var tables []gristTable
	if err := s.db.Order("row_id").Find(&tables).Error; err != nil {
		return nil, fmt.Errorf("storedoc: load %s: %w", TableTables, err)
	}
	t := docmodel.NewTable(TableTables)
	t.Columns["tableId"] = make([]any, 0, len(tables))
	for _, r := range tables {
		t.RowIDs = append(t.RowIDs, r.RowID)
		t.Columns["tableId"] = append(t.Columns["tableId"], r.TableID)
	}
	doc.SetTable(t)

	var columns []gristColumn
	if err := s.db.Order("row_id").Find(&columns).Error; err != nil {
		return nil, fmt.Errorf("storedoc: load %s: %w", TableColumns, err)
	}
	tc := docmodel.NewTable(TableColumns)
	for _, col := range []string{"parentId", "colId", "label", "widgetOptions", "formula", "type"} {
		tc.Columns[col] = make([]any, 0, len(columns))
	}
	for _, r := range columns {
		tc.RowIDs = append(tc.RowIDs, r.RowID)
		tc.Columns["parentId"] = append(tc.Columns["parentId"], r.ParentID)
		tc.Columns["colId"] = append(tc.Columns["colId"], r.ColID)
		tc.Columns["label"] = append(tc.Columns["label"], r.Label)
		tc.Columns["widgetOptions"] = append(tc.Columns["widgetOptions"], r.WidgetOptions)
		tc.Columns["formula"] = append(tc.Columns["formula"], r.Formula)
		tc.Columns["type"] = append(tc.Columns["type"], r.Type)
	}
	doc.SetTable(tc)

	var views []gristView
	if err := s.db.Order("row_id").Find(&views).Error; err != nil {
		return nil, fmt.Errorf("storedoc: load %s: %w", TableViews, err)
	}
	tv := docmodel.NewTable(TableViews)
	tv.Columns["name"] = make([]any, 0, len(views))
	for _, r := range views {
		tv.RowIDs = append(tv.RowIDs, r.RowID)
		tv.Columns["name"] = append(tv.Columns["name"], r.Name)
	}
	doc.SetTable(tv)

	var sections []gristViewSection
	if err := s.db.Order("row_id").Find(&sections).Error; err != nil {
		return nil, fmt.Errorf("storedoc: load %s: %w", TableViewSections, err)
	}
	ts := docmodel.NewTable(TableViewSections)
	for _, col := range []string{"tableRef", "parentId", "title"} {
		ts.Columns[col] = make([]any, 0, len(sections))
	}
	for _, r := range sections {
		ts.RowIDs = append(ts.RowIDs, r.RowID)
		ts.Columns["tableRef"] = append(ts.Columns["tableRef"], r.TableRef)
		ts.Columns["parentId"] = append(ts.Columns["parentId"], r.ParentID)
		ts.Columns["title"] = append(ts.Columns["title"], r.Title)
	}
	doc.SetTable(ts)

	var fields []gristSectionField
	if err := s.db.Order("row_id").Find(&fields).Error; err != nil {
		return nil, fmt.Errorf("storedoc: load %s: %w", TableSectionFields, err)
	}
	tf := docmodel.NewTable(TableSectionFields)
	for _, col := range []string{"parentId", "colRef", "widgetOptions", "filter"} {
		tf.Columns[col] = make([]any, 0, len(fields))
	}
	for _, r := range fields {
		tf.RowIDs = append(tf.RowIDs, r.RowID)
		tf.Columns["parentId"] = append(tf.Columns["parentId"], r.ParentID)
		tf.Columns["colRef"] = append(tf.Columns["colRef"], r.ColRef)
		tf.Columns["widgetOptions"] = append(tf.Columns["widgetOptions"], r.WidgetOptions)
		tf.Columns["filter"] = append(tf.Columns["filter"], r.Filter)
	}
	doc.SetTable(tf)

	var resources []gristACLResource
	if err := s.db.Order("row_id").Find(&resources).Error; err != nil {
		return nil, fmt.Errorf("storedoc: load %s: %w", TableACLResources, err)
	}
	tr := docmodel.NewTable(TableACLResources)
	for _, col := range []string{"tableId", "colIds"} {
		tr.Columns[col] = make([]any, 0, len(resources))
	}
	for _, r := range resources {
		tr.RowIDs = append(tr.RowIDs, r.RowID)
		tr.Columns["tableId"] = append(tr.Columns["tableId"], r.TableID)
		tr.Columns["colIds"] = append(tr.Columns["colIds"], r.ColIDs)
	}
	doc.SetTable(tr)

	var rules []gristACLRule
	if err := s.db.Order("row_id").Find(&rules).Error; err != nil {
		return nil, fmt.Errorf("storedoc: load %s: %w", TableACLRules, err)
	}
	tu := docmodel.NewTable(TableACLRules)
	for _, col := range []string{"resource", "aclFormula", "permissions", "memo", "userAttributes"} {
		tu.Columns[col] = make([]any, 0, len(rules))
	}
	for _, r := range rules {
		tu.RowIDs = append(tu.RowIDs, r.RowID)
		tu.Columns["resource"] = append(tu.Columns["resource"], r.Resource)
		tu.Columns["aclFormula"] = append(tu.Columns["aclFormula"], r.AclFormula)
		tu.Columns["permissions"] = append(tu.Columns["permissions"], r.Permissions)
		tu.Columns["memo"] = append(tu.Columns["memo"], r.Memo)
		tu.Columns["userAttributes"] = append(tu.Columns["userAttributes"], r.UserAttributes)
	}
	doc.SetTable(tu)

	return doc, nil
}

// Save replaces the stored contents of every structural table present
// in doc with doc's current snapshot, the way a host persists a
// schema/ACL-touching bundle once BundleController.FinishedBundle has
// rebuilt the in-memory Ruler (§4.11's finishedBundle). Tables absent
// from doc are left untouched rather than emptied.
func (s *Store) Save(doc *docmodel.DocData) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if t := doc.GetTable(TableTables); t != nil {
			if err := replace(tx, &gristTable{}, len(t.RowIDs), func(i int) any {
				return &gristTable{RowID: t.RowIDs[i], TableID: strAt(t.Columns["tableId"], i)}
			}); err != nil {
				return err
			}
		}
		if t := doc.GetTable(TableColumns); t != nil {
			if err := replace(tx, &gristColumn{}, len(t.RowIDs), func(i int) any {
				return &gristColumn{
					RowID:         t.RowIDs[i],
					ParentID:      intAt(t.Columns["parentId"], i),
					ColID:         strAt(t.Columns["colId"], i),
					Label:         strAt(t.Columns["label"], i),
					WidgetOptions: strAt(t.Columns["widgetOptions"], i),
					Formula:       strAt(t.Columns["formula"], i),
					Type:          strAt(t.Columns["type"], i),
				}
			}); err != nil {
				return err
			}
		}
		if t := doc.GetTable(TableViews); t != nil {
			if err := replace(tx, &gristView{}, len(t.RowIDs), func(i int) any {
				return &gristView{RowID: t.RowIDs[i], Name: strAt(t.Columns["name"], i)}
			}); err != nil {
				return err
			}
		}
		if t := doc.GetTable(TableViewSections); t != nil {
			if err := replace(tx, &gristViewSection{}, len(t.RowIDs), func(i int) any {
				return &gristViewSection{
					RowID:    t.RowIDs[i],
					TableRef: intAt(t.Columns["tableRef"], i),
					ParentID: intAt(t.Columns["parentId"], i),
					Title:    strAt(t.Columns["title"], i),
				}
			}); err != nil {
				return err
			}
		}
		if t := doc.GetTable(TableSectionFields); t != nil {
			if err := replace(tx, &gristSectionField{}, len(t.RowIDs), func(i int) any {
				return &gristSectionField{
					RowID:         t.RowIDs[i],
					ParentID:      intAt(t.Columns["parentId"], i),
					ColRef:        intAt(t.Columns["colRef"], i),
					WidgetOptions: strAt(t.Columns["widgetOptions"], i),
					Filter:        strAt(t.Columns["filter"], i),
				}
			}); err != nil {
				return err
			}
		}
		if t := doc.GetTable(TableACLResources); t != nil {
			if err := replace(tx, &gristACLResource{}, len(t.RowIDs), func(i int) any {
				return &gristACLResource{
					RowID:   t.RowIDs[i],
					TableID: strAt(t.Columns["tableId"], i),
					ColIDs:  strAt(t.Columns["colIds"], i),
				}
			}); err != nil {
				return err
			}
		}
		if t := doc.GetTable(TableACLRules); t != nil {
			if err := replace(tx, &gristACLRule{}, len(t.RowIDs), func(i int) any {
				return &gristACLRule{
					RowID:          t.RowIDs[i],
					Resource:       intAt(t.Columns["resource"], i),
					AclFormula:     strAt(t.Columns["aclFormula"], i),
					Permissions:    strAt(t.Columns["permissions"], i),
					Memo:           strAt(t.Columns["memo"], i),
					UserAttributes: strAt(t.Columns["userAttributes"], i),
				}
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// replace empties model's table and reinserts n rows built by build,
// inside the caller's transaction.
func replace(tx *gorm.DB, model any, n int, build func(i int) any) error {
	if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := tx.Create(build(i)).Error; err != nil {
			return err
		}
	}
	return nil
}

func strAt(vals []any, i int) string {
	if i < 0 || i >= len(vals) || vals[i] == nil {
		return ""
	}
	s, _ := vals[i].(string)
	return s
}

func intAt(vals []any, i int) int64 {
	if i < 0 || i >= len(vals) || vals[i] == nil {
		return 0
	}
	switch n := vals[i].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
