package storedoc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/gacengine/pkg/docmodel"
)

func TestStoreSaveThenLoadRoundTrips(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	doc := docmodel.NewDocData(nil)

	tables := docmodel.NewTable(TableTables)
	tables.RowIDs = []int64{1, 2}
	tables.Columns["tableId"] = []any{"Orders", "Secret"}
	doc.SetTable(tables)

	columns := docmodel.NewTable(TableColumns)
	columns.RowIDs = []int64{10, 11}
	columns.Columns["parentId"] = []any{int64(2), int64(2)}
	columns.Columns["colId"] = []any{"amount", "manualSort"}
	columns.Columns["label"] = []any{"Amount", "Sort"}
	columns.Columns["widgetOptions"] = []any{"", ""}
	columns.Columns["formula"] = []any{"", ""}
	columns.Columns["type"] = []any{"Numeric", "Int"}
	doc.SetTable(columns)

	require.NoError(t, s.Save(doc))

	loaded, err := s.Load()
	require.NoError(t, err)

	got := loaded.GetTable(TableTables)
	require.NotNil(t, got)
	assert.Equal(t, []int64{1, 2}, got.RowIDs)
	assert.Equal(t, "Secret", got.Columns["tableId"][1])

	gotCols := loaded.GetTable(TableColumns)
	require.NotNil(t, gotCols)
	assert.Equal(t, "amount", gotCols.Columns["colId"][0])
	assert.Equal(t, int64(2), gotCols.Columns["parentId"][1])
}

func TestStoreSaveOverwritesPriorContents(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	first := docmodel.NewDocData(nil)
	t1 := docmodel.NewTable(TableTables)
	t1.RowIDs = []int64{1}
	t1.Columns["tableId"] = []any{"First"}
	first.SetTable(t1)
	require.NoError(t, s.Save(first))

	second := docmodel.NewDocData(nil)
	t2 := docmodel.NewTable(TableTables)
	t2.RowIDs = []int64{5}
	t2.Columns["tableId"] = []any{"Second"}
	second.SetTable(t2)
	require.NoError(t, s.Save(second))

	loaded, err := s.Load()
	require.NoError(t, err)
	got := loaded.GetTable(TableTables)
	require.Len(t, got.RowIDs, 1)
	assert.Equal(t, int64(5), got.RowIDs[0])
	assert.Equal(t, "Second", got.Columns["tableId"][0])
}
