package orders

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRow copies vals into the Scan destinations in column order.
type stubRow struct{ vals []any }

func (r stubRow) Scan(dest ...any) error {
	for i, d := range dest {
		reflect.ValueOf(d).Elem().Set(reflect.ValueOf(r.vals[i]))
	}
	return nil
}

func orderRow(status string) stubRow {
	at := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	return stubRow{vals: []any{
		"o-1", "c-1", status, int64(45000000), "ORD-1772377200000-ABC123",
		"Laura Gomez", "Cra 7 # 45-10", "Bogota",
		"", "",
		at, at, (*time.Time)(nil), (*time.Time)(nil),
	}}
}

func TestScanOrder(t *testing.T) {
	o, err := scanOrder(orderRow("paid"))
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, o.Status)
	assert.Equal(t, "o-1", o.ID)
	assert.Nil(t, o.ShippedAt)
}

func TestScanOrder_UnknownStatus(t *testing.T) {
	o, err := scanOrder(orderRow("refunded"))
	require.Error(t, err)
	assert.Nil(t, o)
	assert.Contains(t, err.Error(), `order o-1: unknown order status "refunded"`)
}

func TestParseStatus(t *testing.T) {
	for s := range validNext {
		got, err := parseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := parseStatus("")
	assert.Error(t, err)
	_, err = parseStatus("PAID")
	assert.Error(t, err)
}
