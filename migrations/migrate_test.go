package migrations

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamesAreOrdered(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	assert.Equal(t, "0001_schema.sql", names[0])
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
}

func TestLedgerFunctionsPresent(t *testing.T) {
	body, err := files.ReadFile("0002_ledger_functions.sql")
	require.NoError(t, err)

	sql := string(body)
	for _, fn := range []string{"fn_reserve_slot", "fn_release_slot", "fn_confirm_slot"} {
		assert.True(t, strings.Contains(sql, "FUNCTION "+fn), fn)
	}
}

func TestSlotGridFunctionsPresent(t *testing.T) {
	body, err := files.ReadFile("0004_slot_grid.sql")
	require.NoError(t, err)

	sql := string(body)
	for _, fn := range []string{"fn_slot_on_grid", "fn_reserve_slot", "fn_sync_slot_quota"} {
		assert.Contains(t, sql, "FUNCTION "+fn, fn)
	}
}

func TestPaymentChannelsMigrationListed(t *testing.T) {
	names, err := Names()
	require.NoError(t, err)
	assert.Contains(t, names, "0005_payment_channels.sql")
}
