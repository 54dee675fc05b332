package dirty

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fraudforge/internal/domain/models"
	"fraudforge/pkg/config"
	"fraudforge/pkg/sampling"
)

func dqConfig(t *testing.T, enabled bool, rate float64) config.DataQuality {
	t.Helper()
	cfg := &config.Generator{
		Records: 10,
		AgeDist: map[string]float64{"A18_25": 1},
		Output:  config.Output{Outdir: t.TempDir()},
		DataQuality: config.DataQuality{
			Enabled:      enabled,
			RowDirtyRate: rate,
		},
	}
	require.NoError(t, cfg.Finish())
	return cfg.DataQuality
}

func sampleRows(n int) []*models.Record {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := make([]*models.Record, n)
	for i := range rows {
		rows[i] = &models.Record{
			TransactionID:    scenarioID(i),
			EventTime:        base.Add(time.Duration(i) * time.Minute),
			CustomerID:       "CUST-0000000001",
			AccountID:        "ACCT-0000000002",
			AgeBand:          "A18_25",
			Region:           models.RegionNorth,
			Channel:          models.ChannelApp,
			DeviceID:         "DEV-0000000003",
			DeviceType:       "mobile",
			OS:               "iOS",
			AppVersion:       "1.2.3",
			IP:               "10.1.2.3",
			MerchantID:       "MCH-0000000004",
			MerchantCategory: "grocery",
			MerchantCountry:  "US",
			Amount:           100.0,
			Currency:         models.CurrencyUSD,
			AvgAmount7d:      90.0,
			DirtyIssues:      []string{},
		}
	}
	return rows
}

func scenarioID(i int) string {
	ids := []string{
		"aaaaaaaa-aaaaaaaa-aaaaaaaa-aaaaaaa",
		"bbbbbbbb-bbbbbbbb-bbbbbbbb-bbbbbbb",
	}
	return ids[i%len(ids)] + string(rune('0'+i%10))
}

func TestApplyDisabledIsNoOp(t *testing.T) {
	inj, err := New(dqConfig(t, false, 0))
	require.NoError(t, err)

	rows := sampleRows(10)
	counts := inj.Apply(rows, sampling.Spawn(1, 3))
	assert.Empty(t, counts)
	for _, r := range rows {
		assert.False(t, r.IsDirty)
		assert.Empty(t, r.DirtyIssues)
	}
}

func TestApplyFullRateDirtiesEveryRow(t *testing.T) {
	inj, err := New(dqConfig(t, true, 1.0))
	require.NoError(t, err)

	rows := sampleRows(20)
	counts := inj.Apply(rows, sampling.Spawn(42, 3))

	assert.Equal(t, 20, counts[RowsCounterKey])
	issueTotal := 0
	for issue, n := range counts {
		if issue == RowsCounterKey {
			continue
		}
		assert.Contains(t, config.IssueTypes(), issue)
		issueTotal += n
	}
	assert.Greater(t, issueTotal, 0)

	for _, r := range rows {
		assert.True(t, r.IsDirty)
		assert.NotEmpty(t, r.DirtyIssues)
		assert.Equal(t, r.IsCausalFraud, r.AliasCausal)
	}
}

func TestApplyZeroRateKeepsRowsClean(t *testing.T) {
	inj, err := New(dqConfig(t, true, 0.0))
	require.NoError(t, err)

	rows := sampleRows(50)
	counts := inj.Apply(rows, sampling.Spawn(5, 3))
	assert.Equal(t, 0, counts[RowsCounterKey])
	for _, r := range rows {
		assert.False(t, r.IsDirty)
	}
}

func TestApplyPreservesRowCount(t *testing.T) {
	inj, err := New(dqConfig(t, true, 1.0))
	require.NoError(t, err)

	rows := sampleRows(30)
	inj.Apply(rows, sampling.Spawn(7, 3))
	assert.Len(t, rows, 30)
}

func TestDuplicateRowKeepsFreshID(t *testing.T) {
	rows := sampleRows(2)
	rows[0].Amount = 10
	rows[1].Amount = 200
	before := rows[0].TransactionID

	duplicateRow(rows, 0, sampling.Spawn(3, 0))

	assert.NotEqual(t, before, rows[0].TransactionID)
	assert.NotEqual(t, rows[1].TransactionID, rows[0].TransactionID)
	// Values come from the source row with a small amount perturbation.
	assert.InDelta(t, 200, rows[0].Amount, 10.1)
}

func TestOutlierAmountInflates(t *testing.T) {
	r := sampleRows(1)[0]
	r.Amount = 50
	outlierAmount(r, sampling.Spawn(4, 0))

	assert.GreaterOrEqual(t, r.Amount, 0.01)
	assert.InDelta(t, r.Amount*0.8, r.AvgAmount7d, 0.01)
}

func TestSwapFieldsSwapsPairs(t *testing.T) {
	r := sampleRows(1)[0]
	swapFields(r)

	assert.Equal(t, "ACCT-0000000002", r.CustomerID)
	assert.Equal(t, "CUST-0000000001", r.AccountID)
	assert.Equal(t, "DEV-0000000003", r.MerchantID)
	assert.Equal(t, "MCH-0000000004", r.DeviceID)
}

func TestDateJitterBounded(t *testing.T) {
	r := sampleRows(1)[0]
	before := r.EventTime
	dateJitter(r, sampling.Spawn(6, 0))

	diff := r.EventTime.Sub(before)
	assert.LessOrEqual(t, diff, 600*time.Second)
	assert.GreaterOrEqual(t, diff, -600*time.Second)
}

func TestApplyDeterminism(t *testing.T) {
	cfg := dqConfig(t, true, 0.6)

	run := func() ([]*models.Record, map[string]int) {
		inj, err := New(cfg)
		require.NoError(t, err)
		rows := sampleRows(40)
		counts := inj.Apply(rows, sampling.Spawn(77, 3))
		return rows, counts
	}

	rowsA, countsA := run()
	rowsB, countsB := run()
	assert.Equal(t, countsA, countsB)
	for i := range rowsA {
		assert.Equal(t, *rowsA[i], *rowsB[i])
	}
}
