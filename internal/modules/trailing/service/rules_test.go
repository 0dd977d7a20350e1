package service

import (
	"testing"

	"signal_trader/internal/models"
	targets "signal_trader/internal/modules/targets/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

var params = RuleParams{FixedOffset: d("0.005"), LockFraction: d("0.9")}

func TestSelectRule(t *testing.T) {
	cases := []struct {
		name     string
		in       RuleInput
		wantRule models.TrailRule
		wantStop string
	}{
		{
			name:     "long without target uses fixed offset",
			in:       RuleInput{Side: models.SideLong, Entry: d("100"), Live: d("110"), MaxProfit: d("10")},
			wantRule: models.RuleFixedStop,
			wantStop: "99.5",
		},
		{
			name:     "short without target uses fixed offset",
			in:       RuleInput{Side: models.SideShort, Entry: d("100"), Live: d("95"), MaxProfit: d("5")},
			wantRule: models.RuleFixedStop,
			wantStop: "100.5",
		},
		{
			name: "long at target locks ninety percent",
			in: RuleInput{Side: models.SideLong, Entry: d("100"), Live: d("120"), MaxProfit: d("20"),
				Targets: targets.Snapshot{TargetLong: dp("115")}},
			wantRule: models.RuleLock90,
			wantStop: "118",
		},
		{
			name: "long below target stays fixed",
			in: RuleInput{Side: models.SideLong, Entry: d("100"), Live: d("110"), MaxProfit: d("10"),
				Targets: targets.Snapshot{TargetLong: dp("115")}},
			wantRule: models.RuleFixedStop,
			wantStop: "99.5",
		},
		{
			name: "short at target locks ninety percent",
			in: RuleInput{Side: models.SideShort, Entry: d("100"), Live: d("90"), MaxProfit: d("10"),
				Targets: targets.Snapshot{TargetShort: dp("90")}},
			wantRule: models.RuleLock90,
			wantStop: "91",
		},
		{
			name: "short ignores long target",
			in: RuleInput{Side: models.SideShort, Entry: d("100"), Live: d("200"), MaxProfit: d("0"),
				Targets: targets.Snapshot{TargetLong: dp("150")}},
			wantRule: models.RuleFixedStop,
			wantStop: "100.5",
		},
		{
			name: "take profit wins over lock",
			in: RuleInput{Side: models.SideLong, Entry: d("100"), Live: d("120"), MaxProfit: d("20"),
				Targets: targets.Snapshot{TargetLong: dp("115"), TakeProfitDetected: true}},
			wantRule: models.RuleBreakeven,
			wantStop: "100",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rule, stop := SelectRule(tc.in, params)
			assert.Equal(t, tc.wantRule, rule)
			assert.True(t, d(tc.wantStop).Equal(stop), "stop %s, want %s", stop, tc.wantStop)
		})
	}
}

func TestShouldClose(t *testing.T) {
	assert.True(t, ShouldClose(models.SideLong, d("99"), d("99.5")))
	assert.False(t, ShouldClose(models.SideLong, d("99.5"), d("99.5")))
	assert.True(t, ShouldClose(models.SideShort, d("101"), d("100.5")))
	assert.False(t, ShouldClose(models.SideShort, d("100.5"), d("100.5")))
}

func TestRawProfit(t *testing.T) {
	long := models.Position{Symbol: "BTCUSD", EntryPrice: d("100"), Size: d("3")}
	short := models.Position{Symbol: "BTCUSD", EntryPrice: d("100"), Size: d("-3")}

	assert.True(t, d("30").Equal(RawProfit(long, d("110"))))
	assert.True(t, d("30").Equal(RawProfit(short, d("90"))))
	assert.True(t, d("-30").Equal(RawProfit(short, d("110"))))
}

func TestExitAmount(t *testing.T) {
	ten := d("10")
	assert.True(t, d("5").Equal(ExitAmount(ten, decimal.Zero, 1)))
	assert.True(t, d("2").Equal(ExitAmount(ten, decimal.Zero, 2)))
	assert.True(t, d("2").Equal(ExitAmount(ten, decimal.Zero, 3)))
	assert.True(t, decimal.Zero.Equal(ExitAmount(ten, decimal.Zero, 4)))

	// не больше остатка
	assert.True(t, d("1").Equal(ExitAmount(ten, d("9"), 1)))
	assert.True(t, decimal.Zero.Equal(ExitAmount(ten, d("12"), 2)))
}
