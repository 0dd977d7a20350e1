package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyText(t *testing.T) {
	cases := []struct {
		text string
		want SignalKind
	}{
		{"BUY", KindBuy},
		{"  Long entry ", KindBuy},
		{"sell now", KindSell},
		{"Short", KindSell},
		{"Take Profit", KindTakeProfit},
		{"buy TP", KindTakeProfit},
		{"TP1 hit", KindUnknown},
		{"stop", KindUnknown},
		{"", KindUnknown},
		{"hold", KindUnknown},
	}
	for _, c := range cases {
		t.Run(c.text, func(t *testing.T) {
			assert.Equal(t, c.want, ClassifyText(c.text))
		})
	}
}

func TestSignalUnmarshalLenientNumbers(t *testing.T) {
	raw := `{
		"timestamp": "2025-04-24 10:00:00",
		"symbol": "BTCUSD",
		"last_signal": {"text": "Buy", "price": 64250.5, "coordinates": "1,2"},
		"supply_zone": {"min": "65000", "max": "65500"},
		"demand_zone": {"min": "", "max": "abc"},
		"valid_position": null
	}`
	var s Signal
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.True(t, s.LastSignal.Price.Valid)
	assert.Equal(t, "64250.5", s.LastSignal.Price.Value.String())
	require.NotNil(t, s.TargetLong())
	assert.Equal(t, "65000", s.TargetLong().String())
	assert.Nil(t, s.TargetShort())
	assert.Equal(t, "abc", s.DemandZone.Max.Raw)
	assert.False(t, s.Invalid())
}

func TestSignalInvalidOnlyWhenExplicitlyFalse(t *testing.T) {
	f, tr := false, true
	assert.True(t, (&Signal{ValidPosition: &f}).Invalid())
	assert.False(t, (&Signal{ValidPosition: &tr}).Invalid())
	assert.False(t, (&Signal{}).Invalid())
}

func TestDiffersFrom(t *testing.T) {
	base := Signal{
		Timestamp:  "t1",
		LastSignal: LastSignal{Text: "Buy"},
		SupplyZone: Zone{Min: ParseNum("100"), Max: ParseNum("110")},
		DemandZone: Zone{Min: ParseNum("80"), Max: ParseNum("90")},
	}

	t.Run("nil previous", func(t *testing.T) {
		assert.True(t, base.DiffersFrom(nil))
	})

	t.Run("timestamp and unrelated bounds ignored", func(t *testing.T) {
		next := base
		next.Timestamp = "t2"
		next.SupplyZone.Max = ParseNum("999")
		next.DemandZone.Min = ParseNum("1")
		next.LastSignal.Text = "  BUY "
		assert.False(t, next.DiffersFrom(&base))
	})

	t.Run("numeric equality", func(t *testing.T) {
		next := base
		next.SupplyZone.Min = ParseNum("100.00")
		assert.False(t, next.DiffersFrom(&base))
	})

	t.Run("text change", func(t *testing.T) {
		next := base
		next.LastSignal.Text = "Sell"
		assert.True(t, next.DiffersFrom(&base))
	})

	t.Run("target bound change", func(t *testing.T) {
		next := base
		next.DemandZone.Max = ParseNum("91")
		assert.True(t, next.DiffersFrom(&base))
	})
}

func TestPositionKey(t *testing.T) {
	p := Position{Symbol: "BTCUSD", EntryPrice: ParseNum("100.5").Value, Size: ParseNum("-3").Value}

	k, err := p.Key(KeyAuto)
	require.NoError(t, err)
	assert.Equal(t, PositionKey("BTCUSD_100.5_-3"), k)

	_, err = p.Key(KeyExchangeID)
	assert.ErrorIs(t, err, ErrDataInvalid)

	p.ID = "42"
	k, err = p.Key(KeyAuto)
	require.NoError(t, err)
	assert.Equal(t, PositionKey("BTCUSD#42"), k)

	k, err = p.Key(KeyComposite)
	require.NoError(t, err)
	assert.Equal(t, PositionKey("BTCUSD_100.5_-3"), k)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, Classify(nil))
	assert.Equal(t, OutcomeTransient, Classify(Transient("FetchPositions", assert.AnError)))
	assert.Equal(t, OutcomeDataInvalid, Classify(DataInvalid("entry", assert.AnError)))
	assert.Equal(t, OutcomeTransient, Classify(assert.AnError))
}

func TestSameSymbolIsExact(t *testing.T) {
	p := Position{Symbol: "BTCUSDT"}
	assert.False(t, p.On("BTCUSD"))
	assert.True(t, p.On("btcusdt"))
	assert.True(t, SameSymbol(" BTCUSD", "BTCUSD"))
	assert.False(t, SameSymbol("BTCUSD", "BTC"))
}
