package models

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// SignalKind: результат классификации текста сигнала.
type SignalKind string

const (
	KindTakeProfit SignalKind = "take_profit"
	KindBuy        SignalKind = "buy"
	KindSell       SignalKind = "sell"
	KindUnknown    SignalKind = "unknown"
)

var tpWord = regexp.MustCompile(`\btp\b`)

// Num is a decimal that tolerates string, number, null and garbage in JSON.
// Raw keeps the original text so equality checks survive unparseable input.
type Num struct {
	Raw   string
	Value decimal.Decimal
	Valid bool
}

func (n *Num) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*n = Num{}
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if len(b) >= 2 && b[0] == '"' && b[len(b)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	*n = ParseNum(s)
	return nil
}

func (n Num) MarshalJSON() ([]byte, error) {
	if n.Raw == "" {
		return []byte("null"), nil
	}
	return []byte(`"` + n.Raw + `"`), nil
}

// ParseNum builds a Num from free text; empty or unparseable text gives Valid=false.
func ParseNum(s string) Num {
	s = strings.TrimSpace(s)
	n := Num{Raw: s}
	if s == "" {
		return n
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return n
	}
	n.Value, n.Valid = d, true
	return n
}

// Ptr returns nil for an invalid number.
func (n Num) Ptr() *decimal.Decimal {
	if !n.Valid {
		return nil
	}
	v := n.Value
	return &v
}

// Same compares numerically when both sides parse, textually otherwise.
func (n Num) Same(o Num) bool {
	if n.Valid && o.Valid {
		return n.Value.Equal(o.Value)
	}
	return n.Valid == o.Valid && n.Raw == o.Raw
}

type Zone struct {
	Min Num `json:"min"`
	Max Num `json:"max"`
}

type LastSignal struct {
	Text        string `json:"text"`
	Price       Num    `json:"price"`
	Coordinates string `json:"coordinates,omitempty"`
}

// Signal: запись детектора в Redis.
type Signal struct {
	Timestamp     string     `json:"timestamp"`
	Symbol        string     `json:"symbol"`
	LastSignal    LastSignal `json:"last_signal"`
	SupplyZone    Zone       `json:"supply_zone"`
	DemandZone    Zone       `json:"demand_zone"`
	ValidPosition *bool      `json:"valid_position"`
}

// NormText is the text used for classification and dedup.
func (s *Signal) NormText() string {
	return strings.ToLower(strings.TrimSpace(s.LastSignal.Text))
}

// Kind classifies the signal text. Take-profit wins over direction words.
func (s *Signal) Kind() SignalKind {
	return ClassifyText(s.LastSignal.Text)
}

func ClassifyText(text string) SignalKind {
	t := strings.ToLower(strings.TrimSpace(text))
	switch {
	case t == "":
		return KindUnknown
	case strings.Contains(t, "take profit") || tpWord.MatchString(t):
		return KindTakeProfit
	case strings.Contains(t, "buy") || strings.Contains(t, "long"):
		return KindBuy
	case strings.Contains(t, "sell") || strings.Contains(t, "short"):
		return KindSell
	default:
		return KindUnknown
	}
}

// Invalid is true only when the detector explicitly marked the position invalid.
func (s *Signal) Invalid() bool {
	return s.ValidPosition != nil && !*s.ValidPosition
}

// TargetLong / TargetShort: границы зон для правила lock.
func (s *Signal) TargetLong() *decimal.Decimal  { return s.SupplyZone.Min.Ptr() }
func (s *Signal) TargetShort() *decimal.Decimal { return s.DemandZone.Max.Ptr() }

// DiffersFrom reports whether s should be processed after prev.
// Only the text and the two target bounds count; timestamps and other churn do not.
func (s *Signal) DiffersFrom(prev *Signal) bool {
	if prev == nil {
		return true
	}
	return s.NormText() != prev.NormText() ||
		!s.SupplyZone.Min.Same(prev.SupplyZone.Min) ||
		!s.DemandZone.Max.Same(prev.DemandZone.Max)
}
