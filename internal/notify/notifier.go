package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"signal_trader/internal/helper"
	"signal_trader/internal/models"
	"signal_trader/internal/modules/journal/service/pg/order_events"
	targets "signal_trader/internal/modules/targets/service"
	"signal_trader/pkg/logger"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Notifier interface {
	Send(msg string)
	Sendf(format string, args ...any)
}

type PositionsSource interface {
	FetchPositions(ctx context.Context) ([]models.Position, error)
}

type TargetsSource interface {
	Load() targets.Snapshot
}

type TrailStates interface {
	States() map[models.PositionKey]models.TrailingState
}

type OrderHistory interface {
	Recent(ctx context.Context, symbol string, limit int32) ([]*order_events.Row, error)
}

// Sources: откуда команды берут данные. Любое поле может быть nil.
type Sources struct {
	Symbol    string
	Positions PositionsSource
	Targets   TargetsSource
	Trail     TrailStates
	History   OrderHistory
}

// Telegram: пассивный нотифайер + команды /positions, /targets, /orders.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	src    Sources
}

func NewTelegram(token string, chatID int64, src Sources) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{
		bot:    b,
		chatID: chatID,
		src:    src,
	}, nil
}

// SetTrail подключает состояние трейла после сборки движка.
func (t *Telegram) SetTrail(tr TrailStates) { t.src.Trail = tr }

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Warn("telegram send: %v", err)
	}
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

// /positions: открытые позиции с биржи и состояние трейла
func (t *Telegram) handlePositions(ctx context.Context) {
	if t.src.Positions == nil {
		t.Send("❗️ Клиент биржи не инициализирован")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	positions, err := t.src.Positions.FetchPositions(ctx)
	if err != nil {
		t.Sendf("❗️ Ошибка получения позиций: %v", err)
		return
	}
	var states map[models.PositionKey]models.TrailingState
	if t.src.Trail != nil {
		states = t.src.Trail.States()
	}
	t.Send(FormatPositions(t.src.Symbol, positions, states))
}

func (t *Telegram) handleOrders(ctx context.Context) {
	if t.src.History == nil {
		t.Send("📭 Журнал ордеров выключен")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := t.src.History.Recent(ctx, t.src.Symbol, 10)
	if err != nil {
		t.Sendf("❗️ Ошибка чтения журнала: %v", err)
		return
	}
	t.Send(FormatOrders(rows))
}

// Start: long-polling команд из нашего чата.
func (t *Telegram) Start(ctx context.Context) error {
	if t == nil || t.bot == nil {
		return nil
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				switch upd.Message.Command() {
				case "positions":
					go t.handlePositions(ctx)
				case "targets":
					if t.src.Targets != nil {
						t.Send(FormatTargets(t.src.Targets.Load()))
					}
				case "orders":
					go t.handleOrders(ctx)
				}
			}
		}
	}()
	return nil
}

func (t *Telegram) Stop() {
	if t == nil || t.bot == nil {
		return
	}
	t.bot.StopReceivingUpdates()
}

func FormatPositions(symbol string, positions []models.Position, states map[models.PositionKey]models.TrailingState) string {
	var b strings.Builder
	n := 0
	for _, p := range positions {
		if symbol != "" && !p.On(symbol) {
			continue
		}
		if n == 0 {
			b.WriteString("📊 Открытые позиции:\n")
		}
		n++
		fmt.Fprintf(&b, "- %s [%s] size=%s @ %s", p.Symbol, strings.ToUpper(string(p.Side())), p.AbsSize(), helper.Fmt2(p.EntryPrice))
		if st, ok := findState(p, states); ok {
			fmt.Fprintf(&b, " | %s SL=%s max=%s", st.Rule, helper.Fmt2(st.TrailingStop), helper.Fmt2(st.MaxProfitAbs))
		}
		b.WriteString("\n")
	}
	if n == 0 {
		return "📭 Открытых позиций нет"
	}
	return b.String()
}

func findState(p models.Position, states map[models.PositionKey]models.TrailingState) (models.TrailingState, bool) {
	for _, strategy := range []models.KeyStrategy{models.KeyAuto, models.KeyComposite} {
		k, err := p.Key(strategy)
		if err != nil {
			continue
		}
		if st, ok := states[k]; ok {
			return st, true
		}
	}
	return models.TrailingState{}, false
}

func FormatTargets(s targets.Snapshot) string {
	tp := "нет"
	if s.TakeProfitDetected {
		tp = "да, стопы в безубытке"
	}
	return fmt.Sprintf("🎯 Цели:\n- long: %s\n- short: %s\n- take profit: %s",
		helper.Fmt2Ptr(s.TargetLong), helper.Fmt2Ptr(s.TargetShort), tp)
}

func FormatOrders(rows []*order_events.Row) string {
	if len(rows) == 0 {
		return "📭 Журнал пуст"
	}
	sorted := append([]*order_events.Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	var b strings.Builder
	b.WriteString("🧾 Последние действия:\n")
	for _, r := range sorted {
		fmt.Fprintf(&b, "- #%d %s %s %s %s @ %s", r.ID, r.Kind, r.Side, r.Amount, r.Symbol, helper.Fmt2(r.Price))
		if r.StopPrice != nil {
			fmt.Fprintf(&b, " SL %s", helper.Fmt2(*r.StopPrice))
		}
		if r.OrderID != "" {
			fmt.Fprintf(&b, " (%s)", r.OrderID)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Stdout: заглушка без Telegram, всё уходит в лог.
type Stdout struct{}

func NewStdout() *Stdout                           { return &Stdout{} }
func (s *Stdout) Send(msg string)                  { logger.Info("[NOTIFY] %s", msg) }
func (s *Stdout) Sendf(format string, args ...any) { s.Send(fmt.Sprintf(format, args...)) }
