package service

import (
	"context"
	"errors"
	"net/http"

	"signal_trader/internal/models"
	"signal_trader/pkg/logger"
)

var errBadNumber = errors.New("not a number")

// FetchPositions returns open positions across products. A position with an
// unparseable size or entry price is dropped on its own, the rest are kept.
func (c *Client) FetchPositions(ctx context.Context) ([]models.Position, error) {
	var raw []positionDTO
	if err := c.do(ctx, "positions", http.MethodGet, "/v2/positions/margined", nil, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]models.Position, 0, len(raw))
	for _, p := range raw {
		pos, err := p.toModel()
		if err != nil {
			logger.Warn("[DELTA] skip position %s: %v", p.ProductSymbol, err)
			continue
		}
		if pos.Size.IsZero() {
			continue
		}
		out = append(out, pos)
	}
	return out, nil
}

func (p positionDTO) toModel() (models.Position, error) {
	if !p.Size.Valid {
		return models.Position{}, models.DataInvalid("size "+p.Size.Raw, errBadNumber)
	}
	if !p.EntryPrice.Valid && !p.Size.Value.IsZero() {
		return models.Position{}, models.DataInvalid("entry_price "+p.EntryPrice.Raw, errBadNumber)
	}
	// у Delta нет id позиции: одна позиция на продукт, ключ строится из полей
	return models.Position{
		Symbol:     p.ProductSymbol,
		EntryPrice: p.EntryPrice.Value,
		Size:       p.Size.Value,
	}, nil
}
