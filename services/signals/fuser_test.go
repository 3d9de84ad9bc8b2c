package signals

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"stock_trading_backend/models"
)

func TestFuse(t *testing.T) {
	tests := []struct {
		name    string
		rule    models.Signal
		model   models.Signal
		modelOK bool
		want    models.Signal
	}{
		{"agreement buy", models.SignalBuy, models.SignalBuy, true, models.SignalBuy},
		{"agreement sell", models.SignalSell, models.SignalSell, true, models.SignalSell},
		{"agreement hold", models.SignalHold, models.SignalHold, true, models.SignalHold},
		{"rule holds, model decides", models.SignalHold, models.SignalBuy, true, models.SignalBuy},
		{"model holds, rule decides", models.SignalSell, models.SignalHold, true, models.SignalSell},
		{"conflict goes to rule", models.SignalBuy, models.SignalSell, true, models.SignalBuy},
		{"conflict goes to rule, reversed", models.SignalSell, models.SignalBuy, true, models.SignalSell},
		{"model unavailable, rule decides", models.SignalBuy, models.SignalSell, false, models.SignalBuy},
		{"model unavailable, rule holds", models.SignalHold, models.SignalBuy, false, models.SignalHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Fuse(tt.rule, tt.model, tt.modelOK))
		})
	}
}
