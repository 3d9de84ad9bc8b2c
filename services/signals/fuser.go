package signals

import "stock_trading_backend/models"

// Fuse combines the model prediction with the rule-based signal.
// modelOK is false when no trained model is available for the symbol,
// which is treated like a Hold vote here but tracked separately by the
// caller.
//
// Policy: agreement wins; when exactly one side holds, the other side
// decides; when both are non-Hold and disagree, the rule-based signal
// wins because it is more transparent and adaptable than the model.
func Fuse(ruleSignal models.Signal, modelSignal models.Signal, modelOK bool) models.Signal {
	if !modelOK {
		modelSignal = models.SignalHold
	}
	if ruleSignal == modelSignal {
		return ruleSignal
	}
	if modelSignal == models.SignalHold {
		return ruleSignal
	}
	if ruleSignal == models.SignalHold {
		return modelSignal
	}
	// conflicting non-Hold votes
	return ruleSignal
}
