package logging

// TradeContext creates a logger scoped to one trade.
func TradeContext(symbol, direction string, entryPrice float64, tradeID string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"symbol":      symbol,
		"direction":   direction,
		"entry_price": entryPrice,
		"trade_id":    tradeID,
	}).WithComponent("trade")
}

// GateContext creates a logger scoped to one admission evaluation.
func GateContext(symbol, direction string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"symbol":    symbol,
		"direction": direction,
	}).WithComponent("gate")
}

// MonitorContext creates a logger scoped to one position monitor.
func MonitorContext(tradeID, symbol string) *Logger {
	return Default().WithFields(map[string]interface{}{
		"trade_id": tradeID,
		"symbol":   symbol,
	}).WithComponent("monitor")
}
