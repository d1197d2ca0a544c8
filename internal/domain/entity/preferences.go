package entity

// Screen names the user can land on after bootstrap. Persisted values are
// validated against this allow-list before reuse; anything else falls back
// to the default landing screen.
const (
	ScreenDashboard = "dashboard"
	ScreenMarkets   = "markets"
	ScreenTrading   = "trading"
	ScreenWallet    = "wallet"
	ScreenSettings  = "settings"

	// DefaultScreen is the landing screen used when no valid preference exists.
	DefaultScreen = ScreenMarkets
)

// AllowedScreen reports whether name is a known destination screen.
func AllowedScreen(name string) bool {
	switch name {
	case ScreenDashboard, ScreenMarkets, ScreenTrading, ScreenWallet, ScreenSettings:
		return true
	default:
		return false
	}
}

// TradingPair is the last market the user had selected, persisted between
// sessions so the trading screen can be restored verbatim.
type TradingPair struct {
	Symbol string `json:"symbol"` // Exchange symbol, e.g. "BTC-USDT".
	Base   string `json:"base"`   // Base asset code.
	Quote  string `json:"quote"`  // Quote asset code.
}
