package agents

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStrategy is returned when a strategy tag names none of the four
// trading algorithms.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy selects the trading algorithm an agent runs when it meets a partner.
type Strategy uint8

const (
	StrategyAssetTrading Strategy = iota
	StrategyWealthTrading
	StrategyMeanReversion
	StrategyMomentum
)

// NumStrategies is the number of trading strategies.
const NumStrategies = 4

var strategyNames = [NumStrategies]string{
	"Asset Trading",
	"Wealth Trading",
	"Mean Reversion",
	"Momentum",
}

// Strategies lists every strategy in declaration order.
func Strategies() []Strategy {
	return []Strategy{StrategyAssetTrading, StrategyWealthTrading, StrategyMeanReversion, StrategyMomentum}
}

// Valid reports whether s is one of the declared strategies.
func (s Strategy) Valid() bool {
	return s < NumStrategies
}

// String returns the display name, e.g. "Mean Reversion".
func (s Strategy) String() string {
	if s.Valid() {
		return strategyNames[s]
	}
	return fmt.Sprintf("Strategy(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStrategy accepts a display name ("Asset Trading") or any spelling that
// differs only by case, spaces, underscores or hyphens ("asset_trading",
// "AssetTrading", "mean-reversion").
func ParseStrategy(tag string) (Strategy, error) {
	key := normalizeTag(tag)
	for i, name := range strategyNames {
		if normalizeTag(name) == key {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, tag)
}

func normalizeTag(tag string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(tag)) {
		switch r {
		case ' ', '_', '-':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
