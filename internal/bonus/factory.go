package bonus

import "github.com/attaboy/egm-bonus/internal/domain"

// StrategyFactory hands out the payment strategy for each bonus mode.
type StrategyFactory struct {
	strategies map[domain.BonusMode]Strategy
}

func NewStrategyFactory(deps Deps) (*StrategyFactory, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	base := &strategyBase{Deps: deps}
	return &StrategyFactory{
		strategies: map[domain.BonusMode]Strategy{
			domain.ModeStandard:            newStandardStrategy(base),
			domain.ModeGameWin:             newGameWinStrategy(base),
			domain.ModeWagerMatch:          newWagerMatchStrategy(base),
			domain.ModeMultipleJackpotTime: newMJTStrategy(base),
		},
	}, nil
}

// ForMode returns nil for modes without a registered strategy.
func (f *StrategyFactory) ForMode(mode domain.BonusMode) Strategy {
	return f.strategies[mode]
}

// Modes lists the registered modes in payment order.
func (f *StrategyFactory) Modes() []domain.BonusMode {
	return []domain.BonusMode{
		domain.ModeStandard,
		domain.ModeGameWin,
		domain.ModeWagerMatch,
		domain.ModeMultipleJackpotTime,
	}
}
