package calc

import "github.com/vietddude/buildforge/internal/core/domain"

// stack accumulates the modifiers of one stat from one origin.
type stack struct {
	flat      float64
	increased float64
	more      float64 // product of (1 + more/100)
}

func newStack() *stack {
	return &stack{more: 1}
}

func (s *stack) add(kind domain.ModifierKind, value float64) {
	switch kind {
	case domain.ModFlat:
		s.flat += value
	case domain.ModIncreased:
		s.increased += value
	case domain.ModMore:
		s.more *= 1 + value/100
	}
}

// ledger groups stacks by origin. Item and passive flats are kept apart
// because energy shield applies them at different steps.
type ledger struct {
	items    map[domain.Stat]*stack
	passives map[domain.Stat]*stack
	gems     map[domain.Stat]*stack
}

func collect(cfg domain.BuildConfig) *ledger {
	l := &ledger{
		items:    make(map[domain.Stat]*stack),
		passives: make(map[domain.Stat]*stack),
		gems:     make(map[domain.Stat]*stack),
	}
	for _, item := range cfg.Items {
		for _, m := range item.Modifiers {
			addTo(l.items, m.Stat, m.Kind, m.Value)
		}
	}
	for _, p := range cfg.Passives {
		for _, m := range p.Modifiers {
			addTo(l.passives, m.Stat, m.Kind, m.Value)
		}
	}
	for _, g := range cfg.SupportGems {
		stat := g.Stat
		if stat == "" {
			stat = domain.StatDamage
		}
		addTo(l.gems, stat, g.Kind, g.Value)
	}
	return l
}

func addTo(stacks map[domain.Stat]*stack, stat domain.Stat, kind domain.ModifierKind, value float64) {
	if stat == domain.StatAllResistances {
		for _, s := range elementalStats {
			addTo(stacks, s, kind, value)
		}
		return
	}
	st, ok := stacks[stat]
	if !ok {
		st = newStack()
		stacks[stat] = st
	}
	st.add(kind, value)
}

var elementalStats = []domain.Stat{
	domain.StatFireResistance,
	domain.StatColdResistance,
	domain.StatLightningResistance,
}

// combine merges the stacks of stat across the given origins in order.
func combine(stat domain.Stat, origins ...map[domain.Stat]*stack) stack {
	out := stack{more: 1}
	for _, o := range origins {
		if st, ok := o[stat]; ok {
			out.flat += st.flat
			out.increased += st.increased
			out.more *= st.more
		}
	}
	return out
}

// of returns the stack of stat in origin, or an empty stack.
func of(origin map[domain.Stat]*stack, stat domain.Stat) stack {
	if st, ok := origin[stat]; ok {
		return *st
	}
	return stack{more: 1}
}
