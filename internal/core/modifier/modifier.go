// Copyright (c) 2026 AetherCore contributors.

/*
Package modifier is a small, pure numeric-composition library: stat
modifiers (buffs, debuffs, equipment bonuses), category bonuses with caps,
and group synergy bonuses for entity compositions (e.g. deck/team
building). It holds no state of its own and touches no entity, store, or
lock — callers read modifier definitions out of an [entity.Entity]'s
Fields, compute with this package, and write the result back.
*/
package modifier

import "sort"

// Type selects how a [Modifier]'s value composes with a base stat.
type Type string

const (
	TypeFlat     Type = "flat"
	TypePercent  Type = "percent"
	TypeMultiply Type = "multiply"
)

// Modifier is a single stat adjustment: a buff, debuff, or equipment
// bonus. Duration is in caller-defined ticks; -1 means permanent, 0 means
// expired, and a positive value counts down by one per [Modifier.Tick].
type Modifier struct {
	Stat     string  `json:"stat"`
	Type     Type    `json:"type"`
	Value    float64 `json:"value"`
	Source   string  `json:"source"`
	Duration int     `json:"duration"`
}

// Apply applies this modifier to base in isolation, ignoring any other
// modifiers on the same stat. Composing several modifiers on one stat is
// [CalculateStat]'s job, not this method's.
func (m Modifier) Apply(base float64) float64 {
	switch m.Type {
	case TypeFlat:
		return base + m.Value
	case TypePercent:
		return base * (1 + m.Value)
	case TypeMultiply:
		return base * m.Value
	default:
		return base
	}
}

// Tick decrements Duration by one tick and reports whether the modifier is
// still active. A permanent modifier (Duration < 0) always reports active.
func (m *Modifier) Tick() bool {
	if m.Duration > 0 {
		m.Duration--
	}
	return m.Duration != 0
}

// CalculateStat composes every modifier targeting stat against base,
// applying flat bonuses first, then percent bonuses, then multiply
// bonuses — flat and percent values add up within their type, multiply
// values are multiplied together.
func CalculateStat(base float64, modifiers []Modifier, stat string) float64 {
	result := base

	var flatSum, percentSum float64
	for _, m := range modifiers {
		if m.Stat != stat {
			continue
		}
		switch m.Type {
		case TypeFlat:
			flatSum += m.Value
		case TypePercent:
			percentSum += m.Value
		}
	}
	result = (result + flatSum) * (1 + percentSum)

	for _, m := range modifiers {
		if m.Stat == stat && m.Type == TypeMultiply {
			result *= m.Value
		}
	}
	return result
}

// RemoveBySource returns modifiers with every entry from source removed,
// and the number removed. Used when unequipping an item or clearing a
// buff group.
func RemoveBySource(modifiers []Modifier, source string) ([]Modifier, int) {
	out := make([]Modifier, 0, len(modifiers))
	removed := 0
	for _, m := range modifiers {
		if m.Source == source {
			removed++
			continue
		}
		out = append(out, m)
	}
	return out, removed
}

// TickAll advances every modifier's duration by one tick, returning the
// surviving modifiers and the ones that just expired.
func TickAll(modifiers []Modifier) (active, expired []Modifier) {
	for _, m := range modifiers {
		if m.Tick() {
			active = append(active, m)
		} else {
			expired = append(expired, m)
		}
	}
	return active, expired
}

// # Category Bonuses

// Bonus is one named contribution to a [BonusSet] category.
type Bonus struct {
	Type   Type    `json:"type"`
	Value  float64 `json:"value"`
	Source string  `json:"source"`
}

// BonusSet accumulates category bonuses (e.g. "production", "gold") from
// multiple sources, with an optional cap per category.
type BonusSet struct {
	bonuses map[string][]Bonus
	caps    map[string]float64
}

// NewBonusSet constructs an empty BonusSet.
func NewBonusSet() *BonusSet {
	return &BonusSet{bonuses: make(map[string][]Bonus), caps: make(map[string]float64)}
}

// Add appends a bonus to category.
func (b *BonusSet) Add(category string, bonus Bonus) {
	b.bonuses[category] = append(b.bonuses[category], bonus)
}

// SetCap sets the maximum value [BonusSet.Calculate] will return for category.
func (b *BonusSet) SetCap(category string, cap float64) {
	b.caps[category] = cap
}

// Calculate composes every bonus in category against base, in the same
// flat-then-percent-then-multiply order as [CalculateStat], then applies
// the category's cap if one is set and applyCap is true.
func (b *BonusSet) Calculate(category string, base float64, applyCap bool) float64 {
	bonuses := b.bonuses[category]

	var flatSum, percentSum float64
	for _, bonus := range bonuses {
		switch bonus.Type {
		case TypeFlat:
			flatSum += bonus.Value
		case TypePercent:
			percentSum += bonus.Value
		}
	}
	result := (base + flatSum) * (1 + percentSum)

	for _, bonus := range bonuses {
		if bonus.Type == TypeMultiply {
			result *= bonus.Value
		}
	}

	if applyCap {
		if cap, ok := b.caps[category]; ok && result > cap {
			result = cap
		}
	}
	return result
}

// # Group Synergies

// SynergyCondition gates a [SynergyRule] on a field/value match plus a
// minimum matching count across the group.
type SynergyCondition struct {
	Field    string
	Value    any
	MinCount int
}

// SynergyRule defines a group bonus that activates once enough group
// members satisfy Condition (e.g. "3+ fire-element cards").
type SynergyRule struct {
	ID          string
	Name        string
	Description string
	Condition   SynergyCondition
	Bonuses     []Bonus
	Priority    int
}

// SynergyResult is one rule's evaluation outcome against a group.
type SynergyResult struct {
	RuleID        string
	Active        bool
	MatchingCount int
	RequiredCount int
	Bonuses       []Bonus
}

// EvaluateSynergies evaluates every rule against group, where each group
// member is a field map (e.g. a card entity's Fields) and each rule's
// Condition names the field to compare (e.g. "element"). Rules are
// evaluated in descending Priority order.
func EvaluateSynergies(rules []SynergyRule, group []map[string]any) []SynergyResult {
	sorted := append([]SynergyRule(nil), rules...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority > sorted[j].Priority })

	results := make([]SynergyResult, 0, len(sorted))
	for _, rule := range sorted {
		count := countMatching(group, rule.Condition)
		required := rule.Condition.MinCount
		if required <= 0 {
			required = 1
		}
		active := count >= required

		var bonuses []Bonus
		if active {
			bonuses = rule.Bonuses
		}

		results = append(results, SynergyResult{
			RuleID:        rule.ID,
			Active:        active,
			MatchingCount: count,
			RequiredCount: required,
			Bonuses:       bonuses,
		})
	}
	return results
}

func countMatching(group []map[string]any, condition SynergyCondition) int {
	if condition.Field == "" {
		return len(group)
	}
	count := 0
	for _, member := range group {
		if member[condition.Field] == condition.Value {
			count++
		}
	}
	return count
}

// ActiveBonuses flattens every active rule's bonuses out of results, in
// rule-evaluation order.
func ActiveBonuses(results []SynergyResult) []Bonus {
	var out []Bonus
	for _, r := range results {
		if r.Active {
			out = append(out, r.Bonuses...)
		}
	}
	return out
}
