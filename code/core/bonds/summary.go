// Package bonds summarizes bond logs per creature against the creature
// configs.
package bonds

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/Voltaic314/GameLedger/code/db/tables"
	typesdb "github.com/Voltaic314/GameLedger/code/types/db"
)

// Defaults used for creatures that have bond logs but no config row.
const (
	DefaultMaxLevel       = 10
	DefaultPointsPerLevel = 100
)

// Finder is the read side of a record store.
type Finder interface {
	FindAll(ctx context.Context, filter typesdb.Filter) ([]typesdb.Record, error)
}

// Config is the bond ceiling of one creature.
type Config struct {
	ID             string `json:"id,omitempty"`
	Creature       string `json:"creature"`
	MaxLevel       int64  `json:"max_level"`
	PointsPerLevel int64  `json:"points_per_level"`
	Placeholder    bool   `json:"placeholder"`
}

// Summary is the bond state of one creature.
type Summary struct {
	Creature     string `json:"creature"`
	Entries      int    `json:"entries"`
	LatestLevel  int64  `json:"latest_level"`
	TotalPoints  int64  `json:"total_points"`
	LastLoggedOn string `json:"last_logged_on"`
	PointsToNext int64  `json:"points_to_next"`
	Maxed        bool   `json:"maxed"`
	Config       Config `json:"config"`
}

// SummaryResponse is the output of BondSummaries.
type SummaryResponse struct {
	Summaries []Summary `json:"summaries"`
}

// BondSummaries loads every bond log and creature config and summarizes them.
func BondSummaries(ctx context.Context, logs, configs Finder) (*SummaryResponse, error) {
	logRecs, err := logs.FindAll(ctx, typesdb.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", tables.BondLogsTable, err)
	}
	configRecs, err := configs.FindAll(ctx, typesdb.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", tables.CreatureConfigsTable, err)
	}
	return &SummaryResponse{Summaries: Summarize(logRecs, configRecs)}, nil
}

// Summarize groups logs by creature, sorted by creature name. Logs are ordered
// by logged_on, then creation time, and the last one gives the latest level.
// Creatures without a config row get a placeholder config.
func Summarize(logs, configs []typesdb.Record) []Summary {
	byCreature := make(map[string]Config, len(configs))
	for _, rec := range configs {
		cfg := ConfigFromRecord(rec)
		if cfg.Creature == "" {
			continue
		}
		byCreature[cfg.Creature] = cfg
	}

	ordered := slices.Clone(logs)
	slices.SortStableFunc(ordered, func(a, b typesdb.Record) int {
		if c := cmp.Compare(stringField(a, "logged_on"), stringField(b, "logged_on")); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	summaries := make(map[string]*Summary)
	for _, rec := range ordered {
		creature := stringField(rec, "creature")
		if creature == "" {
			continue
		}
		s, ok := summaries[creature]
		if !ok {
			s = &Summary{Creature: creature}
			summaries[creature] = s
		}
		s.Entries++
		s.TotalPoints += intField(rec, "bond_points")
		s.LatestLevel = intField(rec, "bond_level")
		s.LastLoggedOn = stringField(rec, "logged_on")
	}

	out := make([]Summary, 0, len(summaries))
	for creature, s := range summaries {
		cfg, ok := byCreature[creature]
		if !ok {
			cfg = Placeholder(creature)
		}
		s.Config = cfg
		s.Maxed = s.LatestLevel >= cfg.MaxLevel
		if !s.Maxed {
			s.PointsToNext = max(0, (s.LatestLevel+1)*cfg.PointsPerLevel-s.TotalPoints)
		}
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b Summary) int {
		return cmp.Compare(a.Creature, b.Creature)
	})
	return out
}

// Placeholder is the config assumed for a creature without a config row.
func Placeholder(creature string) Config {
	return Config{
		Creature:       creature,
		MaxLevel:       DefaultMaxLevel,
		PointsPerLevel: DefaultPointsPerLevel,
		Placeholder:    true,
	}
}

// ConfigFromRecord reads a creature_configs record. Missing or non-positive
// values fall back to the defaults.
func ConfigFromRecord(rec typesdb.Record) Config {
	cfg := Config{
		ID:             rec.ID,
		Creature:       stringField(rec, "creature"),
		MaxLevel:       intField(rec, "max_level"),
		PointsPerLevel: intField(rec, "points_per_level"),
	}
	if cfg.MaxLevel <= 0 {
		cfg.MaxLevel = DefaultMaxLevel
	}
	if cfg.PointsPerLevel <= 0 {
		cfg.PointsPerLevel = DefaultPointsPerLevel
	}
	return cfg
}

func stringField(rec typesdb.Record, name string) string {
	s, _ := rec.Fields[name].(string)
	return s
}

func intField(rec typesdb.Record, name string) int64 {
	switch v := rec.Fields[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		n, _ := tables.Int64(v)
		return n
	}
	return 0
}
