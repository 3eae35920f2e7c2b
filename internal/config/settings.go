package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"flowlens/internal/stats"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// ErrInvalidSettings marks a settings problem that makes the derivations impossible to run.
var ErrInvalidSettings = errors.New("invalid settings")

// RuleConfig names a cycle time rule and its arguments.
type RuleConfig struct {
	Rule   string   `yaml:"rule" json:"rule"`
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`
}

// Settings is the per-project configuration. It is built once and passed by value.
type Settings struct {
	BlockedStalled stats.BlockedStalledSettings
	Location       *time.Location
	CycleTimeStart RuleConfig
	CycleTimeStop  RuleConfig
	// DiscardBeforeStatuses clips each issue's history at the last move into one of these statuses.
	DiscardBeforeStatuses []string
}

// DefaultSettings is used when no settings file exists.
func DefaultSettings() Settings {
	return Settings{
		BlockedStalled: stats.BlockedStalledSettings{
			BlockedStatuses:      []string{},
			StalledStatuses:      []string{},
			BlockedLinkText:      []string{},
			StalledThresholdDays: 5,
			FlaggedMeansBlocked:  true,
		},
		Location:       time.UTC,
		CycleTimeStart: RuleConfig{Rule: "first_time_in_status_category", Values: []string{"indeterminate"}},
		CycleTimeStop:  RuleConfig{Rule: "first_time_in_status_category", Values: []string{"done"}},

		DiscardBeforeStatuses: []string{},
	}
}

// LoadSettings reads a YAML (or JSON) settings file. An empty path or a missing file yields the defaults.
func LoadSettings(path string) (Settings, error) {
	if path == "" {
		return DefaultSettings(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", path).Msg("No settings file found, using defaults")
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidSettings, path, err)
	}
	settings, err := ParseSettings(raw)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("Loaded settings")
	return settings, nil
}

// ParseSettings validates a flat key/value map. blocked_statuses and stalled_statuses must be arrays.
func ParseSettings(raw map[string]any) (Settings, error) {
	s := DefaultSettings()
	var err error

	if s.BlockedStalled.BlockedStatuses, err = stringList(raw, "blocked_statuses", true); err != nil {
		return Settings{}, err
	}
	if s.BlockedStalled.StalledStatuses, err = stringList(raw, "stalled_statuses", true); err != nil {
		return Settings{}, err
	}
	if s.BlockedStalled.BlockedLinkText, err = stringList(raw, "blocked_link_text", false); err != nil {
		return Settings{}, err
	}

	if v, ok := raw["stalled_threshold_days"]; ok {
		days, err := toInt(v)
		if err != nil || days < 0 {
			return Settings{}, fmt.Errorf("%w: stalled_threshold_days must be a non-negative integer, got %v", ErrInvalidSettings, v)
		}
		s.BlockedStalled.StalledThresholdDays = days
	}

	if v, ok := raw["flagged_means_blocked"]; ok {
		b, isBool := v.(bool)
		if !isBool {
			return Settings{}, fmt.Errorf("%w: flagged_means_blocked must be a boolean, got %v", ErrInvalidSettings, v)
		}
		s.BlockedStalled.FlaggedMeansBlocked = b
	}

	if v, ok := raw["timezone_offset"]; ok {
		loc, err := parseLocation(fmt.Sprint(v))
		if err != nil {
			return Settings{}, err
		}
		s.Location = loc
	}

	if v, ok := raw["cycletime"]; ok {
		block, isMap := v.(map[string]any)
		if !isMap {
			return Settings{}, fmt.Errorf("%w: cycletime must be a map with start and stop", ErrInvalidSettings)
		}
		if s.CycleTimeStart, err = ruleConfig(block, "start", s.CycleTimeStart); err != nil {
			return Settings{}, err
		}
		if s.CycleTimeStop, err = ruleConfig(block, "stop", s.CycleTimeStop); err != nil {
			return Settings{}, err
		}
	}

	if v, ok := raw["discard_changes_before"]; ok {
		block, isMap := v.(map[string]any)
		if !isMap {
			return Settings{}, fmt.Errorf("%w: discard_changes_before must be a map with status_becomes", ErrInvalidSettings)
		}
		if s.DiscardBeforeStatuses, err = stringList(block, "status_becomes", true); err != nil {
			return Settings{}, err
		}
	}

	return s, nil
}

// CycleTimeConfig builds the start and stop predicates.
func (s Settings) CycleTimeConfig(ctx stats.RuleContext, today stats.Date) (stats.CycleTimeConfig, error) {
	start, err := stats.NewPredicate(s.CycleTimeStart.Rule, s.CycleTimeStart.Values, ctx)
	if err != nil {
		return stats.CycleTimeConfig{}, fmt.Errorf("%w: cycletime start: %w", ErrInvalidSettings, err)
	}
	stop, err := stats.NewPredicate(s.CycleTimeStop.Rule, s.CycleTimeStop.Values, ctx)
	if err != nil {
		return stats.CycleTimeConfig{}, fmt.Errorf("%w: cycletime stop: %w", ErrInvalidSettings, err)
	}
	return stats.CycleTimeConfig{Start: start, Stop: stop, Today: today, Location: s.Location}, nil
}

func stringList(raw map[string]any, key string, required bool) ([]string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		if required {
			return nil, fmt.Errorf("%w: %s is required and must be an array", ErrInvalidSettings, key)
		}
		return []string{}, nil
	}
	items, isList := v.([]any)
	if !isList {
		return nil, fmt.Errorf("%w: %s must be an array, got %T", ErrInvalidSettings, key, v)
	}
	result := make([]string, 0, len(items))
	for _, item := range items {
		// Status ids may be written as bare numbers.
		result = append(result, strings.TrimSpace(fmt.Sprint(item)))
	}
	return result, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int(n), nil
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

// parseLocation accepts a fixed offset ("+02:00", "-0500", "Z") or an IANA zone name.
func parseLocation(s string) (*time.Location, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "Z" || strings.EqualFold(s, "UTC") {
		return time.UTC, nil
	}
	for _, layout := range []string{"-07:00", "-0700", "-07"} {
		if t, err := time.Parse(layout, s); err == nil {
			_, offset := t.Zone()
			return time.FixedZone(s, offset), nil
		}
	}
	loc, err := time.LoadLocation(s)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone_offset %q: %v", ErrInvalidSettings, s, err)
	}
	return loc, nil
}

func ruleConfig(block map[string]any, key string, fallback RuleConfig) (RuleConfig, error) {
	v, ok := block[key]
	if !ok {
		return fallback, nil
	}
	m, isMap := v.(map[string]any)
	if !isMap {
		return RuleConfig{}, fmt.Errorf("%w: cycletime.%s must be a map with a rule", ErrInvalidSettings, key)
	}
	rule, _ := m["rule"].(string)
	if rule == "" {
		return RuleConfig{}, fmt.Errorf("%w: cycletime.%s.rule is required, valid rules are: %s",
			ErrInvalidSettings, key, strings.Join(stats.RuleNames(), ", "))
	}

	rc := RuleConfig{Rule: rule}
	switch values := m["values"].(type) {
	case nil:
	case string:
		rc.Values = []string{values}
	case []any:
		for _, item := range values {
			rc.Values = append(rc.Values, fmt.Sprint(item))
		}
	default:
		return RuleConfig{}, fmt.Errorf("%w: cycletime.%s.values must be a string or an array", ErrInvalidSettings, key)
	}
	return rc, nil
}
