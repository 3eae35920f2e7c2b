package stats

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"flowlens/internal/board"
	"flowlens/internal/eventlog"
)

// ErrUnknownRule is returned for a cycle time rule name that is not registered.
var ErrUnknownRule = errors.New("unknown cycle time rule")

// RuleContext carries the board-level lookups a rule may need.
type RuleContext struct {
	Board    *board.Board
	Statuses *board.StatusCollection
}

type ruleBuilder func(ctx RuleContext, values []string) (Predicate, error)

var rules = map[string]ruleBuilder{
	"created":                          createdRule,
	"first_time_in_status":             firstTimeInStatusRule,
	"first_time_in_status_category":    firstTimeInStatusCategoryRule,
	"first_time_in_or_right_of_column": firstTimeInOrRightOfColumnRule,
	"first_resolution":                 firstResolutionRule,
	"still_in_status_category":         stillInStatusCategoryRule,
}

// RuleNames lists the registered rule names.
func RuleNames() []string {
	return slices.Sorted(maps.Keys(rules))
}

// NewPredicate builds a named rule, e.g. NewPredicate("first_time_in_status", []string{"In Progress"}, ctx).
func NewPredicate(name string, values []string, ctx RuleContext) (Predicate, error) {
	build, ok := rules[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q, valid rules are: %s", ErrUnknownRule, name, strings.Join(RuleNames(), ", "))
	}
	return build(ctx, values)
}

func requireValues(name string, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("rule %s requires at least one value", name)
	}
	return nil
}

func createdRule(_ RuleContext, _ []string) (Predicate, error) {
	return func(issue *eventlog.Issue) (time.Time, bool) {
		return issue.Created(), true
	}, nil
}

func firstTimeInStatusRule(_ RuleContext, values []string) (Predicate, error) {
	if err := requireValues("first_time_in_status", values); err != nil {
		return nil, err
	}
	return func(issue *eventlog.Issue) (time.Time, bool) {
		c, ok := issue.FirstTimeInStatus(values...)
		return c.Time, ok
	}, nil
}

func categoryMatcher(ctx RuleContext, values []string) func(c eventlog.ChangeEvent) bool {
	return func(c eventlog.ChangeEvent) bool {
		status := ctx.Statuses.FindOrGuess(c.ValueID, c.Value)
		return slices.ContainsFunc(values, func(v string) bool {
			return strings.EqualFold(v, status.CategoryKey) || strings.EqualFold(v, status.CategoryName)
		})
	}
}

func firstTimeInStatusCategoryRule(ctx RuleContext, values []string) (Predicate, error) {
	if err := requireValues("first_time_in_status_category", values); err != nil {
		return nil, err
	}
	matches := categoryMatcher(ctx, values)
	return func(issue *eventlog.Issue) (time.Time, bool) {
		for _, c := range issue.Changes() {
			if c.IsStatus() && matches(c) {
				return c.Time, true
			}
		}
		return time.Time{}, false
	}, nil
}

func firstTimeInOrRightOfColumnRule(ctx RuleContext, values []string) (Predicate, error) {
	if err := requireValues("first_time_in_or_right_of_column", values); err != nil {
		return nil, err
	}
	if ctx.Board == nil {
		return nil, fmt.Errorf("rule first_time_in_or_right_of_column requires a board")
	}
	ids, err := ctx.Board.StatusIDsInOrRightOfColumn(values[0])
	if err != nil {
		return nil, err
	}
	return func(issue *eventlog.Issue) (time.Time, bool) {
		c, ok := issue.FirstTimeInStatusID(ids)
		return c.Time, ok
	}, nil
}

func firstResolutionRule(_ RuleContext, _ []string) (Predicate, error) {
	return func(issue *eventlog.Issue) (time.Time, bool) {
		for _, c := range issue.Changes() {
			if c.IsResolution() && c.Value != "" {
				return c.Time, true
			}
		}
		return time.Time{}, false
	}, nil
}

// stillInStatusCategoryRule matches only while the issue remains in the category, returning the time it
// entered the category for the last time.
func stillInStatusCategoryRule(ctx RuleContext, values []string) (Predicate, error) {
	if err := requireValues("still_in_status_category", values); err != nil {
		return nil, err
	}
	matches := categoryMatcher(ctx, values)
	return func(issue *eventlog.Issue) (time.Time, bool) {
		var entered time.Time
		inside := false
		for _, c := range issue.StatusChanges() {
			switch {
			case matches(c) && !inside:
				inside = true
				entered = c.Time
			case !matches(c):
				inside = false
			}
		}
		return entered, inside
	}, nil
}
