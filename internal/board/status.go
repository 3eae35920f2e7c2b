package board

import (
	"cmp"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"flowlens/internal/jira"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Jira status category keys.
const (
	CategoryNew        = "new"
	CategoryInProgress = "indeterminate"
	CategoryDone       = "done"
)

// Status is a workflow status with its category.
type Status struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	CategoryID   int    `json:"categoryId"`
	CategoryKey  string `json:"categoryKey"`
	CategoryName string `json:"categoryName"`
	Guessed      bool   `json:"guessed,omitempty"`
}

// StatusCollection is the lookup table of known statuses. It is frozen after construction;
// the only mutable state is the set of guessed statuses.
type StatusCollection struct {
	byID   map[int]Status
	byName map[string][]Status

	guessMu sync.Mutex
	guessed map[int]Status
}

// NewStatusCollection indexes the statuses by id and by case-insensitive name.
func NewStatusCollection(statuses []Status) *StatusCollection {
	c := &StatusCollection{
		byID:    make(map[int]Status, len(statuses)),
		byName:  make(map[string][]Status),
		guessed: make(map[int]Status),
	}
	for _, s := range statuses {
		c.byID[s.ID] = s
		key := strings.ToLower(s.Name)
		c.byName[key] = append(c.byName[key], s)
	}
	return c
}

// StatusFromDTO converts the Jira status shape.
func StatusFromDTO(dto jira.StatusDTO) Status {
	return Status{
		ID:           jira.ParseID(dto.ID),
		Name:         dto.Name,
		CategoryID:   dto.StatusCategory.ID,
		CategoryKey:  dto.StatusCategory.Key,
		CategoryName: dto.StatusCategory.Name,
	}
}

// LoadStatuses reads a status list JSON file (an array of {name,id,statusCategory}).
func LoadStatuses(path string) (*StatusCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read status list: %w", err)
	}
	var dtos []jira.StatusDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("failed to decode status list %s: %w", path, err)
	}
	statuses := make([]Status, 0, len(dtos))
	for _, dto := range dtos {
		statuses = append(statuses, StatusFromDTO(dto))
	}
	return NewStatusCollection(statuses), nil
}

// Len returns the number of known statuses.
func (c *StatusCollection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byID)
}

// Find looks up a status by id.
func (c *StatusCollection) Find(id int) (Status, bool) {
	if c == nil {
		return Status{}, false
	}
	s, ok := c.byID[id]
	return s, ok
}

// FindByName returns every status with that name, ignoring case.
func (c *StatusCollection) FindByName(name string) []Status {
	if c == nil {
		return nil
	}
	return c.byName[strings.ToLower(name)]
}

// FindOrGuess returns the known status for the id. Jira histories frequently reference statuses
// that have since been deleted; those get a category guessed from the name and a single warning.
func (c *StatusCollection) FindOrGuess(id int, name string) Status {
	if s, ok := c.Find(id); ok {
		return s
	}

	guessed := Status{ID: id, Name: name, CategoryKey: GuessCategory(name), Guessed: true}
	switch guessed.CategoryKey {
	case CategoryNew:
		guessed.CategoryName = "To Do"
	case CategoryDone:
		guessed.CategoryName = "Done"
	default:
		guessed.CategoryName = "In Progress"
	}

	if c != nil {
		c.guessMu.Lock()
		_, seen := c.guessed[id]
		if !seen {
			c.guessed[id] = guessed
		}
		c.guessMu.Unlock()
		if !seen {
			log.Warn().
				Int("statusId", id).
				Str("status", name).
				Str("guessedCategory", guessed.CategoryKey).
				Msg("Status referenced in history is not in the status list")
		}
	}
	return guessed
}

// Guessed returns every status FindOrGuess had to guess so far, ordered by id.
func (c *StatusCollection) Guessed() []Status {
	if c == nil {
		return nil
	}
	c.guessMu.Lock()
	defer c.guessMu.Unlock()
	result := slices.Collect(maps.Values(c.guessed))
	slices.SortFunc(result, func(a, b Status) int { return cmp.Compare(a.ID, b.ID) })
	return result
}

// GuessCategory infers a status category from common status names.
func GuessCategory(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch {
	case lower == "":
		return CategoryNew
	case strings.Contains(lower, "done"), strings.Contains(lower, "closed"),
		strings.Contains(lower, "resolved"), strings.Contains(lower, "complete"),
		strings.Contains(lower, "cancel"), strings.Contains(lower, "released"):
		return CategoryDone
	case strings.Contains(lower, "to do"), strings.Contains(lower, "todo"),
		strings.Contains(lower, "backlog"), strings.Contains(lower, "open"),
		lower == "new", strings.Contains(lower, "selected"):
		return CategoryNew
	default:
		return CategoryInProgress
	}
}
