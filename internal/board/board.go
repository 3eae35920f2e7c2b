package board

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"flowlens/internal/jira"

	"github.com/goccy/go-json"
)

// Board types as reported by Jira.
const (
	TypeKanban = "kanban"
	TypeScrum  = "scrum"
)

// Column is a visible grouping of statuses on the board.
type Column struct {
	Name      string `json:"name"`
	StatusIDs []int  `json:"statusIds"`
	Min       *int   `json:"min,omitempty"`
	Max       *int   `json:"max,omitempty"`
}

// Contains reports whether the status id is mapped to this column.
func (c Column) Contains(statusID int) bool {
	return slices.Contains(c.StatusIDs, statusID)
}

// Board holds the column topology of a Jira board in left-to-right order.
// It is populated once at load time and only read afterwards.
type Board struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	Type             string   `json:"type"`
	BacklogStatusIDs []int    `json:"backlogStatusIds,omitempty"`
	VisibleColumns   []Column `json:"visibleColumns"`
}

// New builds a Board from its configuration DTO.
// On a kanban board the first configured column is the (usually invisible) backlog and is not visible.
func New(dto jira.BoardConfigDTO) *Board {
	b := &Board{
		ID:   dto.ID,
		Name: dto.Name,
		Type: strings.ToLower(dto.Type),
	}

	columns := dto.ColumnConfig.Columns
	if b.Kanban() && len(columns) > 0 {
		b.BacklogStatusIDs = statusIDs(columns[0])
		columns = columns[1:]
	}

	for _, c := range columns {
		b.VisibleColumns = append(b.VisibleColumns, Column{
			Name:      c.Name,
			StatusIDs: statusIDs(c),
			Min:       c.Min,
			Max:       c.Max,
		})
	}
	return b
}

func statusIDs(c jira.ColumnDTO) []int {
	ids := make([]int, 0, len(c.Statuses))
	for _, s := range c.Statuses {
		ids = append(ids, jira.ParseID(s.ID))
	}
	return ids
}

// Load reads a board configuration JSON file.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read board configuration: %w", err)
	}
	var dto jira.BoardConfigDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode board configuration %s: %w", path, err)
	}
	return New(dto), nil
}

// Kanban reports whether this is a kanban board.
func (b *Board) Kanban() bool {
	return b.Type == TypeKanban
}

// Scrum reports whether this is a scrum board.
func (b *Board) Scrum() bool {
	return b.Type == TypeScrum
}

// ColumnIndexOf returns the visible column holding the status, or -1 when the status is not visible.
// With malformed data that maps a status twice, the leftmost column wins.
func (b *Board) ColumnIndexOf(statusID int) int {
	for i, c := range b.VisibleColumns {
		if c.Contains(statusID) {
			return i
		}
	}
	return -1
}

// ColumnIndexByName returns the index of the visible column with that name, or -1.
func (b *Board) ColumnIndexByName(name string) int {
	for i, c := range b.VisibleColumns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// StatusIDsInOrRightOfColumn returns every status id mapped to the named column or any column right of it.
func (b *Board) StatusIDsInOrRightOfColumn(name string) ([]int, error) {
	idx := b.ColumnIndexByName(name)
	if idx < 0 {
		names := make([]string, 0, len(b.VisibleColumns))
		for _, c := range b.VisibleColumns {
			names = append(names, c.Name)
		}
		return nil, fmt.Errorf("no visible column named %q on board %d, expected one of %v", name, b.ID, names)
	}

	var ids []int
	for _, c := range b.VisibleColumns[idx:] {
		ids = append(ids, c.StatusIDs...)
	}
	return ids, nil
}

// MappedStatusIDs returns every status id visible on the board, deduplicated.
func (b *Board) MappedStatusIDs() []int {
	seen := make(map[int]bool)
	var ids []int
	for _, c := range b.VisibleColumns {
		for _, id := range c.StatusIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}
