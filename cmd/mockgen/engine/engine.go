package engine

import (
	"bufio"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"flowlens/internal/jira"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

type GeneratorConfig struct {
	Scenario     string
	Distribution string // "uniform" or "weibull"
	Count        int
	Now          time.Time
	Seed         uint64
}

type status struct {
	id       string
	name     string
	category string
}

var (
	open       = status{"10000", "Open", "new"}
	refinement = status{"10001", "Refinement", "new"}
	inProgress = status{"3", "In Progress", "indeterminate"}
	blocked    = status{"20", "Blocked", "indeterminate"}
	done       = status{"10002", "Done", "done"}
)

var allStatuses = []status{open, refinement, inProgress, blocked, done}

const timeLayout = "2006-01-02T15:04:05.000-0700"

// Generate builds Count issues arriving one per day and ending at Now. Each issue walks
// Open -> Refinement -> In Progress -> Done; "chaos" adds blocked stints and flags, "drift" slows down over time.
func Generate(cfg GeneratorConfig) []jira.IssueDTO {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	issues := make([]jira.IssueDTO, 0, cfg.Count)
	tArrival := cfg.Now.AddDate(0, 0, -cfg.Count)

	for i := 0; i < cfg.Count; i++ {
		key := fmt.Sprintf("MOCK-%d", i+1)
		arrival := tArrival.Add(time.Duration(i*24) * time.Hour)

		// 1. Determine Parameters
		k, lambda := 2.5, 9.5
		switch cfg.Scenario {
		case "chaos":
			k = 0.8
			if cfg.Distribution == "weibull" {
				lambda = 12.0
			}
		case "drift":
			ratio := float64(i) / float64(cfg.Count)
			k = 2.5 - (1.7 * ratio)
			lambda = 9.5 + (2.5 * ratio)
		}

		// 2. Sample Total Cycle Time (Duration)
		var totalDuration float64
		if cfg.Distribution == "weibull" {
			totalDuration = weibullSample(rng, k, lambda)
		} else {
			totalDuration = 6.0 + rng.Float64()*5.0
			if cfg.Scenario == "chaos" && rng.Float64() < 0.2 {
				totalDuration += 10 + rng.Float64()*15
			}
			if cfg.Scenario == "drift" && i > cfg.Count/2 {
				totalDuration *= 2.0
			}
		}

		// 3. Generate the history, dropping anything after Now
		b := newIssueBuilder(key, arrival, cfg.Now)
		b.move(arrival, totalDuration*0.15, refinement)
		b.move(arrival, totalDuration*0.40, inProgress)
		if cfg.Scenario == "chaos" && rng.Float64() < 0.3 {
			b.move(arrival, totalDuration*0.55, blocked)
			b.move(arrival, totalDuration*0.75, inProgress)
		}
		if cfg.Scenario == "chaos" && rng.Float64() < 0.2 {
			b.flag(arrival, totalDuration*0.5, totalDuration*0.6)
		}
		b.move(arrival, totalDuration, done)

		issues = append(issues, b.dto)
	}

	return issues
}

type issueBuilder struct {
	dto     jira.IssueDTO
	current status
	now     time.Time
}

func newIssueBuilder(key string, created, now time.Time) *issueBuilder {
	return &issueBuilder{
		current: open,
		now:     now,
		dto: jira.IssueDTO{
			Key: key,
			Fields: &jira.FieldsDTO{
				Summary:   "Generated issue " + key,
				Created:   created.Format(timeLayout),
				Status:    statusDTO(open),
				Priority:  &jira.NamedDTO{ID: "3", Name: "Medium"},
				IssueType: &jira.IssueTypeDTO{ID: "10001", Name: "Story"},
			},
			Changelog: &jira.ChangelogDTO{},
		},
	}
}

func (b *issueBuilder) move(arrival time.Time, afterDays float64, to status) {
	at := arrival.Add(time.Duration(afterDays * 24 * float64(time.Hour)))
	if !at.Before(b.now) {
		return
	}
	b.add(at, jira.ItemDTO{Field: "status", From: b.current.id, FromString: b.current.name, To: to.id, ToString: to.name})
	b.current = to
	b.dto.Fields.Status = statusDTO(to)
	if to == done {
		b.dto.Fields.ResolutionDate = at.Format(timeLayout)
		b.dto.Fields.Resolution = &jira.NamedDTO{ID: "1", Name: "Fixed"}
		b.add(at, jira.ItemDTO{Field: "resolution", To: "1", ToString: "Fixed"})
	}
}

func (b *issueBuilder) flag(arrival time.Time, fromDays, toDays float64) {
	set := arrival.Add(time.Duration(fromDays * 24 * float64(time.Hour)))
	cleared := arrival.Add(time.Duration(toDays * 24 * float64(time.Hour)))
	if set.Before(b.now) {
		b.add(set, jira.ItemDTO{Field: "Flagged", ToString: "Impediment"})
	}
	if cleared.Before(b.now) {
		b.add(cleared, jira.ItemDTO{Field: "Flagged", FromString: "Impediment"})
	}
}

func (b *issueBuilder) add(at time.Time, item jira.ItemDTO) {
	histories := &b.dto.Changelog.Histories
	*histories = append(*histories, jira.HistoryDTO{
		ID:      strconv.Itoa(len(*histories) + 1),
		Created: at.Format(timeLayout),
		Items:   []jira.ItemDTO{item},
	})
}

func statusDTO(s status) *jira.StatusDTO {
	return &jira.StatusDTO{ID: s.id, Name: s.name, StatusCategory: jira.StatusCategoryDTO{Key: s.category}}
}

func weibullSample(rng *rand.Rand, k, lambda float64) float64 {
	u := rng.Float64()
	if u == 0 {
		u = 0.0001
	}
	// X = lambda * (-ln(1-u))^(1/k)
	return lambda * math.Pow(-math.Log(1.0-u), 1.0/k)
}

// Board returns the kanban board the generated issues move across.
func Board() jira.BoardConfigDTO {
	dto := jira.BoardConfigDTO{ID: 1, Name: "Mock board", Type: "kanban"}
	dto.ColumnConfig.Columns = []jira.ColumnDTO{
		{Name: "Backlog", Statuses: []jira.ColumnStatusDTO{{ID: open.id}}},
		{Name: "Refinement", Statuses: []jira.ColumnStatusDTO{{ID: refinement.id}}},
		{Name: "In Progress", Statuses: []jira.ColumnStatusDTO{{ID: inProgress.id}, {ID: blocked.id}}},
		{Name: "Done", Statuses: []jira.ColumnStatusDTO{{ID: done.id}}},
	}
	return dto
}

// Settings returns project settings matching the generated workflow.
func Settings() map[string]any {
	return map[string]any{
		"blocked_statuses":       []string{blocked.name},
		"stalled_statuses":       []string{},
		"stalled_threshold_days": 5,
		"flagged_means_blocked":  true,
		"cycletime": map[string]any{
			"start": map[string]any{"rule": "first_time_in_or_right_of_column", "values": []string{"In Progress"}},
			"stop":  map[string]any{"rule": "first_time_in_status_category", "values": []string{"done"}},
		},
	}
}

// Save writes issues/mock.json, board.json, statuses.json and settings.yaml under outDir.
func Save(outDir string, issues []jira.IssueDTO) error {
	if err := os.MkdirAll(filepath.Join(outDir, "issues"), 0755); err != nil {
		return err
	}

	statuses := make([]jira.StatusDTO, 0, len(allStatuses))
	for _, s := range allStatuses {
		statuses = append(statuses, *statusDTO(s))
	}

	search := jira.SearchResponse{MaxResults: len(issues), Total: len(issues), Issues: issues}
	if err := writeJSON(filepath.Join(outDir, "issues", "mock.json"), search); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(outDir, "board.json"), Board()); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(outDir, "statuses.json"), statuses); err != nil {
		return err
	}

	data, err := yaml.Marshal(Settings())
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return os.WriteFile(filepath.Join(outDir, "settings.yaml"), data, 0644)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return w.Flush()
}
