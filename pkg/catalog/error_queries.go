package catalog

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/SaiNageswarS/NurixLearn/pkg/models"
	"github.com/SaiNageswarS/NurixLearn/pkg/persistence"
)

const (
	DefaultErrorLogLimit = 100
	MaxErrorLogLimit     = 1000
)

// ErrorLogFilter selects error logs across executions. Empty fields match everything.
type ErrorLogFilter struct {
	Severity models.Severity    `query:"severity" validate:"omitempty,oneof=low medium high critical"`
	Status   models.ErrorStatus `query:"status" validate:"omitempty,oneof=open resolved ignored"`
	Source   string             `query:"source"`
	Skip     int                `query:"skip" validate:"gte=0"`
	Limit    int                `query:"limit" validate:"gte=0,lte=1000"`
}

func (f ErrorLogFilter) matches(l *models.ErrorLog) bool {
	return (f.Severity == "" || l.Severity == f.Severity) &&
		(f.Status == "" || l.Status == f.Status) &&
		(f.Source == "" || l.Source == f.Source)
}

// ErrorStatistics counts every persisted error log.
type ErrorStatistics struct {
	TotalErrors int                        `json:"total_errors"`
	BySeverity  map[models.Severity]int    `json:"by_severity"`
	ByStatus    map[models.ErrorStatus]int `json:"by_status"`
	BySource    map[string]int             `json:"by_source"`
}

func allErrorLogs(ctx context.Context, store persistence.Store) ([]*models.ErrorLog, error) {
	logs, err := persistence.ListJSON[models.ErrorLog](ctx, store, persistence.Prefix(errorCollection))
	if err != nil {
		return nil, fmt.Errorf("failed to list error logs: %w", err)
	}

	return logs, nil
}

// ListErrorLogs returns the logs matching filter, newest first, after skipping filter.Skip and
// keeping at most filter.Limit (DefaultErrorLogLimit when zero).
func ListErrorLogs(ctx context.Context, store persistence.Store, filter ErrorLogFilter) ([]models.ErrorLog, error) {
	if err := inputValidator().Struct(filter); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	limit := filter.Limit
	if limit == 0 {
		limit = DefaultErrorLogLimit
	}

	logs, err := allErrorLogs(ctx, store)
	if err != nil {
		return nil, err
	}

	matched := make([]models.ErrorLog, 0, len(logs))
	for _, l := range logs {
		if filter.matches(l) {
			matched = append(matched, *l)
		}
	}

	slices.SortStableFunc(matched, func(a, b models.ErrorLog) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	if filter.Skip >= len(matched) {
		return []models.ErrorLog{}, nil
	}

	matched = matched[filter.Skip:]
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func ErrorStats(ctx context.Context, store persistence.Store) (*ErrorStatistics, error) {
	logs, err := allErrorLogs(ctx, store)
	if err != nil {
		return nil, err
	}

	stats := &ErrorStatistics{
		TotalErrors: len(logs),
		BySeverity:  map[models.Severity]int{},
		ByStatus:    map[models.ErrorStatus]int{},
		BySource:    map[string]int{},
	}

	for _, l := range logs {
		stats.BySeverity[l.Severity]++
		stats.ByStatus[l.Status]++
		stats.BySource[l.Source]++
	}

	return stats, nil
}
