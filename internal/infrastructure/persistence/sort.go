package persistence

import (
	"strings"

	"github.com/schoolerp/backend/internal/domain/shared"
)

// SortSpec whitelists the columns a listing may be ordered by. Column names
// reach SQL verbatim, so nothing outside Fields is ever used.
type SortSpec struct {
	Fields     map[string]bool
	Default    string
	DefaultDir string // applied when the filter names neither column nor direction
}

// OrderClause resolves the filter's ordering into "column DIR"
func (s SortSpec) OrderClause(filter shared.Filter) string {
	field := strings.TrimSpace(filter.OrderBy)
	if !s.Fields[field] {
		field = s.Default
	}

	dir := strings.ToUpper(strings.TrimSpace(filter.OrderDir))
	switch {
	case dir == "ASC" || dir == "DESC":
	case filter.OrderBy == "" && filter.OrderDir == "" && s.DefaultDir != "":
		dir = strings.ToUpper(s.DefaultDir)
	default:
		dir = "DESC"
	}
	return field + " " + dir
}
