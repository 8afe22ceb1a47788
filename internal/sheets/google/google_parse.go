package google

import (
	"fmt"
	"strconv"
	"strings"

	"financeiro/internal/core"
)

// header is the first row of every mirror sheet. Column A holds the expense
// id and is used to detect rows that were already written.
var header = []any{"ID", "Mes", "Descricao", "Valor", "Categoria", "Forma de pagamento", "Parcela", "Grupo", "Usuario"}

const lastColumn = "I"

func expenseRow(e core.Expense) []any {
	return []any{
		e.ID,
		e.Month.String(),
		e.Description,
		e.Value.String(),
		string(e.Category),
		string(e.PaymentMethod),
		fmt.Sprintf("%d/%d", e.CurrentInstallment, e.Installments),
		e.InstallmentGroup,
		string(e.UserID),
	}
}

// parseRowID reads the id cell as returned with UNFORMATTED_VALUE rendering.
func parseRowID(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t <= 0 || t != float64(int64(t)) {
			return 0, false
		}
		return int64(t), true
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil || id <= 0 {
			return 0, false
		}
		return id, true
	default:
		return 0, false
	}
}

// rowIDs collects the ids of the first column, skipping headers and blanks.
func rowIDs(values [][]interface{}) map[int64]bool {
	ids := make(map[int64]bool, len(values))
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		if id, ok := parseRowID(row[0]); ok {
			ids[id] = true
		}
	}
	return ids
}

// yearPrefixedName returns "<year> <base>" unless base already starts with a 4-digit year.
func yearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
