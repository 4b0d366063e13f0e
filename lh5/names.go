package lh5

import (
	"sort"
	"strings"
)

const (
	unitSeparator = "_in_"
	tmpSuffix     = "__tmp"
)

// SplitUnits splits a column name at the last "_in_" into the LGDO name
// and its units. The producer cannot write "/" in names and stores it as
// a backslash, which is turned back into "/". ok is false when the name
// carries no units.
func SplitUnits(column string) (name, units string, ok bool) {
	i := strings.LastIndex(column, unitSeparator)
	if i < 0 {
		return column, "", false
	}
	units = strings.ReplaceAll(column[i+len(unitSeparator):], `\`, "/")
	return column[:i], units, true
}

// JoinUnits is the inverse of SplitUnits.
func JoinUnits(name, units string) string {
	if units == "" {
		return name
	}
	return name + unitSeparator + strings.ReplaceAll(units, "/", `\`)
}

// TableDatatype returns the table{...} datatype listing the given column
// names, without units, in sorted order.
func TableDatatype(columns []string) string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i], _, _ = SplitUnits(c)
	}
	return "table{" + sortedList(names) + "}"
}

// StructDatatype returns the struct{...} datatype of a group with the given
// members in sorted order.
func StructDatatype(members []string) string {
	return "struct{" + sortedList(members) + "}"
}

// ArrayDatatype returns the datatype of a one-dimensional column.
func ArrayDatatype(class string) string {
	return "array<1>{" + class + "}"
}

// ParseTableDatatype returns the column names listed in a table{...}
// datatype. ok is false if s is not a table datatype.
func ParseTableDatatype(s string) (columns []string, ok bool) {
	if !strings.HasPrefix(s, "table{") || !strings.HasSuffix(s, "}") {
		return nil, false
	}
	inner := s[len("table{") : len(s)-1]
	if inner == "" {
		return []string{}, true
	}
	return strings.Split(inner, ","), true
}

func sortedList(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func hasTmpSuffix(name string) bool {
	return strings.Contains(name, tmpSuffix)
}
