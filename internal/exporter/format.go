package exporter

import (
	"strconv"
)

// formatFloat renders v with the shortest exact representation.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
