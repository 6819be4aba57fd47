// Package views renders the dashboard pages.
//
// The pages are written as .templ files; run `templ generate` after editing
// them to refresh the *_templ.go files.
package views

import "strconv"

const dashboardTitle = "World Bank Land Use Dashboard"

// chartID is the id of the div the i-th figure is drawn into.
func chartID(i int) string {
	return "chart-" + strconv.Itoa(i)
}
