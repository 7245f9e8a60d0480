package formatting

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"mealmcp/internal/pantry"
)

// newTable creates a table with the standard styling.
func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// emptyMessage writes the standard "nothing here" line.
func emptyMessage(w io.Writer, message string) {
	fmt.Fprintf(w, "%s\n", text.FgYellow.Sprint(message))
}

// RenderRecipes writes the recipe list as a table.
func RenderRecipes(w io.Writer, recipes []pantry.Recipe) {
	if len(recipes) == 0 {
		emptyMessage(w, "No recipes found")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"ID", "NAME", "TIME", "RATING", "INGREDIENTS"})
	for _, r := range recipes {
		rating := "-"
		if r.Rating != nil {
			rating = fmt.Sprintf("%d/5", *r.Rating)
		}
		t.AppendRow(table.Row{
			r.ShortID, r.Name,
			fmt.Sprintf("%d min", r.TimeMinutes),
			rating, len(r.Ingredients),
		})
	}
	t.Render()
}

// RenderStock writes current pantry stock as a table, sorted by item
// and unit.
func RenderStock(w io.Writer, contents map[string]map[string]float64) {
	if len(contents) == 0 {
		emptyMessage(w, "Pantry is empty")
		return
	}

	names := make([]string, 0, len(contents))
	for name := range contents {
		names = append(names, name)
	}
	sort.Strings(names)

	t := newTable(w)
	t.AppendHeader(table.Row{"ITEM", "QUANTITY", "UNIT"})
	for _, name := range names {
		units := make([]string, 0, len(contents[name]))
		for unit := range contents[name] {
			units = append(units, unit)
		}
		sort.Strings(units)
		for _, unit := range units {
			t.AppendRow(table.Row{name, contents[name][unit], unit})
		}
	}
	t.Render()
}

// RenderPlan writes a meal plan as a table.
func RenderPlan(w io.Writer, plan []pantry.MealPlanEntry) {
	if len(plan) == 0 {
		emptyMessage(w, "No meals planned this week")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"DATE", "RECIPE"})
	for _, entry := range plan {
		t.AppendRow(table.Row{entry.Date, entry.Recipe})
	}
	t.Render()
}

// RenderGroceries writes a grocery list as a table.
func RenderGroceries(w io.Writer, list []pantry.GroceryItem) {
	if len(list) == 0 {
		emptyMessage(w, "Nothing to buy")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"ITEM", "QUANTITY", "UNIT"})
	for _, item := range list {
		t.AppendRow(table.Row{item.Name, item.Quantity, item.Unit})
	}
	t.Render()
}
