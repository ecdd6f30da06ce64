package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/claude/liftcoach/internal/models"
	"github.com/claude/liftcoach/internal/session"
)

// Set row glyphs convey state without relying on color alone.
const (
	glyphEmpty  = "○"
	glyphLogged = "●"
	glyphDone   = "✓"
	glyphAudit  = "!"
)

var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	badgeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(colorYellow).Padding(0, 1)
	targetStyle = lipgloss.NewStyle().Foreground(colorGreen)
	warnStyle   = lipgloss.NewStyle().Foreground(colorRed)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
)

const nameColumn = 28

// pad fits s into a column of display width w.
func pad(s string, w int) string {
	return runewidth.FillRight(runewidth.Truncate(s, w, "…"), w)
}

func printWorkout(p *models.Plan, w models.Workout) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("%s: %s (day %d)", p.Name, w.SessionType, w.DayIndex)))
	for _, ex := range w.Exercises {
		fmt.Printf("  %d. %s %s\n", ex.Sequence, pad(ex.Name, nameColumn), dimStyle.Render(prescription(ex)))
	}
}

func printPlan(p *models.Plan) {
	fmt.Println(headerStyle.Render(fmt.Sprintf("%s (#%d)", p.Name, p.ID)))
	if p.StartDate != "" {
		fmt.Printf("Starts %s, %d days a week\n", p.StartDate, p.ScheduleDays)
	}
	if !p.OnboardingComplete() {
		fmt.Println(warnStyle.Render("Training days do not match the weekly schedule."))
	}
	for _, w := range p.Workouts {
		fmt.Println()
		printWorkout(p, w)
	}
}

func prescription(ex models.Exercise) string {
	var parts []string
	if ex.TargetSets != nil {
		parts = append(parts, fmt.Sprintf("%d sets", *ex.TargetSets))
	}
	if ex.TargetRepsMin != nil && ex.TargetRepsMax != nil {
		parts = append(parts, fmt.Sprintf("%d-%d reps", *ex.TargetRepsMin, *ex.TargetRepsMax))
	}
	if ex.StartingWeight != nil {
		parts = append(parts, "start "+num(*ex.StartingWeight))
	}
	return strings.Join(parts, ", ")
}

func printView(v session.View) {
	if v.Session == nil {
		fmt.Println("No session loaded.")
		return
	}
	title := fmt.Sprintf("Session %s, day %d", v.Session.ID, v.Session.DayIndex)
	fmt.Println(headerStyle.Render(title) + " " + badgeStyle.Render(v.State))
	if v.Skip {
		fmt.Println(warnStyle.Render("Skip confirmed: saving records this workout as skipped."))
	}
	if len(v.Missing) > 0 {
		fmt.Println(warnStyle.Render(fmt.Sprintf("Exercises at positions %v have no catalog id and block saving.", v.Missing)))
	}
	if len(v.Failures) > 0 {
		fmt.Println(dimStyle.Render("Some targets could not be loaded; logging still works."))
	}

	for i, card := range v.Cards {
		fmt.Println()
		line := fmt.Sprintf("%d. %s", i+1, pad(card.Exercise.Name, nameColumn))
		if card.Target != "" {
			line += " " + targetStyle.Render(card.Target)
		}
		fmt.Println(line)
		if card.NeedsStartingWeight {
			fmt.Println(warnStyle.Render(fmt.Sprintf("   enter a starting weight: liftcoach session weight %d <lb>", i+1)))
		}
		for j, r := range card.Rows {
			fmt.Printf("   %s set %d  %s\n", rowGlyph(r), j+1, rowFields(r))
		}
	}
}

func rowGlyph(r models.SetRow) string {
	g := glyphEmpty
	switch {
	case r.SetComplete:
		g = glyphDone
	case r.Reps != nil || r.RPE != nil || r.RestSeconds != nil:
		g = glyphLogged
	}
	if r.ManualAudit {
		g += glyphAudit
	}
	return g
}

func rowFields(r models.SetRow) string {
	return fmt.Sprintf("weight %s  reps %s  rpe %s  rest %s",
		optNum(r.Weight), optNum(r.Reps), optNum(r.RPE), optNum(r.RestSeconds))
}

func printHistory(records []models.SessionRecord) {
	if len(records) == 0 {
		fmt.Println("No sessions logged yet.")
		return
	}
	for _, r := range records {
		status := string(r.CompletionStatus)
		switch r.CompletionStatus {
		case models.StatusCompleted:
			status = targetStyle.Render(status)
		case models.StatusSkipped:
			status = dimStyle.Render(status)
		default:
			status = lipgloss.NewStyle().Foreground(colorYellow).Render(status)
		}
		fmt.Printf("#%-5d %s  %s  %d sets\n", r.ID, pad(r.PerformedAt, 20), status, len(r.SetLogs))
	}
}

func printSwapOptions(opts []models.SwapOption) {
	if len(opts) == 0 {
		fmt.Println("No replacement exercises available.")
		return
	}
	for _, o := range opts {
		fmt.Printf("%6d  %s %s\n", o.ID, pad(o.Name, nameColumn), dimStyle.Render(o.MovementPattern+" / "+o.PrimaryMuscle))
	}
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func optNum(f *float64) string {
	if f == nil {
		return "-"
	}
	return num(*f)
}
