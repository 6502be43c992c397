package report

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/target/scriptcheck/internal/domain/model"
)

// ArtifactContentType is the media type of the rendered report.
const ArtifactContentType = "text/plain; charset=utf-8"

const (
	descriptionWidth = 60
	measureWidth     = 48
)

// Render writes the human-readable report: an executive summary, the
// findings grouped by scene and a checklist of every referenced measure.
func Render(r *model.SecurityReport) (out string, err error) {
	if r == nil {
		return "", errors.New("report is nil")
	}
	defer func() {
		if p := recover(); p != nil {
			out, err = "", fmt.Errorf("render report: %v", p)
		}
	}()

	var b strings.Builder
	b.WriteString("SAFETY REPORT\n")
	fmt.Fprintf(&b, "Project: %s | Format: %s | Created: %s\n",
		r.ProjectID, strings.ToUpper(string(r.ScriptFormat)), r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	if title := metadataTitle(r.Metadata); title != "" {
		fmt.Fprintf(&b, "Title: %s\n", title)
	}

	b.WriteString("\nEXECUTIVE SUMMARY\n")
	fmt.Fprintf(&b, "%d safety risks identified: %d critical, %d high, %d medium, %d low, %d info.\n\n",
		r.TotalFindings,
		r.RiskSummary[model.RiskCritical], r.RiskSummary[model.RiskHigh], r.RiskSummary[model.RiskMedium],
		r.RiskSummary[model.RiskLow], r.RiskSummary[model.RiskInfo])
	b.WriteString(summaryTable(r.RiskSummary))
	b.WriteString("\n")

	b.WriteString("\nFINDINGS BY SCENE\n")
	if len(r.Findings) == 0 {
		b.WriteString("No findings.\n")
	}
	for _, group := range groupByScene(r.Findings) {
		fmt.Fprintf(&b, "\nScene %s (%d findings)\n", group.scene, len(group.findings))
		b.WriteString(findingsTable(group.findings))
		b.WriteString("\n")
	}

	b.WriteString("\nMEASURES CHECKLIST\n")
	if todo := measuresTable(r.Findings); todo != "" {
		b.WriteString(todo)
		b.WriteString("\n")
	} else {
		b.WriteString("No measures required.\n")
	}

	fmt.Fprintf(&b, "\nEngine v%v | Taxonomy v%v | Processing time: %.1fs\n",
		r.Metadata["engine_version"], r.Metadata["taxonomy_version"], r.ProcessingTimeSeconds)
	return b.String(), nil
}

// Artifact renders r and returns it base64 encoded.
func Artifact(r *model.SecurityReport) (string, error) {
	s, err := Render(r)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(s)), nil
}

// metadataTitle reads the title from freshly built metadata (*string) or
// metadata decoded from JSON (string).
func metadataTitle(md map[string]any) string {
	switch t := md["title"].(type) {
	case string:
		return t
	case *string:
		if t != nil {
			return *t
		}
	}
	return ""
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	return tw
}

func summaryTable(summary map[model.RiskLevel]int) string {
	tw := newTable()
	tw.AppendHeader(table.Row{"Severity", "Count"})
	for _, l := range model.RiskLevels() {
		tw.AppendRow(table.Row{strings.ToUpper(string(l)), summary[l]})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	return tw.Render()
}

type sceneGroup struct {
	scene    string
	findings []model.Finding
}

// groupByScene orders scenes numerically; non-numeric scene numbers sort last.
func groupByScene(findings []model.Finding) []sceneGroup {
	idx := make(map[string]int)
	var groups []sceneGroup
	for _, f := range findings {
		scene := f.SceneNumber
		if scene == "" {
			scene = "?"
		}
		i, ok := idx[scene]
		if !ok {
			i = len(groups)
			idx[scene] = i
			groups = append(groups, sceneGroup{scene: scene})
		}
		groups[i].findings = append(groups[i].findings, f)
	}
	sort.SliceStable(groups, func(i, j int) bool { return sceneOrder(groups[i].scene) < sceneOrder(groups[j].scene) })
	return groups
}

func sceneOrder(scene string) int {
	if n, err := strconv.Atoi(scene); err == nil {
		return n
	}
	return 999
}

func findingsTable(findings []model.Finding) string {
	tw := newTable()
	tw.AppendHeader(table.Row{"Severity", "Class", "Rule", "L x I", "Description / Recommendation"})
	for _, f := range findings {
		detail := f.Description
		if f.Recommendation != "" {
			detail += "\nRecommendation: " + f.Recommendation
		}
		for _, m := range f.Measures {
			detail += fmt.Sprintf("\n-> %s: %s (%s, %s)", m.Code, m.Title, m.Responsible, m.Due)
		}
		tw.AppendRow(table.Row{
			strings.ToUpper(string(f.RiskLevel)),
			f.RiskClass,
			f.RuleID,
			fmt.Sprintf("%d x %d", f.Likelihood, f.Impact),
			detail,
		})
		tw.AppendSeparator()
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, WidthMax: descriptionWidth, WidthMaxEnforcer: text.WrapSoft},
	})
	return tw.Render()
}

// measuresTable lists each measure code once, sorted by code.
func measuresTable(findings []model.Finding) string {
	measures := make(map[string]model.Measure)
	for _, f := range findings {
		for _, m := range f.Measures {
			if m.Code == "" {
				continue
			}
			if _, seen := measures[m.Code]; !seen {
				measures[m.Code] = m
			}
		}
	}
	if len(measures) == 0 {
		return ""
	}
	codes := make([]string, 0, len(measures))
	for c := range measures {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	tw := newTable()
	tw.AppendHeader(table.Row{"Done", "Code", "Measure", "Responsible", "Due"})
	for _, c := range codes {
		m := measures[c]
		tw.AppendRow(table.Row{"[ ]", m.Code, m.Title, m.Responsible, m.Due})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, WidthMax: measureWidth, WidthMaxEnforcer: text.WrapSoft},
	})
	return tw.Render()
}
