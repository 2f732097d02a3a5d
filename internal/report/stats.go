package report

import (
	"strings"

	"github.com/AlonsoFi/BIOCHAIN-v2/internal/model"
)

// buildStatistics summarizes a selection.
func buildStatistics(selection []model.StudyRecord, dateRange string) model.ReportStatistics {
	biomarkers := make(map[string]bool)
	var labs []string
	seenLabs := make(map[string]bool)

	for _, rec := range selection {
		for _, bm := range rec.Biomarkers {
			biomarkers[bm] = true
		}
		if !seenLabs[rec.LabID] {
			seenLabs[rec.LabID] = true
			labs = append(labs, rec.LabID)
		}
	}
	if labs == nil {
		labs = []string{}
	}

	return model.ReportStatistics{
		TotalStudies:    len(selection),
		TotalBiomarkers: len(biomarkers),
		Laboratories:    labs,
		DateRange:       dateRange,
	}
}

// buildCharts synthesizes the chart descriptors the frontend renders:
// a bar chart of biomarker occurrence and a pie chart of per-lab counts.
func buildCharts(selection []model.StudyRecord) []model.Chart {
	bmCounts := make(map[string]int)
	var bmOrder []string
	labCounts := make(map[string]int)
	var labOrder []string

	for _, rec := range selection {
		for _, bm := range rec.Biomarkers {
			name := biomarkerName(bm)
			if _, seen := bmCounts[name]; !seen {
				bmOrder = append(bmOrder, name)
			}
			bmCounts[name]++
		}
		if _, seen := labCounts[rec.LabID]; !seen {
			labOrder = append(labOrder, rec.LabID)
		}
		labCounts[rec.LabID]++
	}

	bar := model.Chart{Type: "bar", Title: "Biomarker Distribution", Labels: []string{}, Values: []int{}}
	for _, name := range bmOrder {
		bar.Labels = append(bar.Labels, name)
		bar.Values = append(bar.Values, bmCounts[name])
	}

	pie := model.Chart{Type: "pie", Title: "Studies per Laboratory", Labels: []string{}, Values: []int{}}
	for _, lab := range labOrder {
		pie.Labels = append(pie.Labels, lab)
		pie.Values = append(pie.Values, labCounts[lab])
	}

	return []model.Chart{bar, pie}
}

// biomarkerName strips the measurement from a "Name: value unit" entry.
func biomarkerName(bm string) string {
	if idx := strings.Index(bm, ":"); idx > 0 {
		return strings.TrimSpace(bm[:idx])
	}
	return bm
}
