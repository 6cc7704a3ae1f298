package main

import (
	"fmt"

	"github.com/pennwright/saga/internal/domain/entities"
)

// printReport renders a validation report, worst violations first.
func printReport(report *entities.ValidationReport) {
	if report == nil {
		return
	}
	if len(report.Violations) == 0 {
		fmt.Printf("Chapter %d: no violations, %d fact(s) proposed\n",
			report.ChapterIndex, len(report.Proposed))
		return
	}

	fmt.Printf("Chapter %d: %d violation(s), %d fact(s) proposed\n",
		report.ChapterIndex, len(report.Violations), len(report.Proposed))
	for _, v := range report.Summary() {
		entity := v.EntityKey
		if entity == "" {
			entity = "-"
		}
		fmt.Printf("  [%s] %s (%s): %s\n", v.Severity, v.Category, entity, v.Detail)
		if v.Evidence.Excerpt != "" {
			fmt.Printf("      ...%s...\n", v.Evidence.Excerpt)
		}
	}
	for _, link := range report.Identities {
		fmt.Printf("  identity: %s revealed to be %s\n", link.OtherKey, link.CanonicalKey)
	}
}
