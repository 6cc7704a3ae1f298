package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pennwright/saga/internal/domain/entities"
	"github.com/pennwright/saga/internal/domain/ports"
	"github.com/pennwright/saga/internal/domain/services"
)

// ExportFormats lists the supported export formats.
var ExportFormats = []string{"markdown", "json", "csv"}

// ExportHandler renders the committed ledger for human readers.
type ExportHandler struct {
	ledger ports.Ledger
}

// NewExportHandler creates a new export handler.
func NewExportHandler(ledger ports.Ledger) *ExportHandler {
	return &ExportHandler{ledger: ledger}
}

// Handle writes the full ledger to w in the requested format. Markdown
// produces the setting manual: current canon per kind plus per-entity
// history; json and csv dump the raw records.
func (h *ExportHandler) Handle(ctx context.Context, w io.Writer, format string) error {
	facts, err := h.ledger.ListFacts(ctx)
	if err != nil {
		return fmt.Errorf("listing facts: %w", err)
	}
	if len(facts) == 0 {
		return fmt.Errorf("no facts found to export")
	}

	switch format {
	case "markdown", "md":
		return h.formatMarkdown(ctx, w, facts)
	case "json":
		return formatJSON(w, facts)
	case "csv":
		return formatCSV(w, facts)
	default:
		return fmt.Errorf("invalid format %q, valid formats: %v", format, ExportFormats)
	}
}

// formatMarkdown writes the setting manual.
func (h *ExportHandler) formatMarkdown(ctx context.Context, w io.Writer, facts []entities.FactRecord) error {
	day, err := h.ledger.CurrentDay(ctx)
	if err != nil {
		return fmt.Errorf("loading current day: %w", err)
	}
	highest, err := services.HighestCommitted(ctx, h.ledger)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "# Setting Manual\n\nChapters committed: %d. Story day: %d. Records: %d.\n",
		highest, day, len(facts))

	byKind := make(map[entities.EntityKind][]entities.FactRecord)
	for _, f := range facts {
		byKind[f.Kind] = append(byKind[f.Kind], f)
	}

	for _, kind := range entities.Kinds {
		records := byKind[kind]
		if len(records) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n## %s\n\n", titleFor(kind))
		fmt.Fprint(w, "| Entity | Value | Chapter | Aliases |\n")
		fmt.Fprint(w, "|--------|-------|---------|--------|\n")
		for _, f := range records {
			fmt.Fprintf(w, "| %s | %s | %d | %s |\n",
				escapeMarkdown(f.EntityKey),
				escapeMarkdown(f.Value),
				f.ChapterIndex,
				escapeMarkdown(strings.Join(f.AliasesSeen, ", ")),
			)
		}
	}
	return nil
}

func formatJSON(w io.Writer, facts []entities.FactRecord) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(facts)
}

func formatCSV(w io.Writer, facts []entities.FactRecord) error {
	writer := csv.NewWriter(w)

	header := []string{"id", "kind", "entity_key", "value", "day", "chapter_index", "aliases", "tags"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, f := range facts {
		tags := make([]string, len(f.Tags))
		for i, t := range f.Tags {
			tags[i] = string(t)
		}
		row := []string{
			f.ID,
			string(f.Kind),
			f.EntityKey,
			f.Value,
			strconv.Itoa(f.Day),
			strconv.Itoa(f.ChapterIndex),
			strings.Join(f.AliasesSeen, "|"),
			strings.Join(tags, "|"),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func titleFor(kind entities.EntityKind) string {
	switch kind {
	case entities.KindCharacter:
		return "Characters"
	case entities.KindFaction:
		return "Factions"
	case entities.KindLocation:
		return "Locations"
	case entities.KindPowerLevel:
		return "Power Levels"
	case entities.KindConstitution:
		return "Constitutions"
	case entities.KindItem:
		return "Items"
	case entities.KindStoryTime:
		return "Story Calendar"
	}
	return string(kind)
}

func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return s
}
