package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CSVParser parses seed facts from CSV format.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed seed facts.
// Expected columns: kind, name, value, aliases, day.
// Aliases are separated with "|" inside the cell.
func (p *CSVParser) Parse(r io.Reader) ([]SeedFact, error) {
	reader := csv.NewReader(r)

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[col] = i
	}

	requiredCols := []string{"kind", "name"}
	for _, col := range requiredCols {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return colIndex, nil
}

// readRecords reads all data rows and converts them to SeedFacts.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]SeedFact, error) {
	var facts []SeedFact
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		fact, err := p.parseRecord(record, colIndex, lineNum)
		if err != nil {
			return nil, err
		}
		facts = append(facts, fact)
	}

	return facts, nil
}

// parseRecord converts a CSV record to a SeedFact.
func (p *CSVParser) parseRecord(record []string, colIndex map[string]int, lineNum int) (SeedFact, error) {
	fact := SeedFact{
		Kind:    getColumn(record, colIndex, "kind"),
		Name:    getColumn(record, colIndex, "name"),
		Value:   getColumn(record, colIndex, "value"),
		LineNum: lineNum,
	}

	if aliases := getColumn(record, colIndex, "aliases"); aliases != "" {
		for _, a := range strings.Split(aliases, "|") {
			a = strings.TrimSpace(a)
			if a != "" {
				fact.Aliases = append(fact.Aliases, a)
			}
		}
	}

	dayStr := getColumn(record, colIndex, "day")
	if dayStr != "" {
		day, err := strconv.Atoi(dayStr)
		if err != nil {
			return SeedFact{}, fmt.Errorf("line %d: invalid day value %q: %w", lineNum, dayStr, err)
		}
		fact.Day = day
	}

	return fact, nil
}

// getColumn safely retrieves a column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return record[idx]
	}
	return ""
}
