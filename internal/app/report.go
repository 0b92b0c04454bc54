package app

import (
	"fmt"
	"strings"

	"sitewatch-parser/internal/aggregate"
	"sitewatch-parser/internal/storage"
)

// Тексты ответов.
const (
	MsgStart = "Hello! Please upload an Excel file with website data, or use /get_data to get all available information. " +
		"Use /average_price to get the average product price for each site."
	MsgInvalidFile    = "Please upload a valid Excel file."
	MsgProcessFileErr = "Error processing Excel file: %v"
	MsgNoRows         = "The uploaded file contains no rows."
	MsgSaveWarning    = "Warning: results were not saved: %v"
	MsgNoData         = "No information available in the database."
	MsgNoAverages     = "No average prices found."

	HeaderData     = "Available information:"
	HeaderUnsaved  = "Unsaved from last upload:"
	HeaderAverages = "Average prices per site:"
)

// renderUpload выводит по строке "name: value" на запись.
func renderUpload(u *Upload) string {
	if len(u.Records) == 0 {
		return MsgNoRows
	}
	lines := make([]string, 0, len(u.Records)+1)
	for _, rec := range u.Records {
		lines = append(lines, rec.Name+": "+rec.Value)
	}
	if !u.Saved() {
		lines = append(lines, fmt.Sprintf(MsgSaveWarning, u.SaveErr))
	}
	return strings.Join(lines, "\n")
}

func renderRecord(rec storage.Record) string {
	return fmt.Sprintf("Name: %s\nURL: %s\nXPath: %s\nData: %s", rec.Name, rec.URL, rec.Expression, rec.Value)
}

func renderRecords(records []storage.Record) string {
	blocks := make([]string, 0, len(records))
	for _, rec := range records {
		blocks = append(blocks, renderRecord(rec))
	}
	return strings.Join(blocks, "\n\n")
}

// renderData собирает ответ на запрос данных; unsaved идут после сохранённых.
func renderData(saved, unsaved []storage.Record) string {
	if len(saved) == 0 && len(unsaved) == 0 {
		return MsgNoData
	}

	var b strings.Builder
	b.WriteString(HeaderData)
	b.WriteString("\n")
	if len(saved) > 0 {
		b.WriteString(renderRecords(saved))
	}
	if len(unsaved) > 0 {
		if len(saved) > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(HeaderUnsaved)
		b.WriteString("\n")
		b.WriteString(renderRecords(unsaved))
	}
	return b.String()
}

func renderAverages(averages []aggregate.Average) string {
	if len(averages) == 0 {
		return MsgNoAverages
	}
	blocks := make([]string, 0, len(averages))
	for _, a := range averages {
		blocks = append(blocks, fmt.Sprintf("Name: %s\nAverage Price: %s", a.Name, a.Formatted()))
	}
	return HeaderAverages + "\n" + strings.Join(blocks, "\n\n")
}
