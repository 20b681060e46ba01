// Package exporter writes datasets, metric tables and reports to disk.
//
// CSVWriter resolves relative paths against a base directory (normally the
// reports directory), creates parent directories, and can prefix a UTF-8 BOM
// so spreadsheet applications detect the encoding.
//
//	w := exporter.NewCSVWriter(paths.ReportsDir)
//	err := w.WriteDataset("processed.csv", d, true)
//	err = w.WriteJSON("report.json", report)
package exporter
