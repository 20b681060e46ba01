// Package dataprocessing loads tabular datasets and produces fixed-shape
// reports about them.
//
// # Components
//
//  1. DataProcessor: loads a CSV or XLSX file and reports on it. ProcessData is
//     a pass-through.
//  2. AdvancedProcessor: context-aware processing of large datasets with
//     timing metrics and an analytics report including a data quality score.
//
// # Usage
//
//	p := dataprocessing.NewDataProcessor(logger)
//	if !p.LoadData("data/analytics.csv") {
//	    // the failure has already been logged
//	}
//	report := p.GenerateReport()
//
// LoadData never returns an error: failures are logged and reported as false.
// Every other operation returns explicit errors.
package dataprocessing
