// Package files discovers dataset files in the data directory.
//
// Example usage:
//
//	discovery := files.NewDiscovery(paths.DataDir)
//	datasets, err := discovery.FindDatasets("")
//	latest, ok := files.GetLatestFile(datasets)
package files
