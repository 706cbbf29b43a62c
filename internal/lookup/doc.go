// Package lookup defines the core types, collaborator interfaces, and error
// taxonomy shared by the mapper, fetcher, extractor, worker, and dispatcher.
package lookup
