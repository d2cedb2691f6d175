package dataset

import "fmt"

// EmptyDatasetError means a dataset directory had no fragment files.
type EmptyDatasetError struct {
	Dir string
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("no %s files found in %s", FragmentExt, e.Dir)
}

// LoadError wraps a failure to open or decode a fragment.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to read parquet file(s) %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
