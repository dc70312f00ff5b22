package scraper

import "fmt"

// ErrorKind classifies why a fetch failed.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota + 1
	KindHTTPStatus
	KindNetwork
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http_status"
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// FetchError is returned by fetchers and adapters for every failed retrieval.
type FetchError struct {
	Kind ErrorKind
	Code int // HTTP status, set for KindHTTPStatus
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Code)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }
