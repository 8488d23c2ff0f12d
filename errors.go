package groundrag

import "fmt"

// ErrEmbedding reports a failed embedding call, including which provider in a
// fallback chain produced it. Status carries the HTTP status code when the
// failure came from an API response, 0 otherwise.
type ErrEmbedding struct {
	Provider string
	Message  string
	Status   int
}

func (e *ErrEmbedding) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP reports a non-2xx response from a store or provider endpoint.
type ErrHTTP struct {
	Status int
	Body   string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
