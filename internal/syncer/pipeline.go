package syncer

import "context"

// Source names where a loaded value came from.
type Source string

const (
	SourceRemote  Source = "remote"
	SourceCache   Source = "cache"
	SourceDefault Source = "default"
)

// Outcome is the result of one load: the value, its source and every error
// met before it was found.
type Outcome[T any] struct {
	Value  T
	Source Source
	Errors []error
}

// Resolve tries the remote, then the cache, then the fallback. A step that
// returns ok=false without an error simply had nothing.
func Resolve[T any](
	ctx context.Context,
	fetchRemote func(context.Context) (T, error),
	readCache func() (T, bool, error),
	fallback func() T,
) Outcome[T] {
	var out Outcome[T]
	if fetchRemote != nil {
		v, err := fetchRemote(ctx)
		if err == nil {
			out.Value, out.Source = v, SourceRemote
			return out
		}
		out.Errors = append(out.Errors, err)
	}
	if readCache != nil {
		v, ok, err := readCache()
		if err != nil {
			out.Errors = append(out.Errors, err)
		} else if ok {
			out.Value, out.Source = v, SourceCache
			return out
		}
	}
	out.Value, out.Source = fallback(), SourceDefault
	return out
}
