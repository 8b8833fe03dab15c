// Package recognize wraps the text-recognition engines that convert one staged
// file into plain text.
package recognize

import "context"

// Recognizer extracts text from the file at path. Implementations are blocking
// and CPU-bound; callers are expected to invoke them off the request path.
type Recognizer interface {
	Recognize(ctx context.Context, path string) (string, error)
}

// Func adapts a plain function to the Recognizer interface.
type Func func(ctx context.Context, path string) (string, error)

// Recognize calls f.
func (f Func) Recognize(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}
