// Package sourcetext resolves a corpus source file to its full text, the
// side channel the context assembler slices excerpts from.
package sourcetext

import "context"

// Resolver fetches the full text of one source file.
type Resolver interface {
	Resolve(ctx context.Context, sourceFile string) (string, error)
}
