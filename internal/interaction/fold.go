package interaction

import "context"

// Fold is the caller-supplied function that advances one step of an
// interaction: given the current accumulator and a newly received item,
// it returns the updated accumulator and an optional reply to forward to
// the server as the payload of the next Next event. A nil reply sends an
// empty Next. A non-nil error is fatal and surfaces to the caller as
// mould.Interrupted.
type Fold[T, I, O any] func(ctx context.Context, acc T, item I) (T, *O, error)
