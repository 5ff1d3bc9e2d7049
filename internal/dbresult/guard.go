package dbresult

// Handle runs op and returns its result untouched. A panic raised inside op
// is recovered and reported as an unexpected failure, so no operation lets
// it reach the caller.
func Handle[T any](fallback string, op func() Result[T]) (res Result[T]) {
	defer func() {
		if v := recover(); v != nil {
			res = Result[T]{Error: MessageOf(v, fallback), Kind: KindUnexpected}
		}
	}()
	return op()
}
