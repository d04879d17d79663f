package storage

// ChunkRows splits rows into consecutive batches of at most chunkSize rows,
// further capped so that one batch never binds more than maxParams
// placeholders (rows * columns). maxParams <= 0 disables that cap.
func ChunkRows(rows [][]any, chunkSize, columns, maxParams int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	size := chunkSize
	if size <= 0 {
		size = len(rows)
	}
	if maxParams > 0 && columns > 0 {
		if limit := maxParams / columns; limit < size {
			size = limit
		}
	}
	if size < 1 {
		size = 1
	}

	out := make([][][]any, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
