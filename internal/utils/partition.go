package utils

// Truncate 保留前 limit 个元素，多余部分直接丢弃。limit <= 0 时返回空切片。
func Truncate[T any](items []T, limit int) []T {
	if limit <= 0 {
		return items[:0]
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

// Chunk 按顺序切分为若干段，每段最多 size 个元素；size < 1 视为 1。
// 返回的子切片共享底层数组，调用方不应修改。
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size < 1 {
		size = 1
	}

	chunks := make([][]T, 0, CalcChunkCount(len(items), size))
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[i:end:end])
	}
	return chunks
}

// CalcChunkCount 计算 total 个元素按 size 切分后的段数（向上取整）
func CalcChunkCount(total, size int) int {
	if total <= 0 {
		return 0
	}
	if size < 1 {
		size = 1
	}
	return (total + size - 1) / size
}
