package utils

// ClearOrResetMap 根据 map 当前长度判断是清空还是重新分配
// - m: 待清理的 map
// - maxLen: 超过这个长度就重新分配
// - initCap: 初始容量，用于重新分配
func ClearOrResetMap[K comparable, V any](m *map[K]V, maxLen, initCap int) {
	n := len(*m)
	if n == 0 {
		return
	}

	if n > maxLen {
		*m = make(map[K]V, initCap) // 容量过大，重新分配新空间，释放旧内存
	} else {
		clear(*m) // 容量适中，直接清空复用内存
	}
}
