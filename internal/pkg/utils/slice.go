package utils

// ClearSlice 清空 slice 中的元素引用并将长度归零，保留底层容量复用
func ClearSlice[T any](s *[]T) {
	if s == nil || len(*s) == 0 {
		return
	}

	clear(*s)
	*s = (*s)[:0]
}

// Reverse 原地反转 slice
func Reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
