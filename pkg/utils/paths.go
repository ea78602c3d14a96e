package utils

import "strings"

// Basename returns the file name component of a slash-separated path.
func Basename(fullpath string) string {
	if i := strings.LastIndexByte(fullpath, '/'); i >= 0 {
		return fullpath[i+1:]
	}
	return fullpath
}

// Dirname returns the directory component of a slash-separated path.
func Dirname(fullpath string) string {
	if i := strings.LastIndexByte(fullpath, '/'); i >= 0 {
		return fullpath[:i]
	}
	return ""
}

// FindExtension returns the extension including the dot, or "" when the
// file has none.
func FindExtension(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case '/':
			return ""
		case '.':
			return s[i:]
		}
	}
	return ""
}

// ReplaceExtension changes (or appends) the file name extension.
func ReplaceExtension(fn, newext string) string {
	if ext := FindExtension(fn); ext != "" {
		fn = fn[:len(fn)-len(ext)]
	}
	return fn + newext
}

// HumanSize renders a byte count the way the file browser shows it.
func HumanSize(sz uint32) string {
	switch {
	case sz < 1024:
		return "1K"
	case sz < 1024*1024:
		return uitoa(sz>>10) + "K"
	default:
		return uitoa(sz>>20) + "M"
	}
}

func uitoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
