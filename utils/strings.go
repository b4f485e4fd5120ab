package utils

import (
	"net"
	"strconv"
	"unsafe"
)

func JoinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// BytesToString converts without copying. The caller must not reuse the
// backing slice afterwards.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return *(*string)(unsafe.Pointer(&b))
}
