package xhttp

import (
	"net/http"
	"strings"
)

// CopyHeader copies all headers from src into dst.
func CopyHeader(dst, src http.Header) {
	for k, vv := range src {
		dst[k] = make([]string, 0, len(vv))
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}

// ClientIP picks the most specific client address from proxy headers.
func ClientIP(remoteAddr string, header http.Header) string {
	addr := header.Get("X-Real-IP")
	if addr == "" {
		addr = header.Get("X-Forwarded-For")
	}
	if addr == "" {
		return remoteAddr
	}
	return addr
}

// Scheme resolves the effective request scheme behind proxies.
func Scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	if flag := r.Header.Get("X-Forwarded-Ssl"); flag == "on" {
		return "https"
	}
	return "http"
}

// contentTypes maps media container tags to Content-Type values.
var contentTypes = map[string]string{
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"ogg":  "video/ogg",
	"avi":  "video/x-msvideo",
	"mpeg": "video/mpeg",
	"mov":  "video/quicktime",
	"mkv":  "video/x-matroska",
	"ts":   "video/mp2t",
}

// ContentType returns the Content-Type for a container tag.
func ContentType(container string) string {
	if ct, ok := contentTypes[strings.ToLower(container)]; ok {
		return ct
	}
	return "application/octet-stream"
}
