package dispatch

import (
	"log"
	"net/http"
	"sort"
	"strings"
)

// Filter wraps the rest of the chain.
type Filter func(next http.Handler) http.Handler

// HeaderLink routes a request to prefix + header value when one of the keys is
// present, and drops the header.
func HeaderLink(links map[string]string) Filter {
	keys := sortedKeys(links)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, key := range keys {
				if v := r.Header.Get(key); v != "" {
					strs := []string{strings.TrimRight(links[key], "/"), strings.TrimLeft(v, "/")}
					setPath(r, strings.Join(strs, "/"))
					r.Header.Del(key)
					break
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// StaticLink replaces exact paths.
func StaticLink(links map[string]string) Filter {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if dst, ok := links[r.URL.Path]; ok {
				setPath(r, dst)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrefixLink rewrites the longest matching prefix.
func PrefixLink(links map[string]string) Filter {
	prefixes := sortedKeys(links)
	sort.SliceStable(prefixes, func(i, j int) bool { return len(prefixes[i]) > len(prefixes[j]) })
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range prefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					setPath(r, strings.Replace(r.URL.Path, prefix, links[prefix], 1))
					break
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Recovery answers a panicking handler with 500 instead of failing the
// invocation. Whatever the handler already wrote is kept.
func Recovery() Filter {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if v := recover(); v != nil {
					log.Printf("[Dispatch] Recovered from panic: %v", v)
					w.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func setPath(r *http.Request, path string) {
	r.URL.Path = path
	r.URL.RawPath = ""
	r.RequestURI = r.URL.RequestURI()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
