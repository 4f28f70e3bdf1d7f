package testutil

import (
	"encoding/json"
	"net/http"
)

// These functions let us mock http responses from the cover providers.

var EmptyHeaders = make(map[string]string, 0)

// Returns an http handler function that returns the specified
// string, along with the specified headers.
func HttpStringResponder(headers map[string]string, data string) http.HandlerFunc {
	f := func(w http.ResponseWriter, r *http.Request) {
		setHeaders(w, headers)
		w.Write([]byte(data))
	}
	return http.HandlerFunc(f)
}

// Returns an http handler function that marshals value to JSON and
// returns it with a JSON content type.
func HttpJsonResponder(value interface{}) http.HandlerFunc {
	f := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		data, err := json.Marshal(value)
		if err != nil {
			panic(err)
		}
		w.Write(data)
	}
	return http.HandlerFunc(f)
}

// Returns an http handler function that serves image bytes with the
// specified content type.
func HttpImageResponder(contentType string, data []byte) http.HandlerFunc {
	f := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Write(data)
	}
	return http.HandlerFunc(f)
}

// Returns an http handler function that replies with just a status
// code and no body.
func HttpStatusResponder(status int) http.HandlerFunc {
	f := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}
	return http.HandlerFunc(f)
}

func setHeaders(w http.ResponseWriter, headers map[string]string) {
	if headers != nil {
		for key, value := range headers {
			w.Header().Set(key, value)
		}
	}
}
