package services

import (
	"net/http"
	"sync"
	"time"
)

// DefaultHttpClient is the shared HTTP client for outbound tool requests.
var DefaultHttpClient = sync.OnceValue(func() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
	}
})
