package dummy

import (
	"fmt"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

type ServerConfig struct {
	Port int
}

// NewHandler returns the dummy target endpoints.
func NewHandler() http.Handler {
	mux := http.NewServeMux()

	// 1. Steady 5ms, always 200
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// 2. Fast Endpoint (10-50ms)
	mux.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(40)+10) * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Fast response"))
	})

	// 3. Slow Endpoint (1s-2s)
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(1000)+1000) * time.Millisecond)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Slow response"))
	})

	// 4. Always 500
	mux.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("500 Internal Server Error"))
	})

	// 5. Every third request fails, alternating 500 and 429
	var n atomic.Int64
	mux.HandleFunc("/flaky", func(w http.ResponseWriter, r *http.Request) {
		switch i := n.Add(1); {
		case i%6 == 0:
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("429 Too Many Requests"))
		case i%3 == 0:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("500 Internal Server Error"))
		default:
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		}
	})

	return mux
}

// Start serves the dummy endpoints in the background.
func Start(cfg ServerConfig, log *zap.Logger) *http.Server {
	if log == nil {
		log = zap.NewNop()
	}
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: NewHandler(),
	}

	log.Info("dummy server listening",
		zap.String("addr", "http://localhost"+addr),
		zap.Strings("endpoints", []string{"/ok", "/fast", "/slow", "/error", "/flaky"}),
	)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("dummy server failed", zap.Error(err))
		}
	}()
	return server
}
