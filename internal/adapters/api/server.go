package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server hosts the HTTP API.
type Server struct {
	listenPort uint16
	srv        http.Server
}

// NewServer builds the gin engine and wires middleware and routes.
func NewServer(listenPort uint16, handler *Handler, authMW gin.HandlerFunc) *Server {
	engine := gin.New()
	engine.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	engine.Use(ginzap.RecoveryWithZap(zap.L(), true))

	engine.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	handler.Register(engine, authMW)

	return &Server{
		listenPort: listenPort,
		srv:        http.Server{Handler: engine},
	}
}

// Run serves until the context is cancelled, then shuts down
// gracefully, waiting up to 10 s for in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.listenPort))
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("http_shutdown", zap.Error(err))
		return err
	}
	return nil
}
