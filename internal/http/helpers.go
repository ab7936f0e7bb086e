package http

import (
	"net"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/quantumauth-io/marketplace-client/internal/pinning"
	"github.com/quantumauth-io/marketplace-client/internal/txflow"
	"github.com/quantumauth-io/marketplace-client/internal/wallet"
)

func isLoopbackRequest(r *http.Request) bool {
	ra := r.RemoteAddr

	h, _, err := net.SplitHostPort(ra)
	if err != nil {
		ip := net.ParseIP(ra)
		return ip != nil && ip.IsLoopback()
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

func isSafeLocalHost(hostport string) bool {
	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}
	host = strings.ToLower(host)
	return host == "127.0.0.1" || host == "localhost" || host == "::1"
}

func abort(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func connectStatus(err error) int {
	code, ok := wallet.ConnectCodeOf(err)
	if !ok {
		return http.StatusBadGateway
	}
	switch code {
	case wallet.UserRejected:
		return http.StatusForbidden
	case wallet.UnsupportedChain:
		return http.StatusUnprocessableEntity
	case wallet.NoProvider:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// writeTxError maps orchestrator start errors. Flow failures are reported through the tx state.
func writeTxError(c *gin.Context, err error) {
	var ve *pinning.ValidationError
	switch {
	case errors.As(err, &ve):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "fields": ve.Fields})
	case errors.Is(err, txflow.ErrInFlight):
		abort(c, http.StatusConflict, err)
	case errors.Is(err, txflow.ErrNoSigner):
		abort(c, http.StatusPreconditionRequired, err)
	default:
		abort(c, http.StatusBadRequest, err)
	}
}
