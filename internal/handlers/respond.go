package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"vanguard-platform/internal/apperr"
)

// fail hands err to the Errors middleware, which writes the one response.
func fail(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
}

func badRequest(c *gin.Context, msg string) {
	fail(c, apperr.New(apperr.ErrValidation, msg))
}

// idParam parses the :id route parameter.
func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "Invalid report id")
		return 0, false
	}
	return id, true
}

// baseURL is the scheme and host the browser used to reach us.
func baseURL(c *gin.Context) string {
	proto := c.GetHeader("X-Forwarded-Proto")
	if proto == "" {
		if c.Request.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	return proto + "://" + c.Request.Host
}
