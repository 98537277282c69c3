package middleware_test

import (
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/dispatch/internal/http/middleware"
)

var _ = Describe("Recovery", func() {
	It("turns a panic into a generic 500", func() {
		engine := gin.New()
		engine.Use(middleware.Recovery(), middleware.Logger())
		engine.GET("/boom", func(*gin.Context) { panic("secret internal state") })

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(MatchJSON(`{"error":"Internal server error"}`))
		Expect(rec.Body.String()).NotTo(ContainSubstring("secret"))
	})

	It("passes normal requests through", func() {
		engine := gin.New()
		engine.Use(middleware.Recovery(), middleware.Logger())
		engine.GET("/ok", func(c *gin.Context) { c.Status(http.StatusNoContent) })

		rec := httptest.NewRecorder()
		engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok?x=1", nil))
		Expect(rec.Code).To(Equal(http.StatusNoContent))
	})
})
