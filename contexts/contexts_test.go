package contexts

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGohanContext(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/variants/count?chromosome=1", nil), rec)

	gc := &GohanContext{Context: c, Log: slog.New(slog.NewTextHandler(io.Discard, nil))}

	t.Run("is an echo context", func(t *testing.T) {
		var ec echo.Context = gc
		back, ok := ec.(*GohanContext)
		require.True(t, ok)
		assert.Same(t, gc, back)
		assert.NotNil(t, ec.Logger())
		assert.Equal(t, "1", ec.QueryParam("chromosome"))
	})

	t.Run("handlers receive it through middleware", func(t *testing.T) {
		wrap := func(h echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				return h(&GohanContext{Context: c, Log: gc.Log, Study: "1KG"})
			}
		}
		h := wrap(func(c echo.Context) error {
			return c.String(http.StatusOK, c.(*GohanContext).Study)
		})
		require.NoError(t, h(c))
		assert.Equal(t, "1KG", rec.Body.String())
	})
}
