package middleware

import (
	"net/http"
	"strings"

	"gohan/variantstore/contexts"
	"gohan/variantstore/models/dtos/errors"

	"github.com/labstack/echo"
)

/*
Echo middleware to ensure a `study` HTTP query parameter was provided
*/
func MandateStudyAttribute(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		study := strings.TrimSpace(c.QueryParam("study"))
		if len(study) == 0 {
			return c.JSON(http.StatusBadRequest, errors.CreateSimpleBadRequest("missing study"))
		}

		// forward down the pipeline
		gc := c.(*contexts.GohanContext)
		gc.Study = study

		return next(gc)
	}
}
