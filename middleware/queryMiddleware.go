package middleware

import (
	"gohan/variantstore/contexts"
	"gohan/variantstore/models/dtos/errors"
	"gohan/variantstore/models/query"

	"github.com/labstack/echo"
)

/*
ValidateVariantQuery parses the variant query and its options eagerly, so
that malformed and unknown parameters are rejected before reaching a
backend. controls are handler specific parameters left out of the query.
*/
func ValidateVariantQuery(controls ...string) echo.MiddlewareFunc {
	skip := append(append([]string{}, query.OptionNames...), controls...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			gc := c.(*contexts.GohanContext)
			values := c.QueryParams()

			q := query.FromValues(values, skip...)
			if _, err := q.Parse(); err != nil {
				dto := errors.FromError(err)
				return c.JSON(dto.Code, dto)
			}

			opts, err := query.ParseOptions(values)
			if err != nil {
				dto := errors.FromError(err)
				return c.JSON(dto.Code, dto)
			}
			if opts.BatchSize == 0 && gc.Config != nil {
				opts.BatchSize = gc.Config.Query.DefaultBatchSize
			}

			gc.Query = q
			gc.Options = opts
			return next(gc)
		}
	}
}
