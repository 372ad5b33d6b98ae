package mvc

import (
	"strconv"
	"strings"

	"gohan/variantstore/contexts"
	gerrors "gohan/variantstore/errors"
	"gohan/variantstore/models/dtos/errors"
	"gohan/variantstore/models/query"
	variantsService "gohan/variantstore/services/variants"

	"github.com/labstack/echo"
)

func RetrieveCommonElements(c echo.Context) (*variantsService.VariantService, *query.Query, query.Options) {
	gc := c.(*contexts.GohanContext)
	return gc.VariantService, gc.Query, gc.Options
}

// RespondError writes the envelope of a coded error with its status
func RespondError(c echo.Context, err error) error {
	if gc, ok := c.(*contexts.GohanContext); ok && gc.Log != nil {
		gc.Log.Debug("request failed", "path", c.Path(), "error", err)
	}
	dto := errors.FromError(err)
	return c.JSON(dto.Code, dto)
}

// SplitList splits a comma separated query parameter, dropping blanks
func SplitList(raw string) []string {
	out := []string{}
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// IntParam reads an optional non-negative integer query parameter
func IntParam(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, gerrors.MalformedParameter(name, raw, "expected a non-negative integer")
	}
	return n, nil
}
