package variants

import (
	"net/http"

	"gohan/variantstore/contexts"
	gerrors "gohan/variantstore/errors"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/models/ingest"
	"gohan/variantstore/mvc"

	"github.com/labstack/echo"
)

// handler specific parameters, next to the query ones
const (
	PARAM_FIELD       = "field"
	PARAM_VARIANT     = "variant"
	PARAM_STUDY       = "study"
	PARAM_SAMPLE      = "sample"
	PARAM_WINDOW_SIZE = "windowSize"
	PARAM_FILE_NAMES  = "fileNames"
)

const defaultPhasedWindow = 5000

func VariantsGet(c echo.Context) error {
	vs, q, opts := mvc.RetrieveCommonElements(c)

	res, err := vs.Get(c.Request().Context(), q, opts)
	if err != nil {
		return mvc.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, dtos.VariantsResponseDTO{
		Status:  http.StatusOK,
		Message: "Success",
		Data:    res,
	})
}

func VariantsCount(c echo.Context) error {
	vs, q, _ := mvc.RetrieveCommonElements(c)

	count, err := vs.Count(c.Request().Context(), q)
	if err != nil {
		return mvc.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, dtos.VariantsCountResponseDTO{
		Status:  http.StatusOK,
		Message: "Success",
		Count:   count,
	})
}

func GetVariantsOverview(c echo.Context) error {
	vs, q, opts := mvc.RetrieveCommonElements(c)

	fields := mvc.SplitList(c.QueryParam(PARAM_FIELD))
	overview, err := vs.GetVariantsOverview(c.Request().Context(), q, fields, opts.Limit)
	if err != nil {
		return mvc.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, overview)
}

// VariantsGetPhased lists the variants in phase with a sample's call of
// the given variant
func VariantsGetPhased(c echo.Context) error {
	vs, _, opts := mvc.RetrieveCommonElements(c)

	variant := c.QueryParam(PARAM_VARIANT)
	sample := c.QueryParam(PARAM_SAMPLE)
	if variant == "" {
		return mvc.RespondError(c, gerrors.MalformedParameter(PARAM_VARIANT, variant, "a variant is required"))
	}
	if sample == "" {
		return mvc.RespondError(c, gerrors.MalformedParameter(PARAM_SAMPLE, sample, "a sample is required"))
	}
	window, err := mvc.IntParam(c, PARAM_WINDOW_SIZE, defaultPhasedWindow)
	if err != nil {
		return mvc.RespondError(c, err)
	}

	res, err := vs.GetPhased(c.Request().Context(), variant, c.QueryParam(PARAM_STUDY), sample, opts, window)
	if err != nil {
		return mvc.RespondError(c, err)
	}
	return c.JSON(http.StatusOK, dtos.VariantsResponseDTO{
		Status:  http.StatusOK,
		Message: "Success",
		Data:    res,
	})
}

// VariantsIngest queues one ingestion per file. Files that cannot be
// queued are reported in the response with their error.
func VariantsIngest(c echo.Context) error {
	gc := c.(*contexts.GohanContext)
	ingestionService := gc.IngestionService

	fileNames := mvc.SplitList(c.QueryParam(PARAM_FILE_NAMES))
	if len(fileNames) == 0 {
		return mvc.RespondError(c, gerrors.MalformedParameter(PARAM_FILE_NAMES, "", "missing 'fileNames' query parameter"))
	}

	responseDtos := make([]ingest.IngestResponseDTO, 0, len(fileNames))
	for _, fileName := range fileNames {
		req, err := ingestionService.Start(gc.Study, fileName)
		if err != nil {
			responseDtos = append(responseDtos, ingest.IngestResponseDTO{
				Filename: fileName,
				State:    ingest.Error,
				Message:  err.Error(),
			})
			continue
		}
		responseDtos = append(responseDtos, ingest.IngestResponseDTO{
			Id:       req.Id,
			Filename: req.Filename,
			State:    req.State,
			Message:  "Successfully queued..",
		})
	}
	return c.JSON(http.StatusOK, responseDtos)
}

func GetAllVariantIngestionRequests(c echo.Context) error {
	ingestionService := c.(*contexts.GohanContext).IngestionService
	return c.JSON(http.StatusOK, ingestionService.Requests())
}
