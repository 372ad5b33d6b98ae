package serviceInfo

import (
	"net/http"

	"gohan/variantstore/contexts"
	serviceInfo "gohan/variantstore/models/constants/service-info"
	"gohan/variantstore/models/dtos"
	"gohan/variantstore/mvc"

	"github.com/labstack/echo"
)

// GetServiceInfo describes the service in the GA4GH service-info layout
// (https://github.com/ga4gh-discovery/ga4gh-service-info) and reports the
// backend with the studies it holds. A backend that cannot list its
// studies fails the request.
func GetServiceInfo(c echo.Context) error {
	gc := c.(*contexts.GohanContext)
	cfg := gc.Config

	studies, err := gc.VariantService.StudyIds(c.Request().Context())
	if err != nil {
		return mvc.RespondError(c, err)
	}
	if studies == nil {
		studies = []int{}
	}

	return c.JSON(http.StatusOK, dtos.ServiceInfoDTO{
		Id:   string(serviceInfo.SERVICE_ID),
		Name: string(serviceInfo.SERVICE_NAME),
		Type: dtos.ServiceTypeDTO{
			Group:    string(serviceInfo.SERVICE_TYPE_NO_VER),
			Artifact: string(serviceInfo.SERVICE_ARTIFACT),
			Version:  cfg.SemVer,
		},
		Description: string(serviceInfo.SERVICE_DESCRIPTION),
		Organization: dtos.ServiceOrganizationDTO{
			Name: "C3G",
			Url:  "http://c3g.ca",
		},
		ContactUrl: cfg.ServiceContact,
		Version:    cfg.SemVer,
		Storage: dtos.ServiceStorageDTO{
			Backend: cfg.Api.Backend,
			Studies: studies,
		},
	})
}
