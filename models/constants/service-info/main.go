package serviceInfo

import "fmt"

type ServiceInfo string

var (
	SERVICE_NAME        ServiceInfo = "Gohan Variant Store"
	SERVICE_WELCOME     ServiceInfo = "Welcome to the Gohan variant store API!"
	SERVICE_DESCRIPTION ServiceInfo = "Queryable storage of genomic variants over interchangeable backends."

	SERVICE_ARTIFACT    ServiceInfo = "gohan-variantstore"
	SERVICE_TYPE_NO_VER ServiceInfo = ServiceInfo(fmt.Sprintf("ca.c3g.bento:%s", SERVICE_ARTIFACT))
	SERVICE_ID          ServiceInfo = SERVICE_TYPE_NO_VER
)
