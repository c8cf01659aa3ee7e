// Package httpapi exposes the routine engine as a small JSON API.
//
//	GET    /healthz
//	GET    /v1/rules
//	GET    /v1/babies
//	GET    /v1/babies/{babyID}/schedule?date=YYYY-MM-DD&now=HH:MM
//	PUT    /v1/babies/{babyID}/schedule/{date}/items/{order}   {"start","end"}
//	DELETE /v1/babies/{babyID}/schedule/{date}
//	PUT    /v1/babies/{babyID}/wake                           {"firstWakeTime","date"}
//	PUT    /v1/babies/{babyID}/rule                           {"ruleId"}
package httpapi
