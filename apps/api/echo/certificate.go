package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/elimulab/elimu/core/certificate"
)

type certificateApi struct {
	svc *certificate.Service
}

func registerCertificateAPI(g *echo.Group, limitMW echo.MiddlewareFunc, svc *certificate.Service) {
	api := certificateApi{svc: svc}

	// public: anyone holding a certificate ID may verify it
	g.GET("/certificates/verify/:certificateID", api.verify, limitMW)
}

func (api *certificateApi) verify(ctx echo.Context) error {
	cert, err := api.svc.Verify(ctx.Request().Context(), ctx.Param("certificateID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cert)
}
