package echoapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/elimulab/elimu/core/progress"
	"github.com/elimulab/elimu/core/user"
)

type progressApi struct {
	svc *progress.Service
}

func registerProgressAPI(g *echo.Group, authMW echo.MiddlewareFunc, svc *progress.Service) {
	api := progressApi{svc: svc}

	cg := g.Group("/courses/:id", authMW)
	cg.POST("/enroll", api.enroll, activeRoleMiddleware(user.RoleStudent))
	cg.GET("/progress", api.courseProgress)
	cg.GET("/progress/me", api.myReport, activeRoleMiddleware(user.RoleStudent))
	cg.POST("/progress/lessons", api.recordLesson, activeRoleMiddleware(user.RoleStudent))
	cg.PUT("/progress/:studentID", api.overrideProgress)
	cg.DELETE("/students/:studentID", api.removeStudent)

	pg := g.Group("/progress", authMW)
	pg.GET("/report", api.report, activeRoleMiddleware(user.RoleInstructor))

	eg := g.Group("/enrollments", authMW)
	eg.GET("/me", api.myEnrollments, activeRoleMiddleware(user.RoleStudent))
}

// Handlers

func (api *progressApi) enroll(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	e, err := api.svc.Enroll(ctx.Request().Context(), id.AccountID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *progressApi) myEnrollments(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	enrollments, err := api.svc.EnrollmentsByStudent(ctx.Request().Context(), id.AccountID)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []progress.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

// courseProgress is the instructor view: every student's record plus the
// enrolled students with no record yet.
func (api *progressApi) courseProgress(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	view, err := api.svc.GetCourseProgress(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *progressApi) myReport(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	report, err := api.svc.StudentReport(ctx.Request().Context(), id.AccountID, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *progressApi) recordLesson(ctx echo.Context) error {
	var data progress.LessonEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LessonEvent")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	rec, err := api.svc.RecordLessonProgress(ctx.Request().Context(), id.AccountID, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *progressApi) overrideProgress(ctx echo.Context) error {
	var data progress.OverrideProgress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to OverrideProgress")
	}

	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.UpdateStudentProgress(ctx.Request().Context(), id, ctx.Param("id"), ctx.Param("studentID"), data); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *progressApi) removeStudent(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	if err := api.svc.RemoveStudent(ctx.Request().Context(), id, ctx.Param("id"), ctx.Param("studentID")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// report streams the instructor's CSV export across all of their courses.
func (api *progressApi) report(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	data, err := api.svc.GenerateReport(ctx.Request().Context(), id.AccountID)
	if err != nil {
		return errors.Wrap(err, "generating report")
	}

	filename := fmt.Sprintf("progress-report-%s.csv", time.Now().UTC().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, "text/csv", data)
}
