package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/elimulab/elimu/core/auth"
	"github.com/elimulab/elimu/core/course"
	"github.com/elimulab/elimu/core/progress"
	"github.com/elimulab/elimu/core/user"
)

// enrollmentChecker answers whether a student holds an enrollment in a course.
type enrollmentChecker interface {
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
}

type courseApi struct {
	svc         *course.Service
	enrollments enrollmentChecker
}

func registerCourseAPI(g *echo.Group, authMW echo.MiddlewareFunc, svc *course.Service, enrollments enrollmentChecker) {
	api := courseApi{svc: svc, enrollments: enrollments}

	cg := g.Group("/courses", authMW)
	cg.GET("", api.query)
	cg.POST("", api.create, activeRoleMiddleware(user.RoleInstructor))
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update)
	cg.POST("/:id/publish", api.publish)
	cg.GET("/:id/assessments", api.queryAssessments)
	cg.POST("/:id/assessments", api.createAssessment)

	sg := g.Group("", authMW)
	sg.POST("/assessments/:id/submissions", api.submit, activeRoleMiddleware(user.RoleStudent))
	sg.POST("/submissions/:id/grade", api.grade)
}

// Handlers

func (api *courseApi) create(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	crs, err := api.svc.Create(ctx.Request().Context(), id.AccountID, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *courseApi) query(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	courses, err := api.svc.List(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

// retrieve returns a course. Unpublished courses are only visible to their
// owner and to an active admin.
func (api *courseApi) retrieve(ctx echo.Context) error {
	crs, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}

	if !crs.Published {
		id, err := getContextIdentity(ctx)
		if err != nil {
			return err
		}
		if err = auth.AuthorizeOwnerOrAdmin(id, crs.OwnerID, user.RoleInstructor); err != nil {
			return errHttpNotFound // do not leak existence
		}
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) update(ctx echo.Context) error {
	var data course.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}

	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	crs, err := api.svc.Update(ctx.Request().Context(), id, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) publish(ctx echo.Context) error {
	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	crs, err := api.svc.Publish(ctx.Request().Context(), id, ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, crs)
}

// queryAssessments lists a course's assessments. Only the owner, an active
// admin or an enrolled student may see them.
func (api *courseApi) queryAssessments(ctx echo.Context) error {
	c := ctx.Request().Context()

	crs, err := api.svc.GetByID(c, ctx.Param("id"))
	if err != nil {
		return err
	}

	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}
	if err = auth.AuthorizeOwnerOrAdmin(id, crs.OwnerID, user.RoleInstructor); err != nil {
		enrolled, eerr := api.enrollments.IsEnrolled(c, crs.ID, id.AccountID)
		if eerr != nil {
			return errors.Wrap(eerr, "checking enrollment")
		}
		if !enrolled {
			if !crs.Published {
				return errHttpNotFound // do not leak existence
			}
			return progress.ErrNotEnrolled
		}
	}

	assessments, err := api.svc.AssessmentsByCourse(c, crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying assessments")
	}
	if assessments == nil {
		assessments = []course.Assessment{}
	}
	return ctx.JSON(http.StatusOK, assessments)
}

func (api *courseApi) createAssessment(ctx echo.Context) error {
	var data course.NewAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssessment")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	a, err := api.svc.CreateAssessment(ctx.Request().Context(), id, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *courseApi) submit(ctx echo.Context) error {
	var data course.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), id.AccountID, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *courseApi) grade(ctx echo.Context) error {
	var data course.GradeSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GradeSubmission")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	id, err := getContextIdentity(ctx)
	if err != nil {
		return err
	}

	sub, err := api.svc.Grade(ctx.Request().Context(), id, ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}
