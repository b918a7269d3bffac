// Package inmemdb provides in-memory Repository implementations backed by
// mutex-guarded maps. Meant for tests and local development.
package inmemdb

import (
	"sync"

	"github.com/elimulab/elimu/core/certificate"
	"github.com/elimulab/elimu/core/course"
	"github.com/elimulab/elimu/core/progress"
	"github.com/elimulab/elimu/core/user"
)

type (
	userTable struct {
		mutex sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		mutex       sync.RWMutex
		courses     map[string]*course.Course
		assessments map[string]*course.Assessment
		submissions map[string]*course.Submission
	}

	progressTable struct {
		mutex       sync.RWMutex
		enrollments map[string]*progress.Enrollment
		records     map[string]*progress.Record
	}

	certificateTable struct {
		mutex sync.RWMutex
		table map[string]*certificate.Certificate
	}

	DB struct {
		user        *userTable
		course      *courseTable
		progress    *progressTable
		certificate *certificateTable
	}
)

func NewDB() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		course: &courseTable{
			courses:     make(map[string]*course.Course),
			assessments: make(map[string]*course.Assessment),
			submissions: make(map[string]*course.Submission),
		},
		progress: &progressTable{
			enrollments: make(map[string]*progress.Enrollment),
			records:     make(map[string]*progress.Record),
		},
		certificate: &certificateTable{table: make(map[string]*certificate.Certificate)},
	}
}
